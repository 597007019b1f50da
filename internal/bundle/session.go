package bundle

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/themekit/internal/config"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/manifest"
)

// UpdateKind tells connected clients how to apply an incremental update.
type UpdateKind string

const (
	// UpdateStyle re-injects stylesheet content in place, no reload.
	UpdateStyle UpdateKind = "style-update"
	// UpdateFullReload forces a full navigation reload.
	UpdateFullReload UpdateKind = "full-reload"
)

// IncrementalUpdate describes the outcome of one incremental rebuild.
type IncrementalUpdate struct {
	Kind     UpdateKind
	ModuleID string
	// Keys are the logical entries whose output bytes actually changed.
	Keys []string
	// Payload carries the new stylesheet content for style updates of a
	// single bundle, letting clients hot-swap without a round trip.
	Payload []byte
}

// DevSession owns the dev mode state: the module graph, the current and
// last-good outputs, recorded per-module errors, and the freshest manifest.
// It is created by startDevServer and discarded when the process stops;
// nothing here survives an exit.
type DevSession struct {
	ID string

	cfg     *config.Config
	bundler *Bundler

	mu       sync.RWMutex
	graph    *Graph
	outputs  map[string][]byte // logical key -> current output
	lastGood map[string][]byte // logical key -> last successfully built output
	errs     map[string]error  // module ID -> last transform error
	man      *manifest.AssetManifest
	// prevPaths keeps one superseded fingerprinted path per key resolvable,
	// covering clients that reload a page rendered just before a publish.
	prevPaths map[string]string
}

// NewDevSession primes the session with an initial full build. A transform
// error during priming is recorded against the failing module instead of
// failing the constructor: the dev loop starts either way and serves errors
// to clients until the source is fixed.
func NewDevSession(ctx context.Context, cfg *config.Config) (*DevSession, error) {
	s := &DevSession{
		ID:        uuid.NewString(),
		cfg:       cfg,
		bundler:   New(cfg),
		graph:     NewGraph(),
		outputs:   make(map[string][]byte),
		lastGood:  make(map[string][]byte),
		errs:      make(map[string]error),
		man:       manifest.New(uuid.NewString()),
		prevPaths: make(map[string]string),
	}
	if err := s.rebuildAll(ctx); err != nil {
		if !recoverable(err) {
			return nil, err
		}
		slog.Warn("Initial build failed, serving errors until fixed", "error", err)
	}
	return s, nil
}

// recoverable reports whether the dev loop should absorb the error rather
// than tear down. Transform errors always; IO errors are retried on the next
// event.
func recoverable(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryTransform) ||
		ferrors.HasCategory(err, ferrors.CategoryIO)
}

// rebuildAll rebuilds every entry from scratch, replacing graph and outputs.
// Callers must not hold the lock.
func (s *DevSession) rebuildAll(ctx context.Context) error {
	opts := s.bundler.transformOptions(true)
	graph := NewGraph()
	results := make(map[string]*built, len(s.cfg.Assets.Entries))

	var firstErr error
	for _, key := range s.cfg.Assets.Entries {
		if err := ctx.Err(); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryRuntime, "rebuild canceled").Build()
		}
		res, err := s.bundler.buildEntry(key, opts)
		if err != nil {
			s.recordError(key, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.clearError(key)
		results[key] = res
		for _, mod := range res.modules {
			graph.SetModule(mod)
		}
		graph.SetEntry(key, res.rootID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Failed entries keep their previous graph reachability so a fix to an
	// imported file still maps back to the broken entry.
	for _, key := range s.cfg.Assets.Entries {
		if _, ok := results[key]; ok {
			continue
		}
		if root, found := s.graph.entryRoot(key); found {
			graph.SetEntry(key, root)
			s.graph.copyReachable(graph, root)
		}
	}
	s.graph = graph
	man := manifest.New(uuid.NewString())
	man.Commit = manifest.HeadCommit(s.cfg.Assets.Dir)
	for key, res := range results {
		s.outputs[key] = res.data
		s.lastGood[key] = res.data
		hash := Fingerprint(res.data)
		path := publicPath(s.cfg.Output.PublicBase, FingerprintedName(key, hash))
		if old, ok := s.man.Lookup(key); ok && old.Path != path {
			s.prevPaths[key] = old.Path
		}
		man.Set(key, manifest.Asset{
			Path:        path,
			ContentHash: hash,
			SizeBytes:   int64(len(res.data)),
		})
	}
	s.man = man
	return firstErr
}

// Rebuild performs a full rebuild of every entry, used by the periodic sweep
// and by builds triggered without a specific changed file.
func (s *DevSession) Rebuild(ctx context.Context) (*IncrementalUpdate, error) {
	if err := s.rebuildAll(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	keys := s.graph.EntryKeys()
	s.mu.RUnlock()
	return &IncrementalUpdate{Kind: UpdateFullReload, Keys: keys}, nil
}

// NotifyChanged recomputes the transitive dependents of a changed source
// file. Only entries whose bundles include the module are rebuilt, and only
// entries whose output bytes changed get new hashes. A failed rebuild leaves
// the previous graph and outputs untouched.
func (s *DevSession) NotifyChanged(ctx context.Context, path string) (*IncrementalUpdate, error) {
	moduleID := s.moduleID(path)

	s.mu.RLock()
	known := s.graph.Has(moduleID)
	s.mu.RUnlock()

	if !known {
		// New or previously unseen file: the graph cannot scope the
		// impact, so rebuild everything.
		slog.Debug("Unknown module changed, full rebuild", "module", moduleID)
		if err := s.rebuildAll(ctx); err != nil {
			return nil, err
		}
		s.mu.RLock()
		keys := s.graph.EntryKeys()
		s.mu.RUnlock()
		return &IncrementalUpdate{Kind: UpdateFullReload, ModuleID: moduleID, Keys: keys}, nil
	}

	s.mu.RLock()
	keys := s.graph.EntriesFor(moduleID)
	mod, _ := s.graph.Module(moduleID)
	s.mu.RUnlock()

	if len(keys) == 0 {
		return nil, nil
	}

	opts := s.bundler.transformOptions(true)
	rebuilt := make(map[string]*built, len(keys))
	for _, key := range keys {
		res, err := s.bundler.buildEntry(key, opts)
		if err != nil {
			// Previous in-memory state stays untouched; the error is
			// recorded and the session keeps serving last-good.
			s.recordError(moduleID, err)
			return nil, err
		}
		rebuilt[key] = res
	}
	s.clearError(moduleID)

	s.mu.Lock()
	var changed []string
	for key, res := range rebuilt {
		hash := Fingerprint(res.data)
		prev, had := s.man.Lookup(key)
		if had && prev.ContentHash == hash {
			continue // output bytes unchanged, hash stays
		}
		if had {
			s.prevPaths[key] = prev.Path
		}
		s.outputs[key] = res.data
		s.lastGood[key] = res.data
		s.man.Set(key, manifest.Asset{
			Path:        publicPath(s.cfg.Output.PublicBase, FingerprintedName(key, hash)),
			ContentHash: hash,
			SizeBytes:   int64(len(res.data)),
		})
		for _, m := range res.modules {
			s.graph.SetModule(m)
		}
		s.graph.SetEntry(key, res.rootID)
		changed = append(changed, key)
	}
	s.mu.Unlock()

	update := &IncrementalUpdate{ModuleID: moduleID, Keys: changed}
	switch {
	case mod.Kind == KindStyle:
		update.Kind = UpdateStyle
		if len(changed) == 1 {
			s.mu.RLock()
			update.Payload = s.outputs[changed[0]]
			s.mu.RUnlock()
		}
	case mod.Swappable:
		update.Kind = UpdateStyle
	default:
		update.Kind = UpdateFullReload
	}
	return update, nil
}

// moduleID normalizes a filesystem path to a graph module ID.
func (s *DevSession) moduleID(path string) string {
	if rel, err := filepath.Rel(s.cfg.Assets.Dir, path); err == nil && !filepath.IsAbs(rel) {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// Asset serves a logical key's current output; when the latest rebuild of the
// key failed, the last good output is served instead.
func (s *DevSession) Asset(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.outputs[key]; ok {
		return data, true
	}
	if data, ok := s.lastGood[key]; ok {
		return data, true
	}
	return nil, false
}

// AssetByPath resolves a public fingerprinted path back to its output bytes.
// One superseded path per key stays resolvable so pages rendered just before
// a publish still load their assets; those requests get the current bytes.
func (s *DevSession) AssetByPath(public string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, a := range s.man.Assets {
		if a.Path == public {
			if data, ok := s.outputs[key]; ok {
				return data, true
			}
		}
	}
	for key, old := range s.prevPaths {
		if old == public {
			if data, ok := s.outputs[key]; ok {
				return data, true
			}
			if data, ok := s.lastGood[key]; ok {
				return data, true
			}
		}
	}
	return nil, false
}

// Manifest returns a snapshot of the freshest manifest.
func (s *DevSession) Manifest() *manifest.AssetManifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.man.Clone()
}

// Errors returns a snapshot of recorded per-module errors.
func (s *DevSession) Errors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.errs))
	for id, err := range s.errs {
		out[id] = err.Error()
	}
	return out
}

func (s *DevSession) recordError(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[id] = err
}

func (s *DevSession) clearError(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errs, id)
}

// Close discards session state. The graph and outputs are in-memory only, so
// there is nothing durable to clean up; the method exists for symmetry with
// the daemon's lifecycle.
func (s *DevSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = map[string][]byte{}
	s.lastGood = map[string][]byte{}
	s.errs = map[string]error{}
	s.prevPaths = map[string]string{}
}
