// Package bundle wraps the style/script transform with the two operating
// modes of the asset pipeline: one-shot fingerprinted builds and an in-memory
// dev session with incremental updates.
package bundle

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/themekit/internal/config"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/manifest"
	"git.home.luguber.info/inful/themekit/internal/transform"
)

// importRegex matches @import "file.css"; in its plain and url() forms.
var importRegex = regexp.MustCompile(`@import\s+(?:url\s*\(\s*)?["']([^"']+)["']\s*\)?;?`)

// Bundler turns entry points into processed, fingerprinted bundles. It is
// stateless between builds; all session state lives in DevSession.
type Bundler struct {
	cfg *config.Config
}

// New creates a bundler for the given configuration.
func New(cfg *config.Config) *Bundler {
	return &Bundler{cfg: cfg}
}

// built is one processed entry bundle plus the graph nodes it produced.
type built struct {
	key     string
	data    []byte
	modules []*Module
	rootID  string
}

// transformOptions assembles per-build transform options: the utility sheet
// (if configured) and the class tokens currently used by content.
func (b *Bundler) transformOptions(minify bool) transform.Options {
	opts := transform.Options{Minify: minify, Prefix: true}
	if b.cfg.Assets.UtilitySheet != "" {
		if sheet, err := os.ReadFile(b.cfg.Assets.UtilitySheet); err == nil {
			opts.Expander = &transform.SheetExpander{Sheet: sheet}
			opts.UsedClasses = b.scanContentClasses()
		} else {
			slog.Warn("Utility sheet unreadable, skipping expansion",
				"path", b.cfg.Assets.UtilitySheet, "error", err)
		}
	}
	return opts
}

// scanContentClasses walks the content tree collecting class tokens from
// markdown and HTML sources.
func (b *Bundler) scanContentClasses() map[string]bool {
	var sources [][]byte
	_ = filepath.WalkDir(b.cfg.Content.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".md", ".html":
			if data, err := os.ReadFile(path); err == nil {
				sources = append(sources, data)
			}
		}
		return nil
	})
	return transform.ScanClasses(sources...)
}

// buildEntry processes one logical entry point.
func (b *Bundler) buildEntry(key string, opts transform.Options) (*built, error) {
	srcPath := filepath.Join(b.cfg.Assets.Dir, key)

	switch filepath.Ext(key) {
	case ".css":
		inlined, imports, err := b.inlineCSS(srcPath, key, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		out, err := transform.CSS(key, inlined, opts)
		if err != nil {
			return nil, err
		}
		modules := []*Module{{ID: key, Kind: KindStyle, Imports: imports}}
		for _, imp := range imports {
			modules = append(modules, &Module{ID: imp, Kind: KindStyle})
		}
		return &built{key: key, data: out, modules: modules, rootID: key}, nil

	case ".js":
		src, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryIO, "read script entry").
				WithContext("path", srcPath).Build()
		}
		out, err := transform.JS(key, src, opts)
		if err != nil {
			return nil, err
		}
		return &built{
			key:     key,
			data:    out,
			modules: []*Module{{ID: key, Kind: KindScript}},
			rootID:  key,
		}, nil
	}
	return nil, ferrors.ValidationError("unsupported entry kind").WithContext("entry", key).Build()
}

// inlineCSS reads a stylesheet and inlines its @import tree, recording every
// imported module ID (relative to the asset dir) as a graph edge.
func (b *Bundler) inlineCSS(path, id string, seen map[string]bool) ([]byte, []string, error) {
	if seen[path] {
		return nil, nil, nil
	}
	seen[path] = true

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryIO, "read stylesheet").
			WithContext("path", path).Build()
	}

	var imports []string
	baseDir := filepath.Dir(path)
	var inlineErr error
	out := importRegex.ReplaceAllFunc(src, func(match []byte) []byte {
		if inlineErr != nil {
			return nil
		}
		sub := importRegex.FindSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		rel := string(sub[1])
		impPath := filepath.Join(baseDir, rel)
		impID, err := filepath.Rel(b.cfg.Assets.Dir, impPath)
		if err != nil {
			impID = rel
		}
		inlined, nested, err := b.inlineCSS(impPath, impID, seen)
		if err != nil {
			inlineErr = err
			return nil
		}
		imports = append(imports, impID)
		imports = append(imports, nested...)
		return inlined
	})
	if inlineErr != nil {
		return nil, nil, inlineErr
	}
	return out, imports, nil
}

// BuildOnce performs one full deterministic pass: every entry is transformed,
// written as a fingerprinted file, and recorded in a fresh manifest. The
// manifest is returned unpublished; publishing is the caller's decision.
func (b *Bundler) BuildOnce(ctx context.Context) (*manifest.AssetManifest, *Graph, error) {
	opts := b.transformOptions(true)
	graph := NewGraph()
	m := manifest.New(uuid.NewString())
	m.Commit = manifest.HeadCommit(b.cfg.Assets.Dir)

	outDir := b.cfg.AssetOutputDir()
	if b.cfg.Output.Clean {
		if err := os.RemoveAll(outDir); err != nil {
			return nil, nil, ferrors.WrapError(err, ferrors.CategoryIO, "clean asset output").Build()
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryIO, "create asset output").Build()
	}

	for _, key := range b.cfg.Assets.Entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "build canceled").Build()
		}
		res, err := b.buildEntry(key, opts)
		if err != nil {
			return nil, nil, err
		}
		hash := Fingerprint(res.data)
		fname := FingerprintedName(key, hash)
		outPath := filepath.Join(outDir, fname)
		// Nested entries like vendor/lib.js need their subdirectory.
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return nil, nil, ferrors.WrapError(err, ferrors.CategoryIO, "create bundle directory").
				WithContext("file", fname).Build()
		}
		if err := os.WriteFile(outPath, res.data, 0o644); err != nil {
			return nil, nil, ferrors.WrapError(err, ferrors.CategoryIO, "write bundle").
				WithContext("file", fname).Build()
		}
		m.Set(key, manifest.Asset{
			Path:        publicPath(b.cfg.Output.PublicBase, fname),
			ContentHash: hash,
			SizeBytes:   int64(len(res.data)),
		})
		for _, mod := range res.modules {
			graph.SetModule(mod)
		}
		graph.SetEntry(key, res.rootID)
		slog.Debug("Entry bundled", "key", key, "hash", hash[:hashPrefixLen], "bytes", len(res.data))
	}
	return m, graph, nil
}

func publicPath(base, fname string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + fname
}
