package daemon

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/themekit/internal/daemon/events"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/logfields"
)

// WatchRoot maps a directory tree to a watch domain.
type WatchRoot struct {
	Domain events.Domain
	Dir    string
}

// Watcher monitors the content and asset trees recursively and publishes a
// BuildRequested for every relevant file change. Directories created while
// watching are added on the fly so nested new folders are picked up.
type Watcher struct {
	bus    *events.Bus
	logger *slog.Logger
	roots  []WatchRoot

	watcher *fsnotify.Watcher
	domains map[string]events.Domain // watched dir -> domain
}

// NewWatcher resolves the roots to absolute paths and registers them.
func NewWatcher(bus *events.Bus, logger *slog.Logger, roots []WatchRoot) (*Watcher, error) {
	if bus == nil {
		return nil, ferrors.ValidationError("bus is required").Build()
	}
	if len(roots) == 0 {
		return nil, ferrors.ValidationError("at least one watch root is required").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to create file watcher").Build()
	}

	w := &Watcher{
		bus:     bus,
		logger:  logger,
		watcher: fsw,
		domains: map[string]events.Domain{},
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root.Dir)
		if err != nil {
			fsw.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryIO, "failed to resolve watch root").
				WithContext("dir", root.Dir).
				Build()
		}
		w.roots = append(w.roots, WatchRoot{Domain: root.Domain, Dir: abs})
		if err := w.addTree(abs, root.Domain); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Run pumps filesystem events onto the bus until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}
	defer w.watcher.Close()

	for _, root := range w.roots {
		w.logger.Info("watching", logfields.Domain(string(root.Domain)), slog.String("dir", root.Dir))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if isEditorArtifact(event.Name) {
		return
	}

	domain, ok := w.domainFor(event.Name)
	if !ok {
		return
	}

	// New directories need to be watched; dotted and hidden dirs excluded.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !isHiddenPath(event.Name) {
				if err := w.addTree(event.Name, domain); err != nil {
					w.logger.Warn("failed to watch new directory",
						slog.String("dir", event.Name), slog.Any("error", err))
				}
			}
			return
		}
	}

	var kind events.ChangeKind
	switch {
	case event.Op.Has(fsnotify.Create):
		kind = events.ChangeCreated
	case event.Op.Has(fsnotify.Write):
		kind = events.ChangeModified
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		kind = events.ChangeDeleted
	default:
		return
	}

	w.logger.Debug("file change",
		logfields.Domain(string(domain)),
		logfields.Path(event.Name),
		slog.String("kind", string(kind)),
	)

	_ = w.bus.Publish(ctx, events.BuildRequested{
		Event: events.WatchEvent{
			Domain: domain,
			Path:   event.Name,
			Kind:   kind,
		},
		Reason:      "fs_change",
		RequestedAt: time.Now(),
	})
}

// addTree registers dir and every non-hidden subdirectory under it.
func (w *Watcher) addTree(dir string, domain events.Domain) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryIO, "failed to walk watch tree").
				WithContext("path", path).
				Build()
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHiddenPath(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to watch directory").
				WithContext("dir", path).
				Build()
		}
		w.domains[path] = domain
		return nil
	})
}

func (w *Watcher) domainFor(path string) (events.Domain, bool) {
	for _, root := range w.roots {
		if path == root.Dir || strings.HasPrefix(path, root.Dir+string(filepath.Separator)) {
			return root.Domain, true
		}
	}
	return "", false
}

// isEditorArtifact filters transient files that editors leave behind during
// atomic saves: vim swaps, emacs backups/locks, and bare temp suffixes.
func isEditorArtifact(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasSuffix(base, "~"):
		return true
	case strings.HasPrefix(base, ".#"), strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case strings.HasSuffix(base, ".tmp"), strings.HasSuffix(base, ".part"):
		return true
	case base == ".DS_Store":
		return true
	}
	return false
}

func isHiddenPath(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
