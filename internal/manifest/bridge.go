package manifest

import (
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

// Bridge publishes and reads the manifest at its well-known location. Writes
// go to a temp file in the same directory followed by an atomic rename, so a
// concurrent reader sees either the fully previous or the fully new manifest,
// never a partial one. Single writer, any number of readers.
type Bridge struct {
	path string

	mu      sync.Mutex
	version uint64
}

// NewBridge creates a bridge for the given manifest path. If a manifest from
// an earlier run exists, its version seeds the counter so versions stay
// monotonic across restarts within one output directory.
func NewBridge(path string) *Bridge {
	b := &Bridge{path: path}
	if m, err := b.Read(); err == nil {
		b.version = m.Version
	}
	return b
}

// Path returns the well-known manifest location.
func (b *Bridge) Path() string {
	return b.path
}

// Publish atomically replaces the published manifest. The manifest's Version
// is assigned here, one past the last published version.
func (b *Bridge) Publish(m *AssetManifest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	m.Version = b.version + 1

	data, err := m.ToJSON()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "serialize manifest").Build()
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "create manifest directory").
			WithContext("dir", dir).Build()
	}

	// Temp file must live in the same directory: rename is only atomic
	// within a filesystem.
	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "create temp manifest").Build()
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return ferrors.WrapError(err, ferrors.CategoryIO, "write temp manifest").Build()
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return ferrors.WrapError(err, ferrors.CategoryIO, "close temp manifest").Build()
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return ferrors.WrapError(err, ferrors.CategoryIO, "replace manifest").Build()
	}

	b.version = m.Version
	return nil
}

// Read returns the currently published manifest, or a manifest-missing error
// if no build has published yet. Callers must treat that as "assets not
// ready", not as failure.
func (b *Bridge) Read() (*AssetManifest, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.ManifestMissing(b.path)
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryIO, "read manifest").Build()
	}
	m, err := FromJSON(data)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryIO, "decode manifest").
			WithContext("path", b.path).Build()
	}
	return m, nil
}

// Version returns the last published version, zero if nothing was published.
func (b *Bridge) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}
