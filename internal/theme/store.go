package theme

import (
	"os"
	"strings"
	"sync"
)

// PreferenceStore persists the theme preference across page views. In the
// browser this is local storage; the Go implementations exist for the model
// tests and for tooling that inspects a preference file.
type PreferenceStore interface {
	// Load returns the stored preference, ok=false when none exists.
	Load() (string, bool)
	// Save persists the preference. Errors are advisory; callers fall back
	// to in-memory-only state.
	Save(value string) error
}

// MemoryStore keeps the preference for the lifetime of the process.
type MemoryStore struct {
	mu    sync.Mutex
	value string
	set   bool
}

func (m *MemoryStore) Load() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, m.set
}

func (m *MemoryStore) Save(value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.set = true
	return nil
}

// FileStore persists the preference as a single plain-string file.
type FileStore struct {
	Path string
}

func (f *FileStore) Load() (string, bool) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", false
	}
	return value, true
}

func (f *FileStore) Save(value string) error {
	return os.WriteFile(f.Path, []byte(value), 0o644)
}
