package bundle

import (
	"sort"
	"sync"
)

// Kind discriminates the two artifact kinds the pipeline supports.
type Kind string

const (
	KindStyle  Kind = "style"
	KindScript Kind = "script"
)

// Module is a node in the dev session's module graph: one source file,
// identified by its path relative to the asset directory.
type Module struct {
	ID      string
	Kind    Kind
	Imports []string
	// Swappable marks a script module as hot-swappable. Styles are always
	// swappable; scripts only when explicitly marked.
	Swappable bool
}

// Graph tracks entry bundles and the source modules they transitively
// include. Exclusively owned and mutated by the session that built it.
type Graph struct {
	mu      sync.RWMutex
	modules map[string]*Module
	// entries maps logical keys (e.g. "main.css") to their root module ID.
	entries map[string]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		modules: make(map[string]*Module),
		entries: make(map[string]string),
	}
}

// SetModule inserts or replaces a module node.
func (g *Graph) SetModule(m *Module) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modules[m.ID] = m
}

// SetEntry registers a logical key's root module.
func (g *Graph) SetEntry(key, rootID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[key] = rootID
}

// Module returns a module node by ID.
func (g *Graph) Module(id string) (*Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.modules[id]
	return m, ok
}

// Has reports whether the graph knows the module.
func (g *Graph) Has(id string) bool {
	_, ok := g.Module(id)
	return ok
}

// EntriesFor returns the logical keys whose bundle transitively includes the
// given module, sorted. These are exactly the outputs that must be rebuilt
// when the module changes.
func (g *Graph) EntriesFor(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var keys []string
	for key, root := range g.entries {
		if g.reaches(root, id, make(map[string]bool)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// reaches walks import edges from src looking for target. Callers hold the
// read lock.
func (g *Graph) reaches(src, target string, seen map[string]bool) bool {
	if src == target {
		return true
	}
	if seen[src] {
		return false
	}
	seen[src] = true
	m, ok := g.modules[src]
	if !ok {
		return false
	}
	for _, imp := range m.Imports {
		if g.reaches(imp, target, seen) {
			return true
		}
	}
	return false
}

// entryRoot returns the root module ID registered for a logical key.
func (g *Graph) entryRoot(key string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	root, ok := g.entries[key]
	return root, ok
}

// copyReachable copies the subgraph reachable from rootID into dst. Used to
// preserve a broken entry's reachability across full rebuilds, so fixing an
// imported file still maps back to the entry that failed.
func (g *Graph) copyReachable(dst *Graph, rootID string) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var walk func(id string, seen map[string]bool)
	walk = func(id string, seen map[string]bool) {
		if seen[id] {
			return
		}
		seen[id] = true
		m, ok := g.modules[id]
		if !ok {
			return
		}
		clone := *m
		dst.SetModule(&clone)
		for _, imp := range m.Imports {
			walk(imp, seen)
		}
	}
	walk(rootID, make(map[string]bool))
}

// EntryKeys returns all registered logical keys, sorted.
func (g *Graph) EntryKeys() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	keys := make([]string, 0, len(g.entries))
	for k := range g.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
