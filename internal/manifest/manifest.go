// Package manifest defines the contract artifact between the asset pipeline
// and the page generator: a mapping from stable logical asset names to
// fingerprinted output files, published atomically so a reader never observes
// a partially written mapping.
package manifest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Asset describes one fingerprinted output file.
type Asset struct {
	// Path is the public path of the fingerprinted file, including the
	// configured public base.
	Path string `json:"path"`
	// ContentHash is a hex sha256 of the bundled output bytes. It changes
	// if and only if the bytes changed.
	ContentHash string `json:"hash"`
	SizeBytes   int64  `json:"size_bytes"`
}

// AssetManifest maps logical asset keys (e.g. "main.css") to their output
// descriptors. One manifest exists per build or dev session; it is read-only
// once published.
type AssetManifest struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	// Commit is the source tree's git HEAD at build time, when available.
	Commit string `json:"commit,omitempty"`
	// Version is a monotonic publish counter maintained by the Bridge.
	// Dependent builds compare it to detect mid-flight updates.
	Version uint64           `json:"version"`
	Assets  map[string]Asset `json:"assets"`
}

// New returns an empty manifest with the given build ID.
func New(id string) *AssetManifest {
	return &AssetManifest{
		ID:          id,
		GeneratedAt: time.Now().UTC(),
		Assets:      make(map[string]Asset),
	}
}

// Lookup resolves a logical key to its published path.
func (m *AssetManifest) Lookup(key string) (Asset, bool) {
	if m == nil {
		return Asset{}, false
	}
	a, ok := m.Assets[key]
	return a, ok
}

// Set records an output descriptor under its logical key.
func (m *AssetManifest) Set(key string, a Asset) {
	m.Assets[key] = a
}

// Keys returns the logical keys in sorted order.
func (m *AssetManifest) Keys() []string {
	keys := make([]string, 0, len(m.Assets))
	for k := range m.Assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (m *AssetManifest) Clone() *AssetManifest {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Assets = make(map[string]Asset, len(m.Assets))
	for k, v := range m.Assets {
		clone.Assets[k] = v
	}
	return &clone
}

// ContentFingerprint computes a deterministic hash over the manifest's asset
// mapping, independent of ID, timestamps, and version. Two manifests with the
// same fingerprint reference byte-identical outputs.
func (m *AssetManifest) ContentFingerprint() string {
	type pair struct {
		Key   string `json:"key"`
		Asset Asset  `json:"asset"`
	}
	pairs := make([]pair, 0, len(m.Assets))
	for _, k := range m.Keys() {
		pairs = append(pairs, pair{Key: k, Asset: m.Assets[k]})
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		// Marshaling a slice of plain structs cannot fail.
		return ""
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// ToJSON serializes the manifest.
func (m *AssetManifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a manifest.
func FromJSON(data []byte) (*AssetManifest, error) {
	var m AssetManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if m.Assets == nil {
		m.Assets = make(map[string]Asset)
	}
	return &m, nil
}
