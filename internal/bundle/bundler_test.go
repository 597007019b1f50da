package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themekit/internal/config"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

// siteFixture lays out a minimal source tree and returns its config.
func siteFixture(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Content.Dir = filepath.Join(root, "content")
	cfg.Assets.Dir = filepath.Join(root, "assets")
	cfg.Output.Dir = filepath.Join(root, "public")

	require.NoError(t, os.MkdirAll(cfg.Content.Dir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.Assets.Dir, 0o755))

	writeFixture(t, cfg.Assets.Dir, "main.css", `@import "base.css";
body { color: #333333; }
`)
	writeFixture(t, cfg.Assets.Dir, "base.css", `html { margin: 0; }
`)
	writeFixture(t, cfg.Assets.Dir, "main.js", `console.log("hello");
`)
	writeFixture(t, cfg.Content.Dir, "index.md", `---
title: Home
---
Hello.
`)
	return cfg
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuildOnceWritesFingerprintedOutputs(t *testing.T) {
	cfg := siteFixture(t)
	m, graph, err := New(cfg).BuildOnce(context.Background())
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"main.css", "main.js"}, m.Keys())
	for _, key := range m.Keys() {
		a, _ := m.Lookup(key)
		assert.Contains(t, a.Path, cfg.Output.PublicBase)
		assert.Len(t, a.ContentHash, 64)
		assert.Greater(t, a.SizeBytes, int64(0))

		fname := filepath.Base(a.Path)
		data, err := os.ReadFile(filepath.Join(cfg.AssetOutputDir(), fname))
		require.NoError(t, err)
		assert.Equal(t, a.ContentHash, Fingerprint(data))
	}

	// The css entry's import became a graph edge.
	assert.ElementsMatch(t, []string{"main.css"}, graph.EntriesFor("base.css"))
}

func TestBuildOnceDeterministicHashes(t *testing.T) {
	cfg := siteFixture(t)
	b := New(cfg)

	m1, _, err := b.BuildOnce(context.Background())
	require.NoError(t, err)
	m2, _, err := b.BuildOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, m1.ContentFingerprint(), m2.ContentFingerprint())
}

func TestBuildOnceHashChangesOnlyWithContent(t *testing.T) {
	cfg := siteFixture(t)
	b := New(cfg)

	m1, _, err := b.BuildOnce(context.Background())
	require.NoError(t, err)

	writeFixture(t, cfg.Assets.Dir, "base.css", "html { margin: 0; padding: 0; }\n")
	m2, _, err := b.BuildOnce(context.Background())
	require.NoError(t, err)

	css1, _ := m1.Lookup("main.css")
	css2, _ := m2.Lookup("main.css")
	assert.NotEqual(t, css1.ContentHash, css2.ContentHash, "css bytes changed")

	js1, _ := m1.Lookup("main.js")
	js2, _ := m2.Lookup("main.js")
	assert.Equal(t, js1.ContentHash, js2.ContentHash, "untouched script keeps its hash")
}

func TestBuildOnceNestedEntryCreatesSubdir(t *testing.T) {
	cfg := siteFixture(t)
	cfg.Assets.Entries = append(cfg.Assets.Entries, "vendor/lib.js")
	writeFixture(t, cfg.Assets.Dir, filepath.Join("vendor", "lib.js"), "console.log(1);\n")

	m, _, err := New(cfg).BuildOnce(context.Background())
	require.NoError(t, err)

	a, ok := m.Lookup("vendor/lib.js")
	require.True(t, ok)
	fname := FingerprintedName("vendor/lib.js", a.ContentHash)
	_, statErr := os.Stat(filepath.Join(cfg.AssetOutputDir(), fname))
	assert.NoError(t, statErr, "nested bundle written under its subdirectory")
}

func TestBuildOnceScriptSyntaxError(t *testing.T) {
	cfg := siteFixture(t)
	writeFixture(t, cfg.Assets.Dir, "main.js", "const broken = ;\n")

	_, _, err := New(cfg).BuildOnce(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))
}

func TestFingerprintedName(t *testing.T) {
	hash := Fingerprint([]byte("x"))
	name := FingerprintedName("main.css", hash)
	assert.Equal(t, "main."+hash[:12]+".css", name)

	nested := FingerprintedName("vendor/lib.js", hash)
	assert.Equal(t, "vendor/lib."+hash[:12]+".js", nested)
}
