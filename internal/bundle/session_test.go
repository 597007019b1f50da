package bundle

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevSessionInitialBuild(t *testing.T) {
	cfg := siteFixture(t)
	s, err := NewDevSession(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	data, ok := s.Asset("main.css")
	require.True(t, ok)
	assert.Contains(t, string(data), "margin:0", "import inlined and minified")

	m := s.Manifest()
	assert.ElementsMatch(t, []string{"main.css", "main.js"}, m.Keys())
	assert.Empty(t, s.Errors())
}

func TestStyleEditYieldsStyleUpdateOnly(t *testing.T) {
	cfg := siteFixture(t)
	s, err := NewDevSession(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	before := s.Manifest()
	jsBefore, _ := before.Lookup("main.js")

	writeFixture(t, cfg.Assets.Dir, "base.css", "html { margin: 0; padding: 2rem; }\n")
	update, err := s.NotifyChanged(context.Background(), filepath.Join(cfg.Assets.Dir, "base.css"))
	require.NoError(t, err)
	require.NotNil(t, update)

	assert.Equal(t, UpdateStyle, update.Kind, "stylesheet edits never force a reload")
	assert.Equal(t, []string{"main.css"}, update.Keys)
	assert.Contains(t, string(update.Payload), "padding:2rem")

	after := s.Manifest()
	jsAfter, _ := after.Lookup("main.js")
	assert.Equal(t, jsBefore.ContentHash, jsAfter.ContentHash, "script entries untouched")
}

func TestScriptEditYieldsFullReload(t *testing.T) {
	cfg := siteFixture(t)
	s, err := NewDevSession(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	writeFixture(t, cfg.Assets.Dir, "main.js", "console.log(\"edited\");\n")
	update, err := s.NotifyChanged(context.Background(), filepath.Join(cfg.Assets.Dir, "main.js"))
	require.NoError(t, err)
	require.NotNil(t, update)
	assert.Equal(t, UpdateFullReload, update.Kind)
}

func TestSwappableScriptHotSwaps(t *testing.T) {
	cfg := siteFixture(t)
	s, err := NewDevSession(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	mod, ok := s.graph.Module("main.js")
	require.True(t, ok)
	mod.Swappable = true
	s.graph.SetModule(mod)

	writeFixture(t, cfg.Assets.Dir, "main.js", "console.log(\"swap\");\n")
	update, err := s.NotifyChanged(context.Background(), filepath.Join(cfg.Assets.Dir, "main.js"))
	require.NoError(t, err)
	assert.Equal(t, UpdateStyle, update.Kind)
}

func TestUnchangedBytesKeepHash(t *testing.T) {
	cfg := siteFixture(t)
	s, err := NewDevSession(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	// Touch the file with identical content: comments are stripped by the
	// minifier, so the output bytes do not change.
	writeFixture(t, cfg.Assets.Dir, "base.css", "/* note */html { margin: 0; }\n")
	update, err := s.NotifyChanged(context.Background(), filepath.Join(cfg.Assets.Dir, "base.css"))
	require.NoError(t, err)
	assert.Empty(t, update.Keys, "no output bytes changed, no hash invalidation")
}

func TestFailedIncrementalPreservesState(t *testing.T) {
	cfg := siteFixture(t)
	s, err := NewDevSession(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	goodJS, _ := s.Asset("main.js")
	manBefore := s.Manifest()

	writeFixture(t, cfg.Assets.Dir, "main.js", "const broken = ;\n")
	_, err = s.NotifyChanged(context.Background(), filepath.Join(cfg.Assets.Dir, "main.js"))
	require.Error(t, err)

	// Previous state untouched: same manifest, last-good still served.
	assert.Equal(t, manBefore.ContentFingerprint(), s.Manifest().ContentFingerprint())
	served, ok := s.Asset("main.js")
	require.True(t, ok)
	assert.Equal(t, goodJS, served)
	assert.Contains(t, s.Errors(), "main.js")

	// Fixing the source clears the error on the next update.
	writeFixture(t, cfg.Assets.Dir, "main.js", "console.log(\"fixed\");\n")
	update, err := s.NotifyChanged(context.Background(), filepath.Join(cfg.Assets.Dir, "main.js"))
	require.NoError(t, err)
	assert.Equal(t, UpdateFullReload, update.Kind)
	assert.NotContains(t, s.Errors(), "main.js")
}

func TestSessionStartsDespiteBrokenSource(t *testing.T) {
	cfg := siteFixture(t)
	writeFixture(t, cfg.Assets.Dir, "main.js", "const broken = ;\n")

	s, err := NewDevSession(context.Background(), cfg)
	require.NoError(t, err, "dev session never refuses to start over a transform error")
	defer s.Close()

	assert.Contains(t, s.Errors(), "main.js")
	_, ok := s.Asset("main.css")
	assert.True(t, ok, "healthy bundles still served")
}

func TestAssetByPath(t *testing.T) {
	cfg := siteFixture(t)
	s, err := NewDevSession(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	a, ok := s.Manifest().Lookup("main.css")
	require.True(t, ok)
	data, ok := s.AssetByPath(a.Path)
	require.True(t, ok)
	assert.NotEmpty(t, data)
}

func TestAssetByPathKeepsSupersededPathResolvable(t *testing.T) {
	cfg := siteFixture(t)
	s, err := NewDevSession(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	before, ok := s.Manifest().Lookup("main.js")
	require.True(t, ok)

	writeFixture(t, cfg.Assets.Dir, "main.js", "console.log(\"edited\");\n")
	update, err := s.NotifyChanged(context.Background(), filepath.Join(cfg.Assets.Dir, "main.js"))
	require.NoError(t, err)
	require.Equal(t, UpdateFullReload, update.Kind)

	after, ok := s.Manifest().Lookup("main.js")
	require.True(t, ok)
	require.NotEqual(t, before.Path, after.Path)

	// A page rendered before the edit still references the old path; the
	// session serves the current bytes for it instead of 404ing the reload.
	data, ok := s.AssetByPath(before.Path)
	require.True(t, ok, "superseded fingerprinted path must stay resolvable")
	assert.Contains(t, string(data), "edited")

	fresh, ok := s.AssetByPath(after.Path)
	require.True(t, ok)
	assert.Equal(t, fresh, data)
}
