package pages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themekit/internal/config"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/manifest"
)

type stubManifests struct {
	man *manifest.AssetManifest
	err error
}

func (s *stubManifests) Read() (*manifest.AssetManifest, error) {
	return s.man, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Site.Title = "Test Site"
	cfg.Content.Dir = filepath.Join(t.TempDir(), "content")
	cfg.Output.Dir = filepath.Join(t.TempDir(), "public")
	require.NoError(t, os.MkdirAll(cfg.Content.Dir, 0o755))
	return cfg
}

func writeContent(t *testing.T, cfg *config.Config, rel, body string) {
	t.Helper()
	full := filepath.Join(cfg.Content.Dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func manifestWith(t *testing.T, assets map[string]string) *manifest.AssetManifest {
	t.Helper()
	man := manifest.New("test")
	for key, path := range assets {
		man.Set(key, manifest.Asset{Path: path, ContentHash: "abc", SizeBytes: 1})
	}
	return man
}

func TestGenerateMarkdownPage(t *testing.T) {
	cfg := testConfig(t)
	writeContent(t, cfg, "guide/setup.md", "---\ntitle: Getting Started\n---\n\n# Hello\n\nSome *text*.\n")

	man := manifestWith(t, map[string]string{"main.css": "/assets/main.abcdef123456.css"})
	gen, err := NewGenerator(cfg, &stubManifests{man: man}, nil)
	require.NoError(t, err)

	require.NoError(t, gen.GenerateAll(t.Context()))

	out, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "guide", "getting-started", "index.html"))
	require.NoError(t, err)
	page := string(out)
	assert.Contains(t, page, "<h1>Hello</h1>")
	assert.Contains(t, page, "Getting Started | Test Site")
	assert.Contains(t, page, `/assets/main.abcdef123456.css`, "stylesheet link uses the fingerprinted path")
	assert.Contains(t, page, `data-module="main.css"`)
}

func TestGeneratePageKeepsNestingForAbsolutePaths(t *testing.T) {
	// The watcher reports absolute paths while the content dir is usually
	// configured relative; nested pages must not flatten.
	root := t.TempDir()
	t.Chdir(root)

	cfg := config.Default()
	cfg.Site.Title = "Test Site"
	cfg.Content.Dir = "content"
	cfg.Output.Dir = "public"
	require.NoError(t, os.MkdirAll(filepath.Join(root, "content", "guide"), 0o755))
	src := filepath.Join(root, "content", "guide", "setup.md")
	require.NoError(t, os.WriteFile(src, []byte("# Setup\n"), 0o644))

	gen, err := NewGenerator(cfg, &stubManifests{man: manifest.New("t")}, nil)
	require.NoError(t, err)
	require.NoError(t, gen.GeneratePage(t.Context(), src, nil))

	_, statErr := os.Stat(filepath.Join(root, "public", "guide", "setup", "index.html"))
	assert.NoError(t, statErr, "nested page lands under its directory")
	_, statErr = os.Stat(filepath.Join(root, "public", "setup", "index.html"))
	assert.True(t, os.IsNotExist(statErr), "no flattened phantom page")
}

func TestBootstrapScriptPrecedesStylesheets(t *testing.T) {
	cfg := testConfig(t)
	writeContent(t, cfg, "index.md", "# Home\n")

	man := manifestWith(t, map[string]string{"main.css": "/assets/main.aaa.css"})
	gen, err := NewGenerator(cfg, &stubManifests{man: man}, nil)
	require.NoError(t, err)
	require.NoError(t, gen.GenerateAll(t.Context()))

	out, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "index.html"))
	require.NoError(t, err)
	page := string(out)

	scriptIdx := strings.Index(page, "prefers-color-scheme")
	linkIdx := strings.Index(page, "stylesheet")
	require.GreaterOrEqual(t, scriptIdx, 0)
	require.GreaterOrEqual(t, linkIdx, 0)
	assert.Less(t, scriptIdx, linkIdx, "theme resolution must run before any stylesheet loads")
}

func TestMissingManifestSkipsAssetReferences(t *testing.T) {
	cfg := testConfig(t)
	writeContent(t, cfg, "index.md", "# Home\n")

	missing := &stubManifests{err: ferrors.ManifestMissing("public/manifest.json")}
	gen, err := NewGenerator(cfg, missing, nil)
	require.NoError(t, err)

	require.NoError(t, gen.GenerateAll(t.Context()))

	out, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "index.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "stylesheet", "no asset links before the first asset build publishes")
	assert.Contains(t, string(out), "<h1>Home</h1>")
}

func TestDraftsSkippedUnlessIncluded(t *testing.T) {
	cfg := testConfig(t)
	writeContent(t, cfg, "wip.md", "---\ntitle: WIP\ndraft: true\n---\n\nNot done.\n")

	gen, err := NewGenerator(cfg, &stubManifests{man: manifest.New("t")}, nil)
	require.NoError(t, err)
	require.NoError(t, gen.GenerateAll(t.Context()))
	_, statErr := os.Stat(filepath.Join(cfg.Output.Dir, "wip", "index.html"))
	assert.True(t, os.IsNotExist(statErr))

	gen.IncludeDrafts = true
	require.NoError(t, gen.GenerateAll(t.Context()))
	_, statErr = os.Stat(filepath.Join(cfg.Output.Dir, "wip", "index.html"))
	assert.NoError(t, statErr)
}

func TestBrokenPageDoesNotBlockOthers(t *testing.T) {
	cfg := testConfig(t)
	writeContent(t, cfg, "bad.md", "---\ntitle: broken\n")
	writeContent(t, cfg, "good.md", "# Good\n")

	gen, err := NewGenerator(cfg, &stubManifests{man: manifest.New("t")}, nil)
	require.NoError(t, err)

	err = gen.GenerateAll(t.Context())
	assert.Error(t, err, "the broken page's error is surfaced")

	_, statErr := os.Stat(filepath.Join(cfg.Output.Dir, "good", "index.html"))
	assert.NoError(t, statErr, "the healthy page still renders")
}

func TestCustomLayoutOverride(t *testing.T) {
	cfg := testConfig(t)
	writeContent(t, cfg, "_layout.html", `<html><body id="custom">{{.Content}}</body></html>`)
	writeContent(t, cfg, "index.md", "# Custom\n")

	gen, err := NewGenerator(cfg, &stubManifests{man: manifest.New("t")}, nil)
	require.NoError(t, err)
	require.NoError(t, gen.GenerateAll(t.Context()))

	out, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(out), `id="custom"`)
}

func TestRawHTMLPagePassesThroughWithRewrittenRefs(t *testing.T) {
	cfg := testConfig(t)
	writeContent(t, cfg, "landing.html",
		`<html><head><link rel="stylesheet" href="/assets/main.css"></head><body>hi</body></html>`)

	man := manifestWith(t, map[string]string{"main.css": "/assets/main.fff000.css"})
	gen, err := NewGenerator(cfg, &stubManifests{man: man}, nil)
	require.NoError(t, err)
	require.NoError(t, gen.GenerateAll(t.Context()))

	out, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "landing.html"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "/assets/main.fff000.css")
	assert.NotContains(t, string(out), `href="/assets/main.css"`)
}
