// Package pages renders markdown content into the static site, resolving
// asset references through the published manifest.
package pages

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/themekit/internal/config"
	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/manifest"
	"git.home.luguber.info/inful/themekit/internal/theme"
)

// ManifestReader provides the freshest published manifest. Read fails with a
// manifest-missing error until the first asset build has completed.
type ManifestReader interface {
	Read() (*manifest.AssetManifest, error)
}

// Generator renders the content tree into the output directory.
type Generator struct {
	cfg       *config.Config
	md        goldmark.Markdown
	layout    *template.Template
	manifests ManifestReader
	logger    *slog.Logger

	// IncludeDrafts renders pages marked draft, used by dev mode.
	IncludeDrafts bool
}

// layoutName is looked up under the content dir before falling back to the
// built-in layout.
const layoutName = "_layout.html"

func NewGenerator(cfg *config.Config, manifests ManifestReader, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	layoutSrc := defaultLayout
	custom := filepath.Join(cfg.Content.Dir, layoutName)
	if data, err := os.ReadFile(custom); err == nil {
		layoutSrc = string(data)
	}
	layout, err := template.New("layout").Parse(layoutSrc)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse page layout").
			WithContext("layout", custom).Build()
	}

	return &Generator{
		cfg:       cfg,
		md:        goldmark.New(),
		layout:    layout,
		manifests: manifests,
		logger:    logger,
	}, nil
}

type assetRef struct {
	Key  string
	Path string
}

type pageData struct {
	Site      config.SiteConfig
	Page      PageMeta
	Content   template.HTML
	Styles    []assetRef
	Scripts   []assetRef
	Bootstrap template.JS
	Runtime   template.JS
}

// GenerateAll renders every content page. Individual page failures are
// collected; the remaining pages still render so one broken file does not
// blank the whole site.
func (g *Generator) GenerateAll(ctx context.Context) error {
	man := g.readManifest()

	var firstErr error
	pageCount := 0
	err := filepath.WalkDir(g.cfg.Content.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryIO, "walk content tree").
				WithContext("path", path).Build()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ferrors.WrapError(ctxErr, ferrors.CategoryRuntime, "generation canceled").Build()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != g.cfg.Content.Dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == layoutName {
			return nil
		}
		switch filepath.Ext(path) {
		case ".md", ".html":
		default:
			return nil
		}

		if genErr := g.GeneratePage(ctx, path, man); genErr != nil {
			g.logger.Error("page generation failed",
				slog.String("page", path), slog.Any("error", genErr))
			if firstErr == nil {
				firstErr = genErr
			}
			return nil
		}
		pageCount++
		return nil
	})
	if err != nil {
		return err
	}
	g.logger.Info("content generated", slog.Int("pages", pageCount))
	return firstErr
}

// GeneratePage renders a single content file, resolving asset references
// against man (nil means assets not ready: references are skipped).
func (g *Generator) GeneratePage(ctx context.Context, path string, man *manifest.AssetManifest) error {
	if man == nil {
		man = g.readManifest()
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "read content file").
			WithContext("path", path).Build()
	}

	rel := g.contentRel(path)

	switch filepath.Ext(path) {
	case ".md":
		return g.renderMarkdown(rel, src, man)
	case ".html":
		return g.renderHTML(rel, src, man)
	}
	return nil
}

func (g *Generator) renderMarkdown(rel string, src []byte, man *manifest.AssetManifest) error {
	rawMeta, body, _, err := splitFrontmatter(src)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "split frontmatter").
			WithContext("page", rel).Build()
	}
	meta, err := parseMeta(rawMeta)
	if err != nil {
		return err
	}
	if meta.Draft && !g.IncludeDrafts {
		return nil
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSuffix(filepath.Base(rel), ".md")
	}

	var buf bytes.Buffer
	if err := g.md.Convert(body, &buf); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTransform, "render markdown").
			WithContext("page", rel).Build()
	}

	styles, scripts := splitAssets(man)
	data := pageData{
		Site:      g.cfg.Site,
		Page:      meta,
		Content:   template.HTML(buf.String()),
		Styles:    styles,
		Scripts:   scripts,
		Bootstrap: template.JS(theme.BootstrapScript),
		Runtime:   template.JS(theme.RuntimeScript),
	}

	var page bytes.Buffer
	if err := g.layout.Execute(&page, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTransform, "execute layout").
			WithContext("page", rel).Build()
	}

	return g.writePage(outputPath(rel, meta.Slug), page.Bytes())
}

// renderHTML passes a raw HTML page through, rewriting asset references to
// their fingerprinted paths.
func (g *Generator) renderHTML(rel string, src []byte, man *manifest.AssetManifest) error {
	out, err := RewriteAssetRefs(src, man, g.cfg.Output.PublicBase)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryTransform, "rewrite asset references").
			WithContext("page", rel).Build()
	}
	return g.writePage(rel, out)
}

func (g *Generator) writePage(rel string, data []byte) error {
	full := filepath.Join(g.cfg.Output.Dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "create output directory").
			WithContext("dir", filepath.Dir(full)).Build()
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "write page").
			WithContext("path", full).Build()
	}
	return nil
}

// contentRel maps a source path back to its position under the content dir.
// The watcher delivers absolute paths while the configured dir is usually
// relative, so both forms are tried before falling back to the bare name.
func (g *Generator) contentRel(path string) string {
	if rel, err := filepath.Rel(g.cfg.Content.Dir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	if absDir, err := filepath.Abs(g.cfg.Content.Dir); err == nil {
		if rel, err := filepath.Rel(absDir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Base(path)
}

// readManifest tolerates a missing manifest: the first content build may run
// before any asset build has published.
func (g *Generator) readManifest() *manifest.AssetManifest {
	if g.manifests == nil {
		return nil
	}
	man, err := g.manifests.Read()
	if err != nil {
		if ferrors.IsManifestMissing(err) {
			g.logger.Debug("assets not ready, skipping asset references")
			return nil
		}
		g.logger.Warn("failed to read asset manifest", slog.Any("error", err))
		return nil
	}
	return man
}

// outputPath maps content-relative source paths to pretty URLs:
// guide/setup.md -> guide/setup/index.html, index.md stays index.html.
// An explicit frontmatter slug replaces the filename segment.
func outputPath(rel, slug string) string {
	dir := filepath.Dir(rel)
	name := strings.TrimSuffix(filepath.Base(rel), ".md")
	if slug != "" {
		name = slug
	} else {
		name = Slugify(name)
	}
	if name == "index" {
		if dir == "." {
			return "index.html"
		}
		return filepath.Join(dir, "index.html")
	}
	if dir == "." {
		return filepath.Join(name, "index.html")
	}
	return filepath.Join(dir, name, "index.html")
}

func splitAssets(man *manifest.AssetManifest) (styles, scripts []assetRef) {
	if man == nil {
		return nil, nil
	}
	keys := man.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		asset, ok := man.Lookup(key)
		if !ok {
			continue
		}
		switch filepath.Ext(key) {
		case ".css":
			styles = append(styles, assetRef{Key: key, Path: asset.Path})
		case ".js":
			scripts = append(scripts, assetRef{Key: key, Path: asset.Path})
		}
	}
	return styles, scripts
}

const defaultLayout = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Page.Title}} | {{.Site.Title}}</title>
{{if .Page.Description}}<meta name="description" content="{{.Page.Description}}">{{end}}
<script>{{.Bootstrap}}</script>
{{range .Styles}}<link rel="stylesheet" href="{{.Path}}" data-module="{{.Key}}">
{{end}}</head>
<body>
<header class="site-header">
<button class="nav-toggle" data-nav-toggle aria-label="Toggle navigation">&#9776;</button>
<a class="site-title" href="/">{{.Site.Title}}</a>
<button class="theme-toggle" data-theme-toggle aria-label="Toggle theme">&#9681;</button>
</header>
<main>
{{.Content}}
</main>
{{range .Scripts}}<script src="{{.Path}}"></script>
{{end}}<script>{{.Runtime}}</script>
</body>
</html>
`
