package pages

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
	"git.home.luguber.info/inful/themekit/internal/manifest"
)

// RewriteAssetRefs walks an HTML document and replaces references to logical
// asset names (href="main.css", src="/assets/main.js") with their current
// fingerprinted manifest paths. References that resolve to no manifest entry
// are left alone.
func RewriteAssetRefs(doc []byte, man *manifest.AssetManifest, publicBase string) ([]byte, error) {
	if man == nil {
		return doc, nil
	}

	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "parse html").Build()
	}

	changed := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "link":
				changed = rewriteAttr(n, "href", man, publicBase) || changed
			case "script", "img":
				changed = rewriteAttr(n, "src", man, publicBase) || changed
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if !changed {
		return doc, nil
	}

	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "render html").Build()
	}
	return out.Bytes(), nil
}

func rewriteAttr(n *html.Node, name string, man *manifest.AssetManifest, publicBase string) bool {
	for i, attr := range n.Attr {
		if attr.Key != name {
			continue
		}
		key := logicalKey(attr.Val, publicBase)
		if key == "" {
			return false
		}
		asset, ok := man.Lookup(key)
		if !ok || asset.Path == attr.Val {
			return false
		}
		n.Attr[i].Val = asset.Path
		// Tag stylesheet links with their logical key so the live-update
		// client can hot-swap the right one.
		if name == "href" && !hasAttr(n, "data-module") {
			n.Attr = append(n.Attr, html.Attribute{Key: "data-module", Val: key})
		}
		return true
	}
	return false
}

// logicalKey maps an asset reference back to its manifest key: either the
// bare logical name or a path under the public base.
func logicalKey(ref, publicBase string) string {
	if ref == "" || strings.Contains(ref, "://") {
		return ""
	}
	if rest, ok := strings.CutPrefix(ref, publicBase); ok {
		return rest
	}
	if !strings.Contains(ref, "/") {
		return ref
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}
