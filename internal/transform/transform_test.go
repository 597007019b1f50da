package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

const utilitySheet = `
.mt-4 { margin-top: 1rem; }
.flex { display: flex; }
.hidden { display: none; }
`

func TestCSSDeterministic(t *testing.T) {
	src := []byte("body { color: #333333; }\n")
	opts := Options{Minify: true}

	first, err := CSS("main.css", src, opts)
	require.NoError(t, err)
	second, err := CSS("main.css", src, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Less(t, len(first), len(src), "minified output should shrink")
}

func TestCSSUtilityExpansionOnlyUsedClasses(t *testing.T) {
	src := []byte("@utilities;\nbody { margin: 0; }\n")
	used := ScanClasses([]byte(`<div class="flex mt-4">x</div>`))

	out, err := CSS("main.css", src, Options{
		Expander:    &SheetExpander{Sheet: []byte(utilitySheet)},
		UsedClasses: used,
	})
	require.NoError(t, err)

	assert.Contains(t, string(out), ".mt-4")
	assert.Contains(t, string(out), ".flex")
	assert.NotContains(t, string(out), ".hidden")
}

func TestCSSExpansionStableOrder(t *testing.T) {
	src := []byte("@utilities;")
	opts := Options{
		Expander:    &SheetExpander{Sheet: []byte(utilitySheet)},
		UsedClasses: map[string]bool{"flex": true, "mt-4": true, "hidden": true},
	}
	first, err := CSS("main.css", src, opts)
	require.NoError(t, err)
	for range 10 {
		again, err := CSS("main.css", src, opts)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestVendorPrefixing(t *testing.T) {
	src := []byte("button {\n  user-select: none;\n}\n")
	out, err := CSS("main.css", src, Options{Prefix: true})
	require.NoError(t, err)
	assert.Contains(t, string(out), "-webkit-user-select: none;")
	assert.Contains(t, string(out), "\n  user-select: none;")
}

func TestJSSyntaxErrorPosition(t *testing.T) {
	src := []byte("function broken( {\n  return );\n}\n")
	_, err := JS("app.js", src, Options{Minify: true})
	require.Error(t, err)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryTransform, classified.Category())
	file, _ := classified.Context().GetString("file")
	assert.Equal(t, "app.js", file)
}

func TestJSWithoutMinifyStillValidates(t *testing.T) {
	src := []byte("const x = ;\n")
	_, err := JS("app.js", src, Options{Minify: false})
	assert.Error(t, err, "syntax check applies even when minification is off")

	ok := []byte("const x = 1;\n")
	out, err := JS("app.js", ok, Options{Minify: false})
	require.NoError(t, err)
	assert.Equal(t, ok, out, "unminified output passes through")
}

func TestScanClasses(t *testing.T) {
	used := ScanClasses(
		[]byte(`<nav class="flex nav-open">`),
		[]byte(`<p class="mt-4">text</p>`),
	)
	assert.True(t, used["flex"])
	assert.True(t, used["nav-open"])
	assert.True(t, used["mt-4"])
	assert.False(t, used["hidden"])
}
