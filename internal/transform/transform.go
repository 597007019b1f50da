// Package transform implements the pure style/script transform: source bytes
// plus options in, processed bundle bytes out. It holds no state between
// invocations; identical inputs always produce identical outputs, which is
// what makes the bundler's content hashes trustworthy.
package transform

import (
	"bytes"
	"errors"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/parse/v2"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

const (
	mimeCSS = "text/css"
	mimeJS  = "application/javascript"
)

// Options configures a single transform invocation.
type Options struct {
	// Minify controls output minification. Disabled only in tests that
	// assert on readable output.
	Minify bool
	// Prefix enables vendor prefixing for a small fixed property set.
	Prefix bool
	// Expander expands the utility-class directive in stylesheets. May be
	// nil, in which case the directive is dropped.
	Expander UtilityExpander
	// UsedClasses is the set of class tokens observed in content, consumed
	// by the expander.
	UsedClasses map[string]bool
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mimeCSS, css.Minify)
	m.AddFunc(mimeJS, js.Minify)
	return m
}

// CSS transforms a stylesheet: utility expansion, vendor prefixing, then
// minification. name is used for error positions only.
func CSS(name string, src []byte, opts Options) ([]byte, error) {
	out := src
	if bytes.Contains(out, []byte(utilityDirective)) {
		expanded, err := expandUtilities(out, opts)
		if err != nil {
			return nil, err
		}
		out = expanded
	}
	if opts.Prefix {
		out = prefixVendors(out)
	}
	if !opts.Minify {
		return out, nil
	}
	min, err := newMinifier().Bytes(mimeCSS, out)
	if err != nil {
		return nil, classify(name, err)
	}
	return min, nil
}

// JS transforms a script. Scripts get no expansion or prefixing; running them
// through the minifier doubles as a syntax check even when Minify is off.
func JS(name string, src []byte, opts Options) ([]byte, error) {
	min, err := newMinifier().Bytes(mimeJS, src)
	if err != nil {
		return nil, classify(name, err)
	}
	if !opts.Minify {
		return src, nil
	}
	return min, nil
}

// classify converts minifier failures into the pipeline's transform errors,
// preserving the source position when the parser reports one.
func classify(name string, err error) error {
	var perr *parse.Error
	if errors.As(err, &perr) {
		line, col, _ := perr.Position()
		return ferrors.TransformError(name, line, col, perr.Message).Build()
	}
	return ferrors.TransformError(name, 0, 0, err.Error()).Build()
}
