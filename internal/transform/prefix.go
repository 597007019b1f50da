package transform

import "regexp"

// prefixedProperties is the fixed set of properties that still need a
// -webkit- twin in the browsers the default theme targets.
var prefixedProperties = []string{
	"appearance",
	"backdrop-filter",
	"user-select",
	"mask-image",
	"text-size-adjust",
}

var prefixRegexes = func() map[string]*regexp.Regexp {
	rx := make(map[string]*regexp.Regexp, len(prefixedProperties))
	for _, prop := range prefixedProperties {
		rx[prop] = regexp.MustCompile(`(?m)^(\s*)(` + regexp.QuoteMeta(prop) + `\s*:[^;{}]*;)`)
	}
	return rx
}()

// prefixVendors duplicates declarations for the fixed property set with a
// -webkit- prefix, keeping the unprefixed declaration last so it wins where
// both are understood.
func prefixVendors(src []byte) []byte {
	out := src
	for _, rx := range prefixRegexes {
		out = rx.ReplaceAll(out, []byte("$1-webkit-$2\n$1$2"))
	}
	return out
}
