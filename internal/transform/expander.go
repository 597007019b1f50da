package transform

import (
	"bytes"
	"regexp"
	"sort"
	"strings"
)

// utilityDirective marks the spot in a stylesheet where utility rules are
// injected. The generation rules themselves are a black box behind
// UtilityExpander; the pipeline only cares that the expansion is
// deterministic for a given (sheet, used-classes) pair.
const utilityDirective = "@utilities;"

// UtilityExpander produces the utility rules for the set of class tokens
// actually used by the site's content.
type UtilityExpander interface {
	Expand(used map[string]bool) ([]byte, error)
}

func expandUtilities(src []byte, opts Options) ([]byte, error) {
	var rules []byte
	if opts.Expander != nil {
		expanded, err := opts.Expander.Expand(opts.UsedClasses)
		if err != nil {
			return nil, err
		}
		rules = expanded
	}
	return bytes.Replace(src, []byte(utilityDirective), rules, 1), nil
}

// ruleRegex matches top-level single-class rules in a utility sheet,
// e.g. ".mt-4 { margin-top: 1rem; }". Utility sheets are flat by convention.
var ruleRegex = regexp.MustCompile(`(?s)\.([A-Za-z0-9_-]+)\s*\{[^}]*\}`)

// SheetExpander is the default UtilityExpander: it scans a flat utility
// source sheet and emits only the rules whose class token appears in the
// used set. Output order is sorted by class name so expansion is stable
// regardless of map iteration order.
type SheetExpander struct {
	Sheet []byte
}

// Expand implements UtilityExpander.
func (e *SheetExpander) Expand(used map[string]bool) ([]byte, error) {
	if len(e.Sheet) == 0 || len(used) == 0 {
		return nil, nil
	}
	matches := ruleRegex.FindAllSubmatch(e.Sheet, -1)
	selected := make(map[string][]byte, len(matches))
	for _, m := range matches {
		class := string(m[1])
		if used[class] {
			selected[class] = m[0]
		}
	}
	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		buf.Write(selected[name])
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// classAttrRegex pulls class attribute values out of markup.
var classAttrRegex = regexp.MustCompile(`class\s*=\s*"([^"]*)"`)

// ScanClasses collects class tokens from rendered or authored markup. The
// result feeds Options.UsedClasses.
func ScanClasses(sources ...[]byte) map[string]bool {
	used := make(map[string]bool)
	for _, src := range sources {
		for _, m := range classAttrRegex.FindAllSubmatch(src, -1) {
			for _, token := range strings.Fields(string(m[1])) {
				used[token] = true
			}
		}
	}
	return used
}
