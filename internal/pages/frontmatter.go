package pages

import (
	"bytes"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

// PageMeta is the typed frontmatter of one content page.
type PageMeta struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description,omitempty"`
	Slug        string    `yaml:"slug,omitempty"`
	Date        time.Time `yaml:"date,omitempty"`
	Draft       bool      `yaml:"draft,omitempty"`
}

// splitFrontmatter separates `---` delimited YAML frontmatter from the body.
// Documents without a leading delimiter are returned unchanged with had=false.
func splitFrontmatter(content []byte) (meta []byte, body []byte, had bool, err error) {
	open := []byte("---\n")
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	rest := content[len(open):]
	closeSeq := []byte("\n---\n")
	if bytes.HasPrefix(rest, []byte("---\n")) {
		return []byte{}, rest[len("---\n"):], true, nil
	}
	idx := bytes.Index(rest, closeSeq)
	if idx < 0 {
		return nil, nil, false, ferrors.ValidationError("unterminated frontmatter block").Build()
	}
	return rest[:idx+1], rest[idx+len(closeSeq):], true, nil
}

// parseMeta unmarshals frontmatter into PageMeta.
func parseMeta(raw []byte) (PageMeta, error) {
	var meta PageMeta
	if len(raw) == 0 {
		return meta, nil
	}
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return meta, ferrors.WrapError(err, ferrors.CategoryValidation, "parse frontmatter").Build()
	}
	return meta, nil
}
