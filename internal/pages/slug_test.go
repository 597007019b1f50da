package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Getting Started":        "getting-started",
		"Café & Crème":           "cafe-creme",
		"  spaces   everywhere ": "spaces-everywhere",
		"Über uns":               "uber-uns",
		"v2.0 Release Notes":     "v2-0-release-notes",
		"already-a-slug":         "already-a-slug",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "index.html", outputPath("index.md", ""))
	assert.Equal(t, "guide/index.html", outputPath("guide/index.md", ""))
	assert.Equal(t, "guide/setup/index.html", outputPath("guide/setup.md", ""))
	assert.Equal(t, "guide/custom/index.html", outputPath("guide/setup.md", "custom"))
}
