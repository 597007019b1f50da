package ferrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformErrorCarriesPosition(t *testing.T) {
	err := TransformError("assets/main.css", 12, 4, "unexpected token").Build()

	require.True(t, HasCategory(err, CategoryTransform))
	file, ok := err.Context().GetString("file")
	require.True(t, ok)
	assert.Equal(t, "assets/main.css", file)

	line, ok := err.Context().Get("line")
	require.True(t, ok)
	assert.Equal(t, 12, line)

	assert.False(t, err.CanRetry(), "transform errors need a source fix, not a retry")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := WrapError(cause, CategoryIO, "write bundle").Build()

	assert.ErrorIs(t, errors.Unwrap(err), cause)
	assert.Equal(t, CategoryIO, GetCategory(err))
	assert.Equal(t, RetryNever, err.RetryStrategy())
}

func TestManifestMissingDetection(t *testing.T) {
	err := ManifestMissing("/tmp/manifest.json")
	assert.True(t, IsManifestMissing(err))
	assert.False(t, err.IsFatal())

	assert.False(t, IsManifestMissing(errors.New("plain")))
}

func TestCLIAdapterExitCodes(t *testing.T) {
	adapter := NewCLIAdapter(false, nil)

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"unclassified", errors.New("boom"), 1},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"transform", TransformError("a.js", 1, 1, "parse").Build(), 3},
		{"config", ConfigError("missing entry").Build(), 7},
		{"io", IOError("unwritable output").Build(), 11},
		{"orchestration", OrchestrationRace("manifest moved").Build(), 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, adapter.ExitCodeFor(tc.err))
		})
	}
}

func TestCLIAdapterFormatsTransformPosition(t *testing.T) {
	adapter := NewCLIAdapter(false, nil)
	msg := adapter.FormatError(TransformError("assets/app.js", 3, 17, "unexpected ')'").Build())
	assert.Equal(t, "assets/app.js:3:17: unexpected ')'", msg)
}
