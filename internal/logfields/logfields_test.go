package logfields

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHelpersProduceExpectedKeys(t *testing.T) {
	cases := []struct {
		attr slog.Attr
		key  string
	}{
		{Domain("asset"), KeyDomain},
		{BuildID("b-1"), KeyBuildID},
		{Module("css/site"), KeyModule},
		{Path("assets/css/site.css"), KeyPath},
		{Page("guide/setup.md"), KeyPage},
		{DurationMS(12.5), KeyDurationMS},
		{Cause("quiet"), KeyCause},
		{Clients(3), KeyClients},
	}
	for _, c := range cases {
		assert.Equal(t, c.key, c.attr.Key)
	}
}

func TestErrorAttr(t *testing.T) {
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
	assert.Equal(t, "", Error(nil).Value.String())
}
