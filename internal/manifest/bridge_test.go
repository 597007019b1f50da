package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/themekit/internal/ferrors"
)

func TestReadBeforePublishIsManifestMissing(t *testing.T) {
	b := NewBridge(filepath.Join(t.TempDir(), "manifest.json"))

	_, err := b.Read()
	require.Error(t, err)
	assert.True(t, ferrors.IsManifestMissing(err))
	assert.Equal(t, uint64(0), b.Version())
}

func TestPublishRoundTrip(t *testing.T) {
	b := NewBridge(filepath.Join(t.TempDir(), "manifest.json"))

	m := New("build-1")
	m.Set("main.css", Asset{Path: "/assets/main.ab12cd34ef56.css", ContentHash: "ab12", SizeBytes: 120})

	require.NoError(t, b.Publish(m))
	assert.Equal(t, uint64(1), m.Version)

	got, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Version)
	a, ok := got.Lookup("main.css")
	require.True(t, ok)
	assert.Equal(t, "/assets/main.ab12cd34ef56.css", a.Path)
}

func TestVersionMonotonicAcrossBridges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	b1 := NewBridge(path)
	require.NoError(t, b1.Publish(New("build-1")))
	require.NoError(t, b1.Publish(New("build-2")))
	assert.Equal(t, uint64(2), b1.Version())

	// A fresh bridge over the same output dir continues the sequence.
	b2 := NewBridge(path)
	m := New("build-3")
	require.NoError(t, b2.Publish(m))
	assert.Equal(t, uint64(3), m.Version)
}

// Concurrent publishes and reads must never yield a malformed manifest: the
// rename either happened or it did not.
func TestConcurrentPublishRead(t *testing.T) {
	b := NewBridge(filepath.Join(t.TempDir(), "manifest.json"))
	require.NoError(t, b.Publish(New("seed")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		i := 0
		for ctx.Err() == nil {
			m := New(fmt.Sprintf("build-%d", i))
			m.Set("main.css", Asset{Path: fmt.Sprintf("/assets/main.%012d.css", i), ContentHash: fmt.Sprintf("%012d", i)})
			if !assert.NoError(t, b.Publish(m)) {
				return
			}
			i++
		}
	}()

	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			m, err := b.Read()
			if !assert.NoError(t, err, "reader must never see a partial manifest") {
				return
			}
			if !assert.NotNil(t, m.Assets) {
				return
			}
		}
	}()

	wg.Wait()
}

func TestContentFingerprintTracksBytesOnly(t *testing.T) {
	m1 := New("a")
	m1.Set("main.css", Asset{Path: "/assets/main.x.css", ContentHash: "x"})
	m2 := New("b")
	m2.GeneratedAt = m1.GeneratedAt.Add(time.Hour)
	m2.Version = 9
	m2.Set("main.css", Asset{Path: "/assets/main.x.css", ContentHash: "x"})

	assert.Equal(t, m1.ContentFingerprint(), m2.ContentFingerprint())

	m2.Set("main.css", Asset{Path: "/assets/main.y.css", ContentHash: "y"})
	assert.NotEqual(t, m1.ContentFingerprint(), m2.ContentFingerprint())
}

func TestHeadCommitOutsideRepo(t *testing.T) {
	assert.Equal(t, "", HeadCommit(t.TempDir()))
}
