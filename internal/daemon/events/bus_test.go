package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToTypedSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := Subscribe[BuildRequested](bus, 1)
	defer unsub()

	evt := BuildRequested{Reason: "edit", RequestedAt: time.Now()}
	require.NoError(t, bus.Publish(context.Background(), evt))

	got := <-ch
	assert.Equal(t, "edit", got.Reason)
}

func TestPublishSkipsOtherTypes(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := Subscribe[BuildNow](bus, 1)
	defer unsub()

	require.NoError(t, bus.Publish(context.Background(), BuildRequested{}))
	select {
	case <-ch:
		t.Fatal("BuildNow subscriber must not receive BuildRequested")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := Subscribe[WatchEvent](bus, 1)
	assert.Equal(t, 1, SubscriberCount[WatchEvent](bus))

	unsub()
	assert.Equal(t, 0, SubscriberCount[WatchEvent](bus))
	_, open := <-ch
	assert.False(t, open)
}

func TestCloseClosesAllSubscriptions(t *testing.T) {
	bus := NewBus()
	ch1, _ := Subscribe[BuildNow](bus, 1)
	ch2, _ := Subscribe[ManifestPublished](bus, 1)

	bus.Close()

	_, open := <-ch1
	assert.False(t, open)
	_, open = <-ch2
	assert.False(t, open)

	err := bus.Publish(context.Background(), BuildNow{})
	assert.Error(t, err, "publishing on a closed bus fails")
}

func TestPublishBackpressureRespectsContext(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Unbuffered subscriber that never reads.
	_, unsub := Subscribe[BuildNow](bus, 0)
	defer unsub()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := bus.Publish(ctx, BuildNow{})
	require.Error(t, err)
}
