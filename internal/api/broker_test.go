package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carenav/internal/logging"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicRoutes)

	b.Publish(TopicRoutes, Event{Type: "routes.updated", Data: map[string]any{"routes": 1}})
	b.Publish("other", Event{Type: "ignored"})

	select {
	case got := <-ch:
		assert.Equal(t, "routes.updated", got.Type)
		assert.Equal(t, 1, got.Data["routes"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(TopicRoutes, ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
	// second unsubscribe is a no-op
	b.Unsubscribe(TopicRoutes, ch)
}

func TestRedisBrokerRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := NewRedisBroker(rdb, logging.Nop())
	ch := b.Subscribe(TopicRoutes)
	b.Publish(TopicRoutes, Event{Type: "routes.updated", Data: map[string]any{"date": "2024-03-04"}})

	select {
	case got := <-ch:
		assert.Equal(t, "routes.updated", got.Type)
		assert.Equal(t, "2024-03-04", got.Data["date"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}

	b.Unsubscribe(TopicRoutes, ch)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
