package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carenav/internal/logging"
	"carenav/internal/store"
)

func TestPublisherEmitQueuesPerURL(t *testing.T) {
	mem := store.NewMemory()
	p := NewPublisher(mem, []string{"http://a.example/hook", "http://b.example/hook"}, "s3cret", logging.Nop())
	n := p.Emit(context.Background(), EventRoutesUpdated, map[string]any{"date": "2024-03-04", "routes": 2})
	assert.Equal(t, 2, n)

	due, err := mem.FetchDueWebhookDeliveries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	var env map[string]any
	require.NoError(t, json.Unmarshal(due[0].Payload, &env))
	assert.Equal(t, EventRoutesUpdated, env["type"])
	assert.Equal(t, "s3cret", due[0].Secret)

	assert.Equal(t, 0, NewPublisher(mem, nil, "", logging.Nop()).Emit(context.Background(), EventRoutesUpdated, nil))
}

func TestWorkerDeliversSigned(t *testing.T) {
	var gotSig, gotType string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	id, err := mem.EnqueueWebhook(context.Background(), EventRoutesUpdated, srv.URL, "secret", []byte(`{"id":"evt1"}`))
	require.NoError(t, err)

	w := NewWorker(mem, 3, logging.Nop())
	w.HTTP = srv.Client()
	assert.Equal(t, 1, w.processOnce(context.Background()))

	assert.Equal(t, EventRoutesUpdated, gotType)
	assert.True(t, VerifyHMAC("secret", body, gotSig))
	status, attempts := mem.DeliveryStatus(id)
	assert.Equal(t, "delivered", status)
	assert.Equal(t, 1, attempts)
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	now := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	mem := store.NewMemory()
	mem.SetClock(clock)
	id, err := mem.EnqueueWebhook(context.Background(), EventRoutesUpdated, srv.URL, "", []byte(`{}`))
	require.NoError(t, err)

	w := NewWorker(mem, 2, logging.Nop())
	w.HTTP = srv.Client()
	w.now = clock

	w.processOnce(context.Background())
	status, _ := mem.DeliveryStatus(id)
	assert.Equal(t, "retry", status)

	// not due until the backoff elapses
	assert.Equal(t, 0, w.processOnce(context.Background()))
	now = now.Add(nextBackoff(0))
	w.processOnce(context.Background())

	status, attempts := mem.DeliveryStatus(id)
	assert.Equal(t, "failed", status)
	assert.Equal(t, 2, attempts)
	assert.EqualValues(t, 2, hits.Load())
	require.Len(t, mem.DeadLetters(), 1)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(0))
	assert.Equal(t, 8*time.Second, nextBackoff(3))
	assert.Equal(t, time.Hour, nextBackoff(40))
	assert.Equal(t, time.Second, nextBackoff(-1))
}

func TestVerifyHMACRejectsGarbage(t *testing.T) {
	assert.False(t, VerifyHMAC("k", []byte("x"), "zz"))
	assert.False(t, VerifyHMAC("k", []byte("x"), SignHMAC("other", []byte("x"))))
}
