package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"carenav/internal/store"
)

// EventRoutesUpdated is emitted after an optimize run persists its routes.
const EventRoutesUpdated = "routes.updated"

// Publisher enqueues events for every configured receiver. Delivery happens in Worker.
type Publisher struct {
	Store  store.Store
	URLs   []string
	Secret string
	Log    zerolog.Logger
}

func NewPublisher(s store.Store, urls []string, secret string, log zerolog.Logger) *Publisher {
	return &Publisher{Store: s, URLs: urls, Secret: secret, Log: log}
}

// Emit wraps data in an event envelope and queues one delivery per URL.
// It reports how many deliveries were queued.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) int {
	if p == nil || len(p.URLs) == 0 {
		return 0
	}
	payload := map[string]any{
		"id":   "evt_" + uuid.New().String(),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		p.Log.Error().Err(err).Str("event", eventType).Msg("encode webhook payload")
		return 0
	}
	n := 0
	for _, u := range p.URLs {
		if _, err := p.Store.EnqueueWebhook(ctx, eventType, u, p.Secret, body); err != nil {
			p.Log.Warn().Err(err).Str("url", u).Str("event", eventType).Msg("enqueue webhook")
			continue
		}
		n++
	}
	return n
}
