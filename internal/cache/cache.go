// Package cache provides the TTL caches used in front of external collaborators:
// an in-process map and an optional Redis tier shared between replicas.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Memory is a mutex-guarded map with per-entry expiry. Safe for concurrent use.
type Memory[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry[V]
	now     func() time.Time
}

type entry[V any] struct {
	val     V
	expires time.Time
}

func NewMemory[V any](ttl time.Duration) *Memory[V] {
	return &Memory[V]{ttl: ttl, entries: map[string]entry[V]{}, now: time.Now}
}

func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		var zero V
		return zero, false
	}
	return e.val, true
}

func (m *Memory[V]) Set(key string, v V) {
	m.mu.Lock()
	m.entries[key] = entry[V]{val: v, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

// Clear drops every entry.
func (m *Memory[V]) Clear() {
	m.mu.Lock()
	m.entries = map[string]entry[V]{}
	m.mu.Unlock()
}

// Len counts entries, expired or not.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// SetClock replaces the time source. For tests.
func (m *Memory[V]) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Redis stores JSON-encoded values under prefix+key with a TTL.
type Redis[V any] struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis[V any](rdb *redis.Client, prefix string, ttl time.Duration) *Redis[V] {
	return &Redis[V]{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Get returns ok=false on a miss. Transport errors are returned so callers can log them.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var v V
	raw, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (r *Redis[V]) Set(ctx context.Context, key string, v V) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+key, data, r.ttl).Err()
}
