package weather

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"carenav/internal/cache"
	"carenav/internal/geo"
	"carenav/internal/metrics"
)

// CacheTTL is how long a condition is reused for the same ~1 km cell.
const CacheTTL = 30 * time.Minute

// CachedProvider caches conditions by 2-decimal coordinates and answers Default on failure.
type CachedProvider struct {
	Upstream Provider // nil means Default only
	Memory   *cache.Memory[Condition]
	Log      zerolog.Logger
}

func NewCachedProvider(upstream Provider, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{Upstream: upstream, Memory: cache.NewMemory[Condition](CacheTTL), Log: log}
}

func (c *CachedProvider) Current(ctx context.Context, lat, lng float64) (Condition, error) {
	key := geo.Key(geo.Point{Lat: lat, Lng: lng}, 2)
	if cond, ok := c.Memory.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("weather", "hit").Inc()
		return cond, nil
	}
	metrics.CacheLookups.WithLabelValues("weather", "miss").Inc()
	if c.Upstream == nil {
		return Default(), nil
	}
	cond, err := c.Upstream.Current(ctx, lat, lng)
	if err != nil {
		metrics.ProviderFallbacks.WithLabelValues("weather").Inc()
		c.Log.Warn().Err(err).Str("cell", key).Msg("weather provider failed, using default")
		return Default(), nil
	}
	c.Memory.Set(key, cond)
	return cond, nil
}

// Multiplier is the travel-time multiplier at p.
func (c *CachedProvider) Multiplier(ctx context.Context, p geo.Point) float64 {
	cond, _ := c.Current(ctx, p.Lat, p.Lng)
	return cond.TravelTimeMultiplier
}
