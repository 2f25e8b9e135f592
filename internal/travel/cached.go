package travel

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"carenav/internal/cache"
	"carenav/internal/geo"
	"carenav/internal/metrics"
)

// CacheTTL is how long a live answer is reused.
const CacheTTL = 15 * time.Minute

// keyDecimals is the coordinate rounding used for cache keys (about 11 m).
const keyDecimals = 4

// CachedProvider fronts an upstream Provider with a memory cache, an optional Redis
// tier and the Estimate fallback. TravelTime never returns an error.
type CachedProvider struct {
	Upstream Provider // nil means estimate only
	Memory   *cache.Memory[Result]
	Shared   *cache.Redis[Result] // optional
	SpeedKph float64
	Log      zerolog.Logger
}

func NewCachedProvider(upstream Provider, shared *cache.Redis[Result], speedKph float64, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		Upstream: upstream,
		Memory:   cache.NewMemory[Result](CacheTTL),
		Shared:   shared,
		SpeedKph: speedKph,
		Log:      log,
	}
}

func (c *CachedProvider) TravelTime(ctx context.Context, origin, dest geo.Point) (Result, error) {
	key := geo.PairKey(origin, dest, keyDecimals)
	if r, ok := c.Memory.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("travel", "hit").Inc()
		return r, nil
	}
	if c.Shared != nil {
		r, ok, err := c.Shared.Get(ctx, key)
		if err != nil {
			c.Log.Warn().Err(err).Msg("travel cache read failed")
		}
		if ok {
			c.Memory.Set(key, r)
			metrics.CacheLookups.WithLabelValues("travel", "hit").Inc()
			return r, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("travel", "miss").Inc()

	if c.Upstream == nil {
		return Estimate(origin, dest, c.SpeedKph), nil
	}
	r, err := c.Upstream.TravelTime(ctx, origin, dest)
	if err != nil {
		metrics.ProviderFallbacks.WithLabelValues("travel").Inc()
		c.Log.Warn().Err(err).Str("pair", key).Msg("travel provider failed, using estimate")
		return Estimate(origin, dest, c.SpeedKph), nil
	}
	c.Memory.Set(key, r)
	if c.Shared != nil {
		if err := c.Shared.Set(ctx, key, r); err != nil {
			c.Log.Warn().Err(err).Msg("travel cache write failed")
		}
	}
	return r, nil
}

// Clear empties the in-process tier.
func (c *CachedProvider) Clear() { c.Memory.Clear() }
