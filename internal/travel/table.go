package travel

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"carenav/internal/geo"
)

// Table is an immutable pre-fetched travel matrix. It satisfies the sequencer's
// synchronous TravelTimer; pairs that were not fetched are estimated.
type Table struct {
	minutes    map[string]int
	multiplier float64
	speedKph   float64
}

// Prefetch asks p for every ordered pair of distinct points, at most parallel at a time.
// multiplier scales every duration (weather); values below 1 are treated as 1.
func Prefetch(ctx context.Context, p Provider, points []geo.Point, multiplier float64, parallel int) (*Table, error) {
	if multiplier < 1 {
		multiplier = 1
	}
	if parallel <= 0 {
		parallel = 8
	}
	uniq := make([]geo.Point, 0, len(points))
	seen := make(map[string]struct{}, len(points))
	for _, pt := range points {
		k := geo.Key(pt, keyDecimals)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, pt)
	}

	type pair struct{ from, to geo.Point }
	pairs := make([]pair, 0, len(uniq)*len(uniq))
	for _, a := range uniq {
		for _, b := range uniq {
			if geo.Key(a, keyDecimals) != geo.Key(b, keyDecimals) {
				pairs = append(pairs, pair{a, b})
			}
		}
	}
	results := make([]int, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, pr := range pairs {
		i, pr := i, pr
		g.Go(func() error {
			r, err := p.TravelTime(gctx, pr.from, pr.to)
			if err != nil {
				return err
			}
			results[i] = r.Minutes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := &Table{minutes: make(map[string]int, len(pairs)), multiplier: multiplier, speedKph: DefaultSpeedKph}
	for i, pr := range pairs {
		t.minutes[geo.PairKey(pr.from, pr.to, keyDecimals)] = results[i]
	}
	return t, nil
}

// TravelMinutes returns the scaled minutes from one point to another, rounded up.
func (t *Table) TravelMinutes(from, to geo.Point) int {
	key := geo.PairKey(from, to, keyDecimals)
	if geo.Key(from, keyDecimals) == geo.Key(to, keyDecimals) {
		return 0
	}
	m, ok := t.minutes[key]
	if !ok {
		m = Estimate(from, to, t.speedKph).DurationMinutes
	}
	// tolerance keeps 10*1.1 at 11 instead of 12
	return int(math.Ceil(float64(m)*t.multiplier - 1e-9))
}

// Len is the number of fetched pairs.
func (t *Table) Len() int { return len(t.minutes) }
