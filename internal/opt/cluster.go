package opt

import (
	"fmt"
	"sort"

	"carenav/internal/errs"
	"carenav/internal/geo"
	"carenav/internal/model"
)

// Cluster partitions stops into n angular sectors around center.
//
// Stops are ordered by their angle from center (stable, so equal angles keep input order)
// and cut into n contiguous chunks of ceil(len(stops)/n). The last chunks may be short or empty,
// but exactly n clusters are always returned.
func Cluster(stops []model.Stop, center geo.Point, n int) ([][]model.Stop, error) {
	if n < 1 {
		return nil, fmt.Errorf("cluster: worker count %d: %w", n, errs.ErrValidation)
	}
	type angled struct {
		stop  model.Stop
		angle float64
	}
	sorted := make([]angled, len(stops))
	for i, s := range stops {
		sorted[i] = angled{stop: s, angle: geo.Angle(center, s.Location)}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].angle < sorted[j].angle })

	size := (len(stops) + n - 1) / n
	out := make([][]model.Stop, n)
	for i := 0; i < n; i++ {
		lo := i * size
		hi := lo + size
		if lo > len(sorted) {
			lo = len(sorted)
		}
		if hi > len(sorted) {
			hi = len(sorted)
		}
		chunk := make([]model.Stop, 0, hi-lo)
		for _, a := range sorted[lo:hi] {
			chunk = append(chunk, a.stop)
		}
		out[i] = chunk
	}
	return out, nil
}
