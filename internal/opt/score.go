package opt

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"carenav/internal/geo"
	"carenav/internal/model"
)

// Score is the quality summary of one sequenced route.
type Score struct {
	Efficiency           float64
	TotalDistanceKm      float64
	TotalDurationMinutes int
	Assigned             int
	ClusterSize          int
}

// Efficiency is assigned/clusterSize rounded to two decimals, 0 for an empty cluster.
func Efficiency(assigned, clusterSize int) float64 {
	if clusterSize <= 0 {
		return 0
	}
	e := float64(assigned) / float64(clusterSize)
	if e > 1 {
		e = 1
	}
	return round2(e)
}

// ScoreRoute scores a tour that started at home.
// Distance covers only the legs to committed stops; duration is the sequencer's final elapsed time.
func ScoreRoute(home geo.Point, s Sequenced) Score {
	return Score{
		Efficiency:           Efficiency(len(s.Assignments), s.ClusterSize),
		TotalDistanceKm:      round2(pathKm(home, s.Path)),
		TotalDurationMinutes: s.ElapsedMinutes,
		Assigned:             len(s.Assignments),
		ClusterSize:          s.ClusterSize,
	}
}

// AggregateEfficiency averages the efficiencies that are set. ok is false when none are.
func AggregateEfficiency(routes []model.Route) (mean float64, ok bool) {
	vals := make([]float64, 0, len(routes))
	for _, r := range routes {
		if r.Efficiency != nil {
			vals = append(vals, *r.Efficiency)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	return round2(stat.Mean(vals, nil)), true
}

func pathKm(home geo.Point, path []geo.Point) float64 {
	total := 0.0
	cur := home
	for _, p := range path {
		total += geo.HaversineKm(cur, p)
		cur = p
	}
	return total
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
