// Package travel answers how long it takes to drive between two coordinates.
//
// Live answers come from a distance-matrix service; every failure degrades to a
// great-circle estimate so planning never stops on a provider outage.
package travel

import (
	"context"
	"math"

	"carenav/internal/geo"
)

// DefaultSpeedKph is the average speed used by Estimate.
const DefaultSpeedKph = 30.0

// Result is one origin/destination answer.
type Result struct {
	DistanceMeters           int  `json:"distanceMeters"`
	DurationMinutes          int  `json:"durationMinutes"`
	DurationInTrafficMinutes *int `json:"durationInTrafficMinutes,omitempty"`
}

// Minutes prefers the traffic-aware duration when the provider returned one.
func (r Result) Minutes() int {
	if r.DurationInTrafficMinutes != nil {
		return *r.DurationInTrafficMinutes
	}
	return r.DurationMinutes
}

// Provider returns the travel time between origin and dest.
type Provider interface {
	TravelTime(ctx context.Context, origin, dest geo.Point) (Result, error)
}

// Estimate is the great-circle fallback: distance at speedKph, minutes rounded up.
func Estimate(origin, dest geo.Point, speedKph float64) Result {
	if speedKph <= 0 {
		speedKph = DefaultSpeedKph
	}
	m := geo.HaversineMeters(origin, dest)
	return Result{
		DistanceMeters:  int(math.Round(m)),
		DurationMinutes: int(math.Ceil(m / 1000 / speedKph * 60)),
	}
}

// EstimateProvider answers every request with Estimate. Used when no API key is configured.
type EstimateProvider struct{ SpeedKph float64 }

func (e EstimateProvider) TravelTime(_ context.Context, origin, dest geo.Point) (Result, error) {
	return Estimate(origin, dest, e.SpeedKph), nil
}
