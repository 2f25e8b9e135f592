// Package geo holds the small amount of spherical geometry the planner needs.
package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether p lies inside the latitude/longitude ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// HaversineMeters returns the great-circle distance between a and b.
func HaversineMeters(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// HaversineKm is HaversineMeters in kilometres.
func HaversineKm(a, b Point) float64 { return HaversineMeters(a, b) / 1000 }

// Angle returns the planar angle of p seen from center, in radians (-π, π].
// Longitude offset is the first atan2 argument so sectors sweep from south through east.
func Angle(center, p Point) float64 {
	return math.Atan2(p.Lng-center.Lng, p.Lat-center.Lat)
}

// Centroid returns the arithmetic mean of pts. The zero Point is returned for an empty slice.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c.Lat += p.Lat
		c.Lng += p.Lng
	}
	n := float64(len(pts))
	return Point{Lat: c.Lat / n, Lng: c.Lng / n}
}

// Key renders p with the given number of decimals, for cache keys.
func Key(p Point, decimals int) string {
	return fmt.Sprintf("%.*f,%.*f", decimals, p.Lat, decimals, p.Lng)
}

// PairKey renders an origin/destination pair with the given number of decimals.
func PairKey(from, to Point, decimals int) string {
	return Key(from, decimals) + "-" + Key(to, decimals)
}
