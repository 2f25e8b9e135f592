package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Kalundborg harbour to Holbæk station, roughly 37 km apart.
	a := Point{Lat: 55.6794, Lng: 11.0884}
	b := Point{Lat: 55.7165, Lng: 11.7128}
	d := HaversineKm(a, b)
	assert.InDelta(t, 39.3, d, 1.0)
	assert.Zero(t, HaversineMeters(a, a))
	assert.InDelta(t, HaversineMeters(a, b), HaversineMeters(b, a), 1e-6)
}

func TestAngleQuadrants(t *testing.T) {
	c := Point{Lat: 0, Lng: 0}
	assert.InDelta(t, 0, Angle(c, Point{Lat: 1, Lng: 0}), 1e-9)
	assert.InDelta(t, math.Pi/2, Angle(c, Point{Lat: 0, Lng: 1}), 1e-9)
	assert.InDelta(t, -math.Pi/2, Angle(c, Point{Lat: 0, Lng: -1}), 1e-9)
	assert.InDelta(t, math.Pi, Angle(c, Point{Lat: -1, Lng: 0}), 1e-9)
}

func TestCentroidAndKeys(t *testing.T) {
	assert.Equal(t, Point{}, Centroid(nil))
	c := Centroid([]Point{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}})
	assert.Equal(t, Point{Lat: 2, Lng: 3}, c)

	assert.Equal(t, "55.6794,11.0884", Key(Point{Lat: 55.67941, Lng: 11.08836}, 4))
	assert.Equal(t, "55.68,11.09", Key(Point{Lat: 55.67941, Lng: 11.08836}, 2))
	assert.Equal(t, "1.0,2.0-3.0,4.0", PairKey(Point{Lat: 1, Lng: 2}, Point{Lat: 3, Lng: 4}, 1))
}

func TestValid(t *testing.T) {
	assert.True(t, Point{Lat: 55.6, Lng: 11.1}.Valid())
	assert.False(t, Point{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Point{Lat: math.NaN(), Lng: 0}.Valid())
}
