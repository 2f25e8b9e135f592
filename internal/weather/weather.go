// Package weather turns current conditions into a travel-time multiplier.
package weather

import (
	"context"
	"math"
	"strings"
)

// Kinds of weather the multiplier distinguishes.
const (
	Clear  = "clear"
	Cloudy = "cloudy"
	Rain   = "rain"
	Snow   = "snow"
	Fog    = "fog"
	Storm  = "storm"
)

// MaxMultiplier caps the travel-time multiplier.
const MaxMultiplier = 2.0

// Condition is the current weather at a point.
type Condition struct {
	Temperature          float64 `json:"temperature"`   // °C
	Precipitation        float64 `json:"precipitation"` // mm, past hour
	WindSpeed            float64 `json:"windSpeed"`     // km/h
	Visibility           float64 `json:"visibility"`    // km
	Kind                 string  `json:"condition"`
	TravelTimeMultiplier float64 `json:"travelTimeMultiplier"`
}

// Default is what callers get when no live answer is available.
func Default() Condition {
	return Condition{Temperature: 15, WindSpeed: 10, Visibility: 10, Kind: Clear, TravelTimeMultiplier: 1}
}

// Observation is the raw input to Classify.
type Observation struct {
	Phrase        string
	Temperature   float64
	Precipitation float64
	WindSpeed     float64
	Visibility    float64
}

// Classify maps an observation to a Condition. The first matching phrase wins.
func Classify(o Observation) Condition {
	phrase := strings.ToLower(o.Phrase)
	kind, m := Clear, 1.0
	switch {
	case strings.Contains(phrase, "storm") || strings.Contains(phrase, "thunder"):
		kind, m = Storm, 1.5
	case strings.Contains(phrase, "snow") || strings.Contains(phrase, "sleet"):
		kind, m = Snow, 1.4
	case strings.Contains(phrase, "rain") || strings.Contains(phrase, "shower"):
		kind, m = Rain, 1.2
	case strings.Contains(phrase, "fog") || strings.Contains(phrase, "mist"):
		kind, m = Fog, 1.3
	case strings.Contains(phrase, "cloud") || strings.Contains(phrase, "overcast"):
		kind, m = Cloudy, 1.0
	}
	if o.Visibility < 1 {
		m += 0.2
	}
	if o.WindSpeed > 50 {
		m += 0.1
	}
	if o.Temperature < 0 {
		m += 0.1
	}
	return Condition{
		Temperature:          o.Temperature,
		Precipitation:        o.Precipitation,
		WindSpeed:            o.WindSpeed,
		Visibility:           o.Visibility,
		Kind:                 kind,
		TravelTimeMultiplier: math.Min(math.Round(m*100)/100, MaxMultiplier),
	}
}

// Provider returns current conditions at a point.
type Provider interface {
	Current(ctx context.Context, lat, lng float64) (Condition, error)
}
