package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carenav/internal/geo"
	"carenav/internal/logging"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		obs  Observation
		kind string
		mult float64
	}{
		{"clear", Observation{Phrase: "Sunny", Temperature: 20, Visibility: 10}, Clear, 1.0},
		{"cloudy", Observation{Phrase: "Mostly cloudy", Temperature: 12, Visibility: 10}, Cloudy, 1.0},
		{"rain", Observation{Phrase: "Light rain", Temperature: 8, Visibility: 10}, Rain, 1.2},
		{"fog low visibility", Observation{Phrase: "Fog", Temperature: 3, Visibility: 0.5}, Fog, 1.5},
		{"thunder beats rain", Observation{Phrase: "Thunderstorms and rain", Temperature: 18, Visibility: 5}, Storm, 1.5},
		{"frozen snow", Observation{Phrase: "Snow", Temperature: -4, WindSpeed: 60, Visibility: 0.4}, Snow, 1.8},
		{"all penalties", Observation{Phrase: "Severe thunderstorm", Temperature: -1, WindSpeed: 80, Visibility: 0.1}, Storm, 1.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Classify(tc.obs)
			assert.Equal(t, tc.kind, c.Kind)
			assert.InDelta(t, tc.mult, c.TravelTimeMultiplier, 1e-9)
			assert.LessOrEqual(t, c.TravelTimeMultiplier, MaxMultiplier)
		})
	}
}

func TestAzureClientAndCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "1.1", r.URL.Query().Get("api-version"))
		_, _ = w.Write([]byte(`{"results":[{"phrase":"Rain showers","temperature":{"value":-2},"wind":{"speed":{"value":20}},"visibility":{"value":8}}]}`))
	}))
	defer srv.Close()

	az := NewAzureClient("k", 100, logging.Nop())
	az.BaseURL = srv.URL
	cp := NewCachedProvider(az, logging.Nop())

	c, err := cp.Current(context.Background(), 55.676, 12.568)
	require.NoError(t, err)
	assert.Equal(t, Rain, c.Kind)
	assert.InDelta(t, 1.3, c.TravelTimeMultiplier, 1e-9)
	assert.Equal(t, 8.0, c.Visibility)
	_, _ = cp.Current(context.Background(), 55.679, 12.571)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.InDelta(t, 1.3, cp.Multiplier(context.Background(), geo.Point{Lat: 55.68, Lng: 12.57}), 1e-9)
}

func TestCachedProviderDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	az := NewAzureClient("k", 100, logging.Nop())
	az.BaseURL = srv.URL

	c, err := NewCachedProvider(az, logging.Nop()).Current(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	c, err = NewCachedProvider(nil, logging.Nop()).Current(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.TravelTimeMultiplier)
}
