package travel

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"carenav/internal/errs"
	"carenav/internal/geo"
)

const defaultMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// GoogleClient calls the Distance Matrix API for a single origin/destination pair.
type GoogleClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Log     zerolog.Logger
}

func NewGoogleClient(apiKey string, rps float64, log zerolog.Logger) *GoogleClient {
	if rps <= 0 {
		rps = 10
	}
	return &GoogleClient{
		BaseURL: defaultMatrixURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(rps), int(math.Max(1, rps))),
		Log:     log,
	}
}

type matrixValue struct {
	Value float64 `json:"value"`
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status            string       `json:"status"`
			Distance          matrixValue  `json:"distance"`
			Duration          matrixValue  `json:"duration"`
			DurationInTraffic *matrixValue `json:"duration_in_traffic"`
		} `json:"elements"`
	} `json:"rows"`
}

func (c *GoogleClient) TravelTime(ctx context.Context, origin, dest geo.Point) (Result, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
	}
	q := url.Values{}
	q.Set("origins", fmt.Sprintf("%g,%g", origin.Lat, origin.Lng))
	q.Set("destinations", fmt.Sprintf("%g,%g", dest.Lat, dest.Lng))
	q.Set("departure_time", "now")
	q.Set("traffic_model", "best_guess")
	q.Set("key", c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("distance matrix: %v: %w", err, errs.ErrExternalUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("distance matrix: http %d: %w", resp.StatusCode, errs.ErrExternalUnavailable)
	}
	var body matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("distance matrix: decode: %v: %w", err, errs.ErrExternalUnavailable)
	}
	if len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		return Result{}, fmt.Errorf("distance matrix: empty response (%s): %w", body.Status, errs.ErrExternalUnavailable)
	}
	el := body.Rows[0].Elements[0]
	if el.Status != "OK" {
		return Result{}, fmt.Errorf("distance matrix: element status %s: %w", el.Status, errs.ErrExternalUnavailable)
	}
	res := Result{
		DistanceMeters:  int(el.Distance.Value),
		DurationMinutes: int(math.Ceil(el.Duration.Value / 60)),
	}
	if el.DurationInTraffic != nil {
		m := int(math.Ceil(el.DurationInTraffic.Value / 60))
		res.DurationInTrafficMinutes = &m
	}
	return res, nil
}
