package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"carenav/internal/errs"
)

const defaultConditionsURL = "https://atlas.microsoft.com/weather/currentConditions/json"

// AzureClient reads current conditions from Azure Maps Weather.
type AzureClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Log     zerolog.Logger
}

func NewAzureClient(apiKey string, rps float64, log zerolog.Logger) *AzureClient {
	if rps <= 0 {
		rps = 5
	}
	return &AzureClient{
		BaseURL: defaultConditionsURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(rps), 1),
		Log:     log,
	}
}

type measured struct {
	Value *float64 `json:"value"`
}

type conditionsResponse struct {
	Results []struct {
		Phrase               string   `json:"phrase"`
		Temperature          measured `json:"temperature"`
		Visibility           measured `json:"visibility"`
		PrecipitationSummary struct {
			PastHour measured `json:"pastHour"`
		} `json:"precipitationSummary"`
		Wind struct {
			Speed measured `json:"speed"`
		} `json:"wind"`
	} `json:"results"`
}

func (c *AzureClient) Current(ctx context.Context, lat, lng float64) (Condition, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return Condition{}, err
		}
	}
	q := url.Values{}
	q.Set("api-version", "1.1")
	q.Set("query", fmt.Sprintf("%g,%g", lat, lng))
	q.Set("subscription-key", c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Condition{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Condition{}, fmt.Errorf("weather: %v: %w", err, errs.ErrExternalUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Condition{}, fmt.Errorf("weather: http %d: %w", resp.StatusCode, errs.ErrExternalUnavailable)
	}
	var body conditionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Condition{}, fmt.Errorf("weather: decode: %v: %w", err, errs.ErrExternalUnavailable)
	}
	if len(body.Results) == 0 {
		return Condition{}, fmt.Errorf("weather: no results: %w", errs.ErrExternalUnavailable)
	}
	r := body.Results[0]
	return Classify(Observation{
		Phrase:        r.Phrase,
		Temperature:   or(r.Temperature.Value, 15),
		Precipitation: or(r.PrecipitationSummary.PastHour.Value, 0),
		WindSpeed:     or(r.Wind.Speed.Value, 0),
		Visibility:    or(r.Visibility.Value, 10),
	}), nil
}

func or(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
