package config

import (
	"fmt"
	"strings"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr       string  `yaml:"addr"`
	CORSOrigin string  `yaml:"corsOrigin"`
	RateRPS    float64 `yaml:"rateRps"`   // per remote address
	RateBurst  int     `yaml:"rateBurst"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":3001"
	}
	if c.CORSOrigin == "" {
		c.CORSOrigin = "http://localhost:5173"
	}
	if c.RateRPS == 0 {
		c.RateRPS = 20
	}
	if c.RateBurst == 0 {
		c.RateBurst = 40
	}
}

func (c ServerConfig) Validate() error {
	if c.RateRPS < 0 || c.RateBurst < 0 {
		return fmt.Errorf("server: rate limits must not be negative")
	}
	return nil
}

// DatabaseConfig selects Postgres. An empty URL runs on the in-memory store.
type DatabaseConfig struct {
	URL           string `yaml:"url"`
	MigrationsDir string `yaml:"migrationsDir"`
}

func (c *DatabaseConfig) SetDefaults() {
	if c.MigrationsDir == "" {
		c.MigrationsDir = "db/migrations"
	}
}

// RedisConfig enables the shared broker and travel cache tier when URL is set.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// PlanningConfig holds the sequencing parameters.
type PlanningConfig struct {
	Parallelism       int   `yaml:"parallelism"`
	TwoOptPasses      int   `yaml:"twoOptPasses"`
	BreakMinutes      int   `yaml:"breakMinutes"`
	BreakAfterMinutes int   `yaml:"breakAfterMinutes"`
	WorkStartMinutes  int   `yaml:"workStartMinutes"` // default window for workers without one
	WorkEndMinutes    int   `yaml:"workEndMinutes"`
	PreserveLocked    *bool `yaml:"preserveLocked"`
}

func (c *PlanningConfig) SetDefaults() {
	if c.Parallelism == 0 {
		c.Parallelism = 4
	}
	if c.BreakMinutes == 0 && c.BreakAfterMinutes == 0 {
		c.BreakMinutes, c.BreakAfterMinutes = 30, 240
	}
	if c.WorkStartMinutes == 0 && c.WorkEndMinutes == 0 {
		c.WorkStartMinutes, c.WorkEndMinutes = 7*60, 16*60
	}
	if c.PreserveLocked == nil {
		t := true
		c.PreserveLocked = &t
	}
}

func (c PlanningConfig) Validate() error {
	if c.Parallelism < 1 {
		return fmt.Errorf("planning: parallelism must be at least 1")
	}
	if c.WorkEndMinutes <= c.WorkStartMinutes || c.WorkEndMinutes > 24*60 {
		return fmt.Errorf("planning: work window %d..%d is invalid", c.WorkStartMinutes, c.WorkEndMinutes)
	}
	if c.BreakMinutes < 0 || c.BreakAfterMinutes < 0 || c.TwoOptPasses < 0 {
		return fmt.Errorf("planning: break and twoOptPasses must not be negative")
	}
	return nil
}

// TravelConfig configures the distance-matrix client. No key means estimates only.
type TravelConfig struct {
	GoogleAPIKey     string  `yaml:"googleApiKey"`
	RPS              float64 `yaml:"rps"`
	SpeedKph         float64 `yaml:"speedKph"`
	PrefetchParallel int     `yaml:"prefetchParallel"`
}

func (c *TravelConfig) SetDefaults() {
	if c.RPS == 0 {
		c.RPS = 10
	}
	if c.SpeedKph == 0 {
		c.SpeedKph = 30
	}
	if c.PrefetchParallel == 0 {
		c.PrefetchParallel = 8
	}
}

func (c TravelConfig) Validate() error {
	if c.SpeedKph <= 0 {
		return fmt.Errorf("travel: speedKph must be positive")
	}
	return nil
}

// WeatherConfig configures the conditions client. No key means multiplier 1.0.
type WeatherConfig struct {
	APIKey string  `yaml:"apiKey"`
	RPS    float64 `yaml:"rps"`
}

func (c *WeatherConfig) SetDefaults() {
	if c.RPS == 0 {
		c.RPS = 5
	}
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

func (c LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Level)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("logging: unknown format %q", c.Format)
	}
	return nil
}

// WebhooksConfig lists the receivers of routes.updated.
type WebhooksConfig struct {
	URLs        []string `yaml:"urls"`
	Secret      string   `yaml:"secret"`
	MaxAttempts int      `yaml:"maxAttempts"`
}

func (c *WebhooksConfig) SetDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 10
	}
}

func (c WebhooksConfig) Validate() error {
	for _, u := range c.URLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("webhooks: %q is not an http(s) URL", u)
		}
	}
	return nil
}
