// Package config loads service configuration from an optional YAML file, a .env file
// and environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"carenav/internal/compliance"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Planning   PlanningConfig   `yaml:"planning"`
	Travel     TravelConfig     `yaml:"travel"`
	Weather    WeatherConfig    `yaml:"weather"`
	Compliance compliance.Rules `yaml:"compliance"`
	Logging    LoggingConfig    `yaml:"logging"`
	Webhooks   WebhooksConfig   `yaml:"webhooks"`
}

// Load reads path (skipped when empty or missing), then .env, then the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	// a missing .env is normal outside development
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	setString(&c.Server.CORSOrigin, "FRONTEND_URL")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Travel.GoogleAPIKey, "GOOGLE_MAPS_API_KEY")
	setString(&c.Weather.APIKey, "WEATHER_API_KEY")
	setString(&c.Logging.Level, "LOG_LEVEL")
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		c.Logging.Format = "console"
	}
	if v := os.Getenv("WEBHOOK_URLS"); v != "" {
		c.Webhooks.URLs = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.Webhooks.URLs = append(c.Webhooks.URLs, u)
			}
		}
	}
	setString(&c.Webhooks.Secret, "WEBHOOK_SECRET")
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Webhooks.MaxAttempts = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// SetDefaults fills every zero field of every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Database.SetDefaults()
	c.Planning.SetDefaults()
	c.Travel.SetDefaults()
	c.Weather.SetDefaults()
	c.Logging.SetDefaults()
	c.Webhooks.SetDefaults()
	d := compliance.DefaultRules()
	if c.Compliance.RestMinutes == 0 {
		c.Compliance.RestMinutes = d.RestMinutes
	}
	if c.Compliance.WeeklyCapHours == 0 {
		c.Compliance.WeeklyCapHours = d.WeeklyCapHours
	}
	if c.Compliance.MaxConsecutiveDays == 0 {
		c.Compliance.MaxConsecutiveDays = d.MaxConsecutiveDays
	}
	if c.Compliance.WarningRatio == 0 {
		c.Compliance.WarningRatio = d.WarningRatio
	}
	if c.Compliance.ConsecutiveWarningFloor == 0 {
		c.Compliance.ConsecutiveWarningFloor = c.Compliance.MaxConsecutiveDays - 1
	}
	if c.Compliance.AveragingMonths == 0 {
		c.Compliance.AveragingMonths = d.AveragingMonths
	}
}

func (c Config) Validate() error {
	for _, v := range []interface{ Validate() error }{c.Server, c.Planning, c.Travel, c.Logging, c.Webhooks, c.Compliance} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
