// Package api implements the HTTP surface of the carenav service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"carenav/internal/cache"
	"carenav/internal/compliance"
	"carenav/internal/config"
	"carenav/internal/logging"
	"carenav/internal/metrics"
	"carenav/internal/opt"
	"carenav/internal/store"
	"carenav/internal/travel"
	"carenav/internal/weather"
	"carenav/internal/webhooks"
)

type Server struct {
	Store      store.Store
	Planner    *opt.Planner
	Travel     travel.Provider
	Weather    *weather.CachedProvider
	Compliance *compliance.Service
	Pub        *webhooks.Publisher
	Broker     EventBroker
	Config     *config.Config
	Log        zerolog.Logger

	closers []func() error
}

// NewServer wires every collaborator from cfg. An empty DATABASE_URL selects the
// in-memory store; an empty REDIS_URL keeps the broker and caches in-process.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log := logging.New("api")
	s := &Server{Config: cfg, Log: log}

	if strings.TrimSpace(cfg.Database.URL) == "" {
		s.Store = store.NewMemory()
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
	} else {
		pg, err := store.NewPostgres(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if cfg.Database.MigrationsDir != "" {
			if err := pg.MigrateDir(cfg.Database.MigrationsDir); err != nil {
				_ = pg.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		s.Store = pg
		s.closers = append(s.closers, pg.Close)
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		ropt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(ropt)
		s.closers = append(s.closers, rdb.Close)
		s.Broker = NewRedisBroker(rdb, logging.New("broker"))
	} else {
		s.Broker = NewBroker()
	}

	var upstream travel.Provider
	if cfg.Travel.GoogleAPIKey != "" {
		upstream = travel.NewGoogleClient(cfg.Travel.GoogleAPIKey, cfg.Travel.RPS, logging.New("travel"))
	}
	var shared *cache.Redis[travel.Result]
	if rdb != nil {
		shared = cache.NewRedis[travel.Result](rdb, "carenav:travel:", travel.CacheTTL)
	}
	s.Travel = travel.NewCachedProvider(upstream, shared, cfg.Travel.SpeedKph, logging.New("travel"))

	var wx weather.Provider
	if cfg.Weather.APIKey != "" {
		wx = weather.NewAzureClient(cfg.Weather.APIKey, cfg.Weather.RPS, logging.New("weather"))
	}
	s.Weather = weather.NewCachedProvider(wx, logging.New("weather"))

	s.Planner = opt.NewPlanner(cfg.Planning.Parallelism, logging.New("planner"))
	s.Compliance = compliance.NewService(s.Store, cfg.Compliance, logging.New("compliance"))
	s.Pub = webhooks.NewPublisher(s.Store, cfg.Webhooks.URLs, cfg.Webhooks.Secret, logging.New("webhooks"))
	return s, nil
}

// Close releases database and Redis connections.
func (s *Server) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Config.Webhooks.MaxAttempts, logging.New("webhooks"))
}

// Handler returns the full route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/optimize", s.OptimizeHandler)
	mux.HandleFunc("/v1/routes", s.RoutesIndexHandler)
	mux.HandleFunc("/v1/routes/", s.RouteByIDHandler)
	mux.HandleFunc("/v1/analytics/efficiency", s.EfficiencyHandler)
	mux.HandleFunc("/v1/admin/plan-metrics", s.PlanMetricsHandler)

	mux.HandleFunc("/v1/compliance/check/", s.ComplianceCheckHandler)
	mux.HandleFunc("/v1/compliance/validate-assignment", s.ValidateAssignmentHandler)
	mux.HandleFunc("/v1/compliance/weekly-hours/", s.WeeklyHoursHandler)

	mux.HandleFunc("/v1/ws/routes", s.RoutesWSHandler)

	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/v1/debug", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/docs", s.DocsHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	lim := newIPLimiter(s.Config.Server.RateRPS, s.Config.Server.RateBurst)
	return s.logMiddleware(metricsMiddleware(s.corsMiddleware(lim.middleware(mux))))
}
