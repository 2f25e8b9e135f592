package api

import (
	"net/http"
	"time"

	"carenav/internal/buildinfo"
)

// DebugJSON reports build info and which optional collaborators are configured.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"addr":               c.Server.Addr,
			"rateRps":            c.Server.RateRPS,
			"rateBurst":          c.Server.RateBurst,
			"planning":           c.Planning,
			"compliance":         c.Compliance,
			"webhookUrls":        len(c.Webhooks.URLs),
			"webhookMaxAttempts": c.Webhooks.MaxAttempts,
			"hasDatabaseUrl":     c.Database.URL != "",
			"hasRedisUrl":        c.Redis.URL != "",
			"hasTravelKey":       c.Travel.GoogleAPIKey != "",
			"hasWeatherKey":      c.Weather.APIKey != "",
		},
	})
}
