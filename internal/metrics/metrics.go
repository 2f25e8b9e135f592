package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlanningRuns counts planning runs by outcome (ok, infeasible, error)
	PlanningRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planning_runs_total", Help: "Planning runs by outcome."},
		[]string{"outcome"},
	)
	// StopsPlanned counts stops by result (assigned, unassigned)
	StopsPlanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planning_stops_total", Help: "Stops seen by planning runs, by result."},
		[]string{"result"},
	)
	RouteEfficiency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_efficiency_ratio", Help: "Per-route efficiency.", Buckets: []float64{0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 1}},
	)

	// CacheLookups counts collaborator cache lookups by cache (travel, weather) and result (hit, miss)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "collaborator_cache_lookups_total", Help: "Travel and weather cache lookups."},
		[]string{"cache", "result"},
	)
	// ProviderFallbacks counts provider failures that were answered by a fallback value
	ProviderFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "collaborator_fallbacks_total", Help: "Provider calls answered by fallback."},
		[]string{"provider"},
	)

	// ComplianceViolations counts violations found by rule
	ComplianceViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "compliance_violations_total", Help: "Compliance violations by rule."},
		[]string{"rule"},
	)
	// AssignmentChecks counts rest-gate decisions by result (valid, rejected)
	AssignmentChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "assignment_checks_total", Help: "Assignment gate decisions."},
		[]string{"result"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PlanningRuns)
		Registry.MustRegister(StopsPlanned)
		Registry.MustRegister(RouteEfficiency)
		Registry.MustRegister(CacheLookups)
		Registry.MustRegister(ProviderFallbacks)
		Registry.MustRegister(ComplianceViolations)
		Registry.MustRegister(AssignmentChecks)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
