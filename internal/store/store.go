package store

import (
	"context"
	"sort"
	"time"

	"carenav/internal/errs"
	"carenav/internal/model"
)

// Store is the persistence interface used by the API server and the CLI.
type Store interface {
	// Workers and stops
	ListWorkers(ctx context.Context, ids []string) ([]model.Worker, error)
	GetWorker(ctx context.Context, id string) (model.Worker, error)
	// ListStops returns the stops to service on date. With excludeLocked, stops already
	// held by a locked assignment on that date are left out.
	ListStops(ctx context.Context, date string, excludeLocked bool) ([]model.Stop, error)

	// Routes
	// ReplaceRoute upserts the route for (r.EmployeeID, r.Date) and swaps its non-locked
	// assignments for r.Assignments in one atomic step.
	ReplaceRoute(ctx context.Context, r model.Route, preserveLocked bool) (model.Route, error)
	GetRoute(ctx context.Context, id string) (model.Route, error)
	ListRoutes(ctx context.Context, date string) ([]model.Route, error)

	// Compliance reads
	ListAssignments(ctx context.Context, employeeID string, from, to time.Time) ([]model.Assignment, error)
	LatestAssignmentBefore(ctx context.Context, employeeID string, t time.Time) (*model.Assignment, error)
	ComplianceSnapshot(ctx context.Context, employeeID string, logsFrom, logsTo, schedulesFrom time.Time) (model.ComplianceSnapshot, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error

	Ping(ctx context.Context) error
}

var ErrNotFound = errs.ErrNotFound

// mergeLocked combines the locked assignments kept from the previous plan with the
// freshly planned ones. A fresh assignment overlapping a locked one in time, or for a
// stop a locked one already serves, is dropped. The result is ordered by start time
// and renumbered from 0.
func mergeLocked(locked, fresh []model.Assignment) []model.Assignment {
	out := append([]model.Assignment(nil), locked...)
	for _, a := range fresh {
		if !a.Clashes(locked) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	for i := range out {
		out[i].Order = i
	}
	return out
}
