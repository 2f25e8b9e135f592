package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"carenav/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	workers   map[string]model.Worker // id -> worker
	stops     map[string][]model.Stop // date -> stops
	routes    map[string]model.Route  // id -> route
	routeKey  map[string]string       // employee|date -> route id
	history   []model.Assignment      // assignments not attached to a planned route
	logs      []model.WorkLog
	schedules []model.Schedule
	// Webhooks queue state
	deliveries map[string]*memDelivery // id -> delivery state
	order      []string                // delivery ids in enqueue order
	dlq        []map[string]any        // dead-lettered deliveries
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		workers:    map[string]model.Worker{},
		stops:      map[string][]model.Stop{},
		routes:     map[string]model.Route{},
		routeKey:   map[string]string{},
		deliveries: map[string]*memDelivery{},
		dlq:        []map[string]any{},
		now:        time.Now,
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

// Seeding helpers used by tests and the demo server.

func (m *Memory) PutWorkers(ws ...model.Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range ws {
		m.workers[w.ID] = w
	}
}

func (m *Memory) PutStops(date string, stops ...model.Stop) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops[date] = append(m.stops[date], stops...)
}

func (m *Memory) PutWorkLogs(logs ...model.WorkLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, logs...)
}

func (m *Memory) PutSchedules(s ...model.Schedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = append(m.schedules, s...)
}

// PutAssignments records historical assignments outside any planned route.
func (m *Memory) PutAssignments(as ...model.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range as {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		m.history = append(m.history, a)
	}
}

func (m *Memory) ListWorkers(ctx context.Context, ids []string) ([]model.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Worker{}
	if len(ids) == 0 {
		for _, w := range m.workers {
			out = append(out, w)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out, nil
	}
	for _, id := range ids {
		w, ok := m.workers[id]
		if !ok {
			return nil, fmt.Errorf("worker %s: %w", id, ErrNotFound)
		}
		out = append(out, w)
	}
	return out, nil
}

func (m *Memory) GetWorker(ctx context.Context, id string) (model.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		return model.Worker{}, fmt.Errorf("worker %s: %w", id, ErrNotFound)
	}
	return w, nil
}

func (m *Memory) ListStops(ctx context.Context, date string, excludeLocked bool) ([]model.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := map[string]bool{}
	if excludeLocked {
		for _, r := range m.routes {
			if r.Date != date {
				continue
			}
			for _, a := range r.Assignments {
				if a.Locked {
					held[a.StopID] = true
				}
			}
		}
	}
	out := []model.Stop{}
	for _, s := range m.stops[date] {
		if !held[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) ReplaceRoute(ctx context.Context, r model.Route, preserveLocked bool) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.EmployeeID + "|" + r.Date
	id, exists := m.routeKey[key]
	if !exists {
		id = uuid.New().String()
	}
	var locked []model.Assignment
	if exists && preserveLocked {
		for _, a := range m.routes[id].Assignments {
			if a.Locked {
				locked = append(locked, a)
			}
		}
	}
	fresh := make([]model.Assignment, len(r.Assignments))
	for i, a := range r.Assignments {
		a.ID = uuid.New().String()
		a.RouteID = id
		a.EmployeeID = r.EmployeeID
		fresh[i] = a
	}
	r.ID = id
	r.Assignments = mergeLocked(locked, fresh)
	if r.Status == "" {
		r.Status = model.RouteStatusPlanned
	}
	r.UpdatedAt = m.now().UTC()
	m.routes[id] = r
	m.routeKey[key] = id
	return cloneRoute(r), nil
}

func (m *Memory) GetRoute(ctx context.Context, id string) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return model.Route{}, fmt.Errorf("route %s: %w", id, ErrNotFound)
	}
	return cloneRoute(r), nil
}

func (m *Memory) ListRoutes(ctx context.Context, date string) ([]model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Route{}
	for _, r := range m.routes {
		if date == "" || r.Date == date {
			out = append(out, cloneRoute(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

func (m *Memory) allAssignments(employeeID string) []model.Assignment {
	var out []model.Assignment
	for _, r := range m.routes {
		for _, a := range r.Assignments {
			if a.EmployeeID == employeeID {
				out = append(out, a)
			}
		}
	}
	for _, a := range m.history {
		if a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	return out
}

func (m *Memory) ListAssignments(ctx context.Context, employeeID string, from, to time.Time) ([]model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Assignment{}
	for _, a := range m.allAssignments(employeeID) {
		if !a.Start.Before(from) && a.Start.Before(to) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) LatestAssignmentBefore(ctx context.Context, employeeID string, t time.Time) (*model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Assignment
	for _, a := range m.allAssignments(employeeID) {
		if !a.End.Before(t) {
			continue
		}
		if best == nil || a.End.After(best.End) {
			a := a
			best = &a
		}
	}
	return best, nil
}

func (m *Memory) ComplianceSnapshot(ctx context.Context, employeeID string, logsFrom, logsTo, schedulesFrom time.Time) (model.ComplianceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var snap model.ComplianceSnapshot
	for _, l := range m.logs {
		if l.EmployeeID == employeeID && withinDays(l.Date, logsFrom, logsTo) {
			snap.Logs = append(snap.Logs, l)
		}
	}
	sort.SliceStable(snap.Logs, func(i, j int) bool { return snap.Logs[i].Date.Before(snap.Logs[j].Date) })
	for _, s := range m.schedules {
		if s.EmployeeID == employeeID && withinDays(s.WeekStart, schedulesFrom, logsTo) {
			snap.Schedules = append(snap.Schedules, s)
		}
	}
	return snap, nil
}

// withinDays reports whether t falls on a calendar day in [from, to], days taken in from's location.
func withinDays(t, from, to time.Time) bool {
	loc := from.Location()
	d := civilDay(t.In(loc))
	return !d.Before(civilDay(from)) && !d.After(civilDay(to.In(loc)))
}

func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", Attempts: 0}, NextAttemptAt: m.now()}
	m.deliveries[id] = d
	m.order = append(m.order, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := []WebhookDelivery{}
	for _, id := range m.order {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return fmt.Errorf("delivery %s: %w", id, ErrNotFound)
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := m.now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = m.now().Add(1 * time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil {
		d.Status = "failed"
		d.Attempts++
	}
	m.dlq = append(m.dlq, map[string]any{"id": id, "lastError": lastError, "responseCode": responseCode, "latencyMs": latencyMs})
	return nil
}

// DeadLetters returns the failed deliveries.
func (m *Memory) DeadLetters() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.dlq...)
}

// DeliveryStatus reports status and attempts of one delivery.
func (m *Memory) DeliveryStatus(id string) (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return "", 0
	}
	return d.Status, d.Attempts
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// SetClock replaces the time source. For tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func cloneRoute(r model.Route) model.Route {
	r.Assignments = append([]model.Assignment{}, r.Assignments...)
	return r
}
