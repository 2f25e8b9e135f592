package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carenav/internal/errs"
	"carenav/internal/model"
)

func at(day, h, m int) time.Time { return time.Date(2025, 3, day, h, m, 0, 0, time.UTC) }

func assignment(stop string, start time.Time, minutes int) model.Assignment {
	return model.Assignment{StopID: stop, Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

func TestMemoryWorkers(t *testing.T) {
	m := NewMemory()
	m.PutWorkers(model.Worker{ID: "b"}, model.Worker{ID: "a"})
	ctx := context.Background()

	all, err := m.ListWorkers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", all[0].ID)

	some, err := m.ListWorkers(ctx, []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, "b", some[0].ID)

	_, err = m.ListWorkers(ctx, []string{"zz"})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	_, err = m.GetWorker(ctx, "zz")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReplaceRouteKeepsLockedAssignments(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.PutStops("2025-03-10", model.Stop{ID: "s1"}, model.Stop{ID: "s2"}, model.Stop{ID: "s3"})

	first, err := m.ReplaceRoute(ctx, model.Route{
		EmployeeID: "w1", Date: "2025-03-10",
		Assignments: []model.Assignment{assignment("s1", at(10, 8, 0), 30), assignment("s2", at(10, 9, 0), 30)},
	}, true)
	require.NoError(t, err)
	require.Len(t, first.Assignments, 2)

	// lock s2 directly in the stored route
	m.mu.Lock()
	r := m.routes[first.ID]
	r.Assignments[1].Locked = true
	m.routes[first.ID] = r
	m.mu.Unlock()

	stops, err := m.ListStops(ctx, "2025-03-10", true)
	require.NoError(t, err)
	assert.Len(t, stops, 2)

	second, err := m.ReplaceRoute(ctx, model.Route{
		EmployeeID: "w1", Date: "2025-03-10",
		Assignments: []model.Assignment{
			assignment("s3", at(10, 8, 0), 30),
			assignment("s1", at(10, 9, 15), 30), // overlaps locked s2 09:00-09:30
		},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, second.Assignments, 2)
	assert.Equal(t, "s3", second.Assignments[0].StopID)
	assert.Equal(t, "s2", second.Assignments[1].StopID)
	assert.True(t, second.Assignments[1].Locked)
	for i, a := range second.Assignments {
		assert.Equal(t, i, a.Order)
		assert.Equal(t, second.ID, a.RouteID)
	}

	third, err := m.ReplaceRoute(ctx, model.Route{EmployeeID: "w1", Date: "2025-03-10"}, false)
	require.NoError(t, err)
	assert.Empty(t, third.Assignments)
	assert.NotNil(t, third.Assignments)

	routes, err := m.ListRoutes(ctx, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, routes, 1)
	_, err = m.GetRoute(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLatestAssignmentBeforeHasNoLookbackLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.PutAssignments(
		model.Assignment{EmployeeID: "w1", Start: at(1, 8, 0), End: at(1, 16, 0)},
		model.Assignment{EmployeeID: "w1", Start: at(3, 8, 0), End: at(3, 12, 0)},
		model.Assignment{EmployeeID: "w2", Start: at(9, 8, 0), End: at(9, 12, 0)},
	)
	got, err := m.LatestAssignmentBefore(ctx, "w1", at(10, 8, 0))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, at(3, 12, 0), got.End)

	got, err = m.LatestAssignmentBefore(ctx, "w1", at(1, 16, 0))
	require.NoError(t, err)
	assert.Nil(t, got)

	week, err := m.ListAssignments(ctx, "w1", at(1, 0, 0), at(3, 0, 0))
	require.NoError(t, err)
	assert.Len(t, week, 1)
}

func TestComplianceSnapshotFilters(t *testing.T) {
	m := NewMemory()
	m.PutWorkLogs(
		model.WorkLog{EmployeeID: "w1", Date: at(5, 0, 0)},
		model.WorkLog{EmployeeID: "w1", Date: at(2, 0, 0)},
		model.WorkLog{EmployeeID: "w1", Date: at(20, 0, 0)},
		model.WorkLog{EmployeeID: "w2", Date: at(3, 0, 0)},
	)
	m.PutSchedules(
		model.Schedule{EmployeeID: "w1", WeekStart: at(3, 0, 0), PlannedHours: 37},
		model.Schedule{EmployeeID: "w1", WeekStart: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), PlannedHours: 37},
	)
	snap, err := m.ComplianceSnapshot(context.Background(), "w1", at(1, 0, 0), at(10, 0, 0), time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, snap.Logs, 2)
	assert.Equal(t, at(2, 0, 0), snap.Logs[0].Date)
	assert.Len(t, snap.Schedules, 1)

	// bounds with a time of day still include logs dated on the first and last day
	snap, err = m.ComplianceSnapshot(context.Background(), "w1", at(2, 14, 30), at(5, 9, 15), time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, snap.Logs, 2)
	assert.Equal(t, at(2, 0, 0), snap.Logs[0].Date)
	assert.Equal(t, at(5, 0, 0), snap.Logs[1].Date)
}

func TestMemoryWebhookQueue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := at(10, 12, 0)
	m.SetClock(func() time.Time { return now })

	id, err := m.EnqueueWebhook(ctx, "routes.updated", "http://x", "s", []byte(`{}`))
	require.NoError(t, err)
	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	next := now.Add(time.Minute)
	require.NoError(t, m.MarkWebhookDelivery(ctx, id, false, &next, "boom", 500, 3))
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	assert.Empty(t, due)

	now = next
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	assert.Len(t, due, 1)
	require.NoError(t, m.FailWebhookDelivery(ctx, id, "boom", 500, 3))
	status, attempts := m.DeliveryStatus(id)
	assert.Equal(t, "failed", status)
	assert.Equal(t, 2, attempts)
	assert.Len(t, m.DeadLetters(), 1)
}
