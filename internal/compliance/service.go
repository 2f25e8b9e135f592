package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"carenav/internal/errs"
	"carenav/internal/metrics"
	"carenav/internal/model"
)

// Store is the read side the service needs.
type Store interface {
	GetWorker(ctx context.Context, id string) (model.Worker, error)
	// ComplianceSnapshot returns logs dated in [logsFrom, logsTo] and schedules with a
	// week start in [schedulesFrom, logsTo], read in a single transaction.
	ComplianceSnapshot(ctx context.Context, employeeID string, logsFrom, logsTo, schedulesFrom time.Time) (model.ComplianceSnapshot, error)
	// LatestAssignmentBefore returns the assignment with the latest end strictly before t, or nil.
	LatestAssignmentBefore(ctx context.Context, employeeID string, t time.Time) (*model.Assignment, error)
	// ListAssignments returns assignments starting in [from, to).
	ListAssignments(ctx context.Context, employeeID string, from, to time.Time) ([]model.Assignment, error)
}

// DefaultLookback is the range checked when the caller gives no dates.
const DefaultLookback = 30 * 24 * time.Hour

type Service struct {
	Store Store
	Rules Rules
	Log   zerolog.Logger
}

func NewService(s Store, r Rules, log zerolog.Logger) *Service {
	return &Service{Store: s, Rules: r, Log: log}
}

// CheckCompliance evaluates every rule over [start, end].
func (s *Service) CheckCompliance(ctx context.Context, employeeID string, start, end time.Time) (model.ComplianceResult, error) {
	if start.After(end) {
		return model.ComplianceResult{}, fmt.Errorf("check compliance: start %s after end %s: %w",
			start.Format(model.DateLayout), end.Format(model.DateLayout), errs.ErrValidation)
	}
	if _, err := s.Store.GetWorker(ctx, employeeID); err != nil {
		return model.ComplianceResult{}, err
	}
	snap, err := s.Store.ComplianceSnapshot(ctx, employeeID, start, end, SubtractMonths(end, s.Rules.AveragingMonths))
	if err != nil {
		return model.ComplianceResult{}, err
	}
	res := Evaluate(Input{EmployeeID: employeeID, Start: start, End: end, Logs: snap.Logs, Schedules: snap.Schedules}, s.Rules)
	for _, v := range res.Violations {
		metrics.ComplianceViolations.WithLabelValues(v.Rule).Inc()
	}
	s.Log.Debug().Str("employee", employeeID).Int("logs", len(snap.Logs)).Int("schedules", len(snap.Schedules)).
		Int("violations", len(res.Violations)).Int("warnings", len(res.Warnings)).Msg("compliance checked")
	return res, nil
}

// ValidateAssignment runs the rest gate for one proposed assignment.
func (s *Service) ValidateAssignment(ctx context.Context, employeeID string, start, end time.Time) (model.AssignmentCheck, error) {
	if _, err := s.Store.GetWorker(ctx, employeeID); err != nil {
		return model.AssignmentCheck{}, err
	}
	if end.Before(start) {
		return model.AssignmentCheck{}, fmt.Errorf("validate assignment: end before start: %w", errs.ErrValidation)
	}
	prior, err := s.Store.LatestAssignmentBefore(ctx, employeeID, start)
	if err != nil {
		return model.AssignmentCheck{}, err
	}
	check, err := Gate(prior, start, end, s.Rules)
	if err != nil {
		return check, err
	}
	result := "valid"
	if !check.Valid {
		result = "rejected"
	}
	metrics.AssignmentChecks.WithLabelValues(result).Inc()
	return check, nil
}

// WeeklyHoursStatus reports contracted versus assigned hours for the week starting at weekStart.
func (s *Service) WeeklyHoursStatus(ctx context.Context, employeeID string, weekStart time.Time) (model.WeeklyHoursStatus, error) {
	w, err := s.Store.GetWorker(ctx, employeeID)
	if err != nil {
		return model.WeeklyHoursStatus{}, err
	}
	as, err := s.Store.ListAssignments(ctx, employeeID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return model.WeeklyHoursStatus{}, err
	}
	return WeeklyHours(w.WeeklyHours, as, weekStart), nil
}
