package api

import (
	"fmt"
	"strings"
	"time"

	"carenav/internal/errs"
	"carenav/internal/model"
)

// parseDate reads a YYYY-MM-DD calendar date at local midnight.
func parseDate(name, v string) (time.Time, error) {
	t, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(v), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q is not YYYY-MM-DD: %w", name, v, errs.ErrValidation)
	}
	return t, nil
}

// parseInstant accepts RFC 3339 timestamps and, for query ranges, plain dates.
func parseInstant(name, v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
		return t, nil
	}
	if t, err := parseDate(name, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%s %q is not an RFC 3339 timestamp: %w", name, v, errs.ErrValidation)
}

func validateOptimizeRequest(req *model.OptimizeRequest) (time.Time, error) {
	if req.Date == "" {
		return time.Time{}, fmt.Errorf("date is required: %w", errs.ErrValidation)
	}
	d, err := parseDate("date", req.Date)
	if err != nil {
		return time.Time{}, err
	}
	for _, id := range req.EmployeeIDs {
		if strings.TrimSpace(id) == "" {
			return time.Time{}, fmt.Errorf("employeeIds must not contain blanks: %w", errs.ErrValidation)
		}
	}
	return d, nil
}

func validateAssignmentRequest(req *model.ValidateAssignmentRequest) (start, end time.Time, err error) {
	if req.EmployeeID == "" || req.StartTime == "" || req.EndTime == "" {
		return start, end, fmt.Errorf("employeeId, startTime and endTime are required: %w", errs.ErrValidation)
	}
	if start, err = time.Parse(time.RFC3339, req.StartTime); err != nil {
		return start, end, fmt.Errorf("startTime: %v: %w", err, errs.ErrValidation)
	}
	if end, err = time.Parse(time.RFC3339, req.EndTime); err != nil {
		return start, end, fmt.Errorf("endTime: %v: %w", err, errs.ErrValidation)
	}
	return start, end, nil
}
