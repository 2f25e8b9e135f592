// Package compliance checks labour-time rules: daily rest, weekly average hours,
// consecutive working days, and the rest gate used before committing one assignment.
package compliance

import (
	"fmt"
	"time"

	"carenav/internal/errs"
)

// Rule tags carried by violations and warnings.
const (
	RuleRest        = "11-hour"
	RuleWeeklyHours = "48-hour"
	RuleConsecutive = "consecutive-days"
)

// Rules holds every threshold the evaluator uses.
type Rules struct {
	RestMinutes             int     `yaml:"restMinutes"`
	WeeklyCapHours          float64 `yaml:"weeklyCapHours"`
	MaxConsecutiveDays      int     `yaml:"maxConsecutiveDays"`
	WarningRatio            float64 `yaml:"warningRatio"`
	ConsecutiveWarningFloor int     `yaml:"consecutiveWarningFloor"`
	AveragingMonths         int     `yaml:"averagingMonths"`
}

// DefaultRules are the EU working-time directive values.
func DefaultRules() Rules {
	return Rules{
		RestMinutes:             11 * 60,
		WeeklyCapHours:          48,
		MaxConsecutiveDays:      6,
		WarningRatio:            0.9,
		ConsecutiveWarningFloor: 5,
		AveragingMonths:         4,
	}
}

func (r Rules) Validate() error {
	switch {
	case r.RestMinutes <= 0:
		return fmt.Errorf("compliance: restMinutes must be positive: %w", errs.ErrValidation)
	case r.WeeklyCapHours <= 0:
		return fmt.Errorf("compliance: weeklyCapHours must be positive: %w", errs.ErrValidation)
	case r.MaxConsecutiveDays <= 0:
		return fmt.Errorf("compliance: maxConsecutiveDays must be positive: %w", errs.ErrValidation)
	case r.WarningRatio <= 0 || r.WarningRatio > 1:
		return fmt.Errorf("compliance: warningRatio must be in (0,1]: %w", errs.ErrValidation)
	case r.ConsecutiveWarningFloor <= 0 || r.ConsecutiveWarningFloor > r.MaxConsecutiveDays:
		return fmt.Errorf("compliance: consecutiveWarningFloor must be in [1,maxConsecutiveDays]: %w", errs.ErrValidation)
	case r.AveragingMonths <= 0:
		return fmt.Errorf("compliance: averagingMonths must be positive: %w", errs.ErrValidation)
	}
	return nil
}

// SubtractMonths moves t back n calendar months keeping the clock time.
// A day that does not exist in the target month is clamped to its last day,
// so 31 July minus 1 month is 30 June (not 1 July).
func SubtractMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	lastDay := time.Date(y, m-time.Month(n)+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(y, m-time.Month(n), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// dayNumber counts calendar days since the epoch, ignoring the clock.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
