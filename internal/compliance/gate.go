package compliance

import (
	"fmt"
	"math"
	"time"

	"carenav/internal/errs"
	"carenav/internal/model"
)

// Gate decides whether a new assignment leaves enough rest after prior, the
// latest assignment ending before start (nil when there is none).
func Gate(prior *model.Assignment, start, end time.Time, r Rules) (model.AssignmentCheck, error) {
	if end.Before(start) {
		return model.AssignmentCheck{}, fmt.Errorf("assignment ends before it starts: %w", errs.ErrValidation)
	}
	if prior == nil {
		return model.AssignmentCheck{Valid: true}, nil
	}
	rest := start.Sub(prior.End).Minutes()
	if rest < float64(r.RestMinutes) {
		return model.AssignmentCheck{
			Valid:  false,
			Reason: fmt.Sprintf("only %.0f hours of rest, %d required", math.Round(rest/60), r.RestMinutes/60),
		}, nil
	}
	return model.AssignmentCheck{Valid: true}, nil
}
