package compliance

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"carenav/internal/model"
)

// WeeklyHours sums assignment time starting in [weekStart, weekStart+7d) against
// the contracted hours. percentUsed is not capped; contracted 0 gives 0.
func WeeklyHours(contracted float64, assignments []model.Assignment, weekStart time.Time) model.WeeklyHoursStatus {
	weekEnd := weekStart.AddDate(0, 0, 7)
	hours := make([]float64, 0, len(assignments))
	for _, a := range assignments {
		if a.Start.Before(weekStart) || !a.Start.Before(weekEnd) {
			continue
		}
		hours = append(hours, a.End.Sub(a.Start).Hours())
	}
	actual := floats.Sum(hours)
	st := model.WeeklyHoursStatus{
		Planned:   contracted,
		Actual:    round1(actual),
		Remaining: round1(math.Max(0, contracted-actual)),
	}
	if contracted > 0 {
		st.PercentUsed = int(math.Round(actual / contracted * 100))
	}
	return st
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
