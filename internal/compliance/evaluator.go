package compliance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"carenav/internal/model"
)

// Input is one employee's history for a check.
type Input struct {
	EmployeeID string
	Start, End time.Time
	Logs       []model.WorkLog
	Schedules  []model.Schedule
}

// Evaluate applies the rest, weekly-average and consecutive-days rules.
// Absent data never produces a violation; each rule adds at most one verdict
// except the rest rule, which reports every short gap.
func Evaluate(in Input, r Rules) model.ComplianceResult {
	res := model.ComplianceResult{
		EmployeeID: in.EmployeeID,
		Violations: []model.Violation{},
		Warnings:   []model.Warning{},
	}

	logs := make([]model.WorkLog, 0, len(in.Logs))
	for _, l := range in.Logs {
		if d := dayNumber(l.Date); d >= dayNumber(in.Start) && d <= dayNumber(in.End) {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Date.Before(logs[j].Date) })

	res.Violations = append(res.Violations, restViolations(logs, r)...)

	if v, w := weeklyAverage(in.Schedules, in.End, r); v != nil {
		res.Violations = append(res.Violations, *v)
	} else if w != nil {
		res.Warnings = append(res.Warnings, *w)
	}

	if v, w := consecutiveDays(logs, r); v != nil {
		res.Violations = append(res.Violations, *v)
	} else if w != nil {
		res.Warnings = append(res.Warnings, *w)
	}

	res.IsCompliant = len(res.Violations) == 0
	return res
}

func restViolations(logs []model.WorkLog, r Rules) []model.Violation {
	var out []model.Violation
	for i := 1; i < len(logs); i++ {
		prev, cur := logs[i-1], logs[i]
		if prev.End == nil || cur.Start == nil {
			continue
		}
		rest := cur.Start.Sub(*prev.End).Minutes()
		if rest >= float64(r.RestMinutes) {
			continue
		}
		hours := math.Round(rest / 60)
		out = append(out, model.Violation{
			Rule: RuleRest,
			Message: fmt.Sprintf("only %.0f hours of rest between %s and %s, %d required",
				hours, prev.Date.Format(model.DateLayout), cur.Date.Format(model.DateLayout), r.RestMinutes/60),
			Date:  cur.Date.Format(model.DateLayout),
			Value: hours,
		})
	}
	return out
}

func weeklyAverage(schedules []model.Schedule, end time.Time, r Rules) (*model.Violation, *model.Warning) {
	from := SubtractMonths(end, r.AveragingMonths)
	hours := make([]float64, 0, len(schedules))
	for _, s := range schedules {
		if s.WeekStart.Before(from) || s.WeekStart.After(end) {
			continue
		}
		hours = append(hours, s.Hours())
	}
	if len(hours) == 0 {
		return nil, nil
	}
	mean := stat.Mean(hours, nil)
	avg := math.Round(mean*10) / 10
	switch {
	case mean > r.WeeklyCapHours:
		return &model.Violation{
			Rule: RuleWeeklyHours,
			Message: fmt.Sprintf("average weekly working time is %.1f hours over %d months, max %.0f",
				avg, r.AveragingMonths, r.WeeklyCapHours),
			Value: avg,
		}, nil
	case mean > r.WeeklyCapHours*r.WarningRatio:
		return nil, &model.Warning{
			Rule:         RuleWeeklyHours,
			Message:      fmt.Sprintf("approaching the %.0f-hour limit", r.WeeklyCapHours),
			CurrentValue: avg,
			Threshold:    r.WeeklyCapHours,
		}
	}
	return nil, nil
}

func consecutiveDays(logs []model.WorkLog, r Rules) (*model.Violation, *model.Warning) {
	streak, longest := 0, 0
	var prev int64
	for i, l := range logs {
		d := dayNumber(l.Date)
		if i > 0 && d-prev == 1 {
			streak++
		} else {
			streak = 1
		}
		if streak > longest {
			longest = streak
		}
		prev = d
	}
	switch {
	case longest > r.MaxConsecutiveDays:
		return &model.Violation{
			Rule:    RuleConsecutive,
			Message: fmt.Sprintf("%d consecutive working days, max %d", longest, r.MaxConsecutiveDays),
			Value:   float64(longest),
		}, nil
	case longest >= r.ConsecutiveWarningFloor:
		return nil, &model.Warning{
			Rule:         RuleConsecutive,
			Message:      fmt.Sprintf("%d consecutive working days", longest),
			CurrentValue: float64(longest),
			Threshold:    float64(r.MaxConsecutiveDays),
		}
	}
	return nil, nil
}
