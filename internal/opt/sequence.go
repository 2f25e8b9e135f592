package opt

import (
	"fmt"
	"math"
	"time"

	"carenav/internal/errs"
	"carenav/internal/geo"
	"carenav/internal/model"
)

// TravelTimer answers travel minutes between two coordinates. Implementations must be
// synchronous and cheap: the sequencer calls it inside its inner loop.
type TravelTimer interface {
	TravelMinutes(from, to geo.Point) int
}

// FixedTravel is a TravelTimer returning the same number of minutes for every leg.
type FixedTravel int

func (f FixedTravel) TravelMinutes(_, _ geo.Point) int { return int(f) }

// SequenceInput is one cluster to be turned into an ordered tour for one worker.
type SequenceInput struct {
	Stops       []model.Stop
	Worker      model.Worker
	WindowStart time.Time
	WindowEnd   time.Time
	Travel      TravelTimer
	// BreakMinutes is inserted once when elapsed time has reached BreakAfterMinutes.
	// Either value <= 0 disables the break.
	BreakMinutes      int
	BreakAfterMinutes int
}

// Sequenced is the raw output of Sequence, before scoring.
type Sequenced struct {
	Assignments    []model.Assignment
	Path           []geo.Point // committed stop locations in visit order
	Unassigned     []string
	ElapsedMinutes int
	BreakInserted  bool
	ClusterSize    int

	// overrun is the stop whose travel ended the tour. Its travel stays in ElapsedMinutes.
	overrun string
}

// Sequence builds a nearest-neighbour tour through in.Stops starting at the worker's home.
//
// At each step the unvisited stop closest to the current position (great-circle) is taken; ties
// go to the stop that came first in the input. A stop is committed only if it finishes inside the
// work window; the first stop that would overrun ends the tour and every stop not yet committed
// is reported unassigned. Stops the worker is not qualified for are never selected.
func Sequence(in SequenceInput) (Sequenced, error) {
	if in.Travel == nil {
		return Sequenced{}, fmt.Errorf("sequence: travel timer is nil: %w", errs.ErrValidation)
	}
	if !in.WindowEnd.After(in.WindowStart) {
		return Sequenced{}, fmt.Errorf("sequence: work window %s..%s is empty: %w",
			in.WindowStart.Format(time.RFC3339), in.WindowEnd.Format(time.RFC3339), errs.ErrValidation)
	}
	windowLen := int(in.WindowEnd.Sub(in.WindowStart) / time.Minute)
	breakEnabled := in.BreakMinutes > 0 && in.BreakAfterMinutes > 0

	remaining := make([]int, 0, len(in.Stops))
	for i, s := range in.Stops {
		if s.DurationMinutes < 0 {
			return Sequenced{}, fmt.Errorf("sequence: stop %s has negative duration: %w", s.ID, errs.ErrValidation)
		}
		if in.Worker.Qualified(s.RequiredCompetencies) {
			remaining = append(remaining, i)
		}
	}

	out := Sequenced{ClusterSize: len(in.Stops)}
	committed := make([]bool, len(in.Stops))
	cur := in.Worker.Home
	elapsed := 0

	for len(remaining) > 0 {
		best, bestDist := 0, math.MaxFloat64
		for pos, idx := range remaining {
			d := geo.HaversineMeters(cur, in.Stops[idx].Location)
			if d < bestDist {
				best, bestDist = pos, d
			}
		}
		idx := remaining[best]
		remaining = append(remaining[:best], remaining[best+1:]...)
		stop := in.Stops[idx]

		if breakEnabled && !out.BreakInserted && elapsed >= in.BreakAfterMinutes {
			elapsed += in.BreakMinutes
			out.BreakInserted = true
		}

		travel := in.Travel.TravelMinutes(cur, stop.Location)
		elapsed += travel
		start := elapsed

		if stop.Window != nil {
			if !stop.Window.Start.IsZero() {
				if opens := minutesFrom(in.WindowStart, stop.Window.Start); start < opens {
					start = opens
				}
			}
			if !stop.Window.End.IsZero() && in.WindowStart.Add(time.Duration(start)*time.Minute).After(stop.Window.End) {
				// cannot be reached inside its own window; leave it and keep going
				elapsed -= travel
				continue
			}
		}

		if start+stop.DurationMinutes > windowLen {
			out.overrun = stop.ID
			break
		}

		begin := in.WindowStart.Add(time.Duration(start) * time.Minute)
		out.Assignments = append(out.Assignments, model.Assignment{
			StopID:        stop.ID,
			EmployeeID:    in.Worker.ID,
			Start:         begin,
			End:           begin.Add(time.Duration(stop.DurationMinutes) * time.Minute),
			Order:         len(out.Assignments),
			TravelMinutes: travel,
			Status:        model.AssignmentStatusPending,
		})
		out.Path = append(out.Path, stop.Location)
		committed[idx] = true
		elapsed = start + stop.DurationMinutes
		cur = stop.Location
	}

	out.ElapsedMinutes = elapsed
	for i, s := range in.Stops {
		if !committed[i] {
			out.Unassigned = append(out.Unassigned, s.ID)
		}
	}
	return out, nil
}

func minutesFrom(origin, t time.Time) int {
	return int(math.Ceil(t.Sub(origin).Minutes()))
}
