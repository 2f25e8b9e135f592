package opt

import (
	"time"

	"carenav/internal/geo"
	"carenav/internal/model"
)

// Improve applies 2-opt to the committed visit order of s and re-times the result.
// The improved tour is kept only if every stop still fits its windows and the
// driven distance is strictly shorter; otherwise s is returned unchanged.
func Improve(in SequenceInput, s Sequenced, iterations int) Sequenced {
	n := len(s.Assignments)
	if n < 3 {
		return s
	}
	nodes := make([]geo.Point, 0, n+1)
	nodes = append(nodes, in.Worker.Home)
	nodes = append(nodes, s.Path...)
	order := make([]int, n+1)
	for i := range order {
		order[i] = i
	}
	better := ImproveOrder2Opt(nodes, order, iterations)
	if sameOrder(order, better) {
		return s
	}

	byID := make(map[string]model.Stop, len(in.Stops))
	for _, st := range in.Stops {
		byID[st.ID] = st
	}
	visit := make([]model.Stop, 0, n)
	for _, idx := range better[1:] {
		visit = append(visit, byID[s.Assignments[idx-1].StopID])
	}
	retimed, ok := retime(in, visit)
	if !ok || pathKm(in.Worker.Home, retimed.Path) >= pathKm(in.Worker.Home, s.Path) {
		return s
	}
	retimed.Unassigned = s.Unassigned
	retimed.ClusterSize = s.ClusterSize
	if st, ok := byID[s.overrun]; ok {
		// count the leg that ended the tour the same way Sequence does
		if in.BreakMinutes > 0 && in.BreakAfterMinutes > 0 && !retimed.BreakInserted && retimed.ElapsedMinutes >= in.BreakAfterMinutes {
			retimed.ElapsedMinutes += in.BreakMinutes
			retimed.BreakInserted = true
		}
		retimed.ElapsedMinutes += in.Travel.TravelMinutes(retimed.Path[len(retimed.Path)-1], st.Location)
		retimed.overrun = s.overrun
	}
	return retimed
}

// dropLockedClashes removes the assignments of s that clash with a locked assignment
// kept from an earlier run. Removed stops become unassigned and the elapsed time ends
// with the last kept stop.
func dropLockedClashes(s Sequenced, locked []model.Assignment, windowStart time.Time) Sequenced {
	out := s
	out.Assignments, out.Path = nil, nil
	out.Unassigned = append([]string(nil), s.Unassigned...)
	for i, a := range s.Assignments {
		if a.Clashes(locked) {
			out.Unassigned = append(out.Unassigned, a.StopID)
			continue
		}
		a.Order = len(out.Assignments)
		out.Assignments = append(out.Assignments, a)
		out.Path = append(out.Path, s.Path[i])
	}
	if len(out.Assignments) == len(s.Assignments) {
		return s
	}
	out.overrun = ""
	out.ElapsedMinutes = 0
	if n := len(out.Assignments); n > 0 {
		out.ElapsedMinutes = minutesFrom(windowStart, out.Assignments[n-1].End)
	}
	return out
}

// ImproveOrder2Opt applies 2-opt to an open path whose first node is fixed.
func ImproveOrder2Opt(nodes []geo.Point, order []int, iterations int) []int {
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]int(nil), order...)
	bestDist := pathDistance(nodes, best)
	n := len(order)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				newOrder := twoOptSwap(best, i, k)
				d := pathDistance(nodes, newOrder)
				if d+1e-3 < bestDist {
					best = newOrder
					bestDist = d
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

// retime walks visit in the given order with the same timing rules as Sequence.
// ok is false as soon as one stop no longer fits.
func retime(in SequenceInput, visit []model.Stop) (Sequenced, bool) {
	windowLen := int(in.WindowEnd.Sub(in.WindowStart) / time.Minute)
	breakEnabled := in.BreakMinutes > 0 && in.BreakAfterMinutes > 0
	var out Sequenced
	cur := in.Worker.Home
	elapsed := 0
	for _, stop := range visit {
		if breakEnabled && !out.BreakInserted && elapsed >= in.BreakAfterMinutes {
			elapsed += in.BreakMinutes
			out.BreakInserted = true
		}
		travel := in.Travel.TravelMinutes(cur, stop.Location)
		start := elapsed + travel
		if stop.Window != nil {
			if !stop.Window.Start.IsZero() {
				if opens := minutesFrom(in.WindowStart, stop.Window.Start); start < opens {
					start = opens
				}
			}
			if !stop.Window.End.IsZero() && in.WindowStart.Add(time.Duration(start)*time.Minute).After(stop.Window.End) {
				return Sequenced{}, false
			}
		}
		if start+stop.DurationMinutes > windowLen {
			return Sequenced{}, false
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
		elapsed = start + stop.DurationMinutes
		cur = stop.Location
	}
	out.ElapsedMinutes = elapsed
	return out, true
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

func pathDistance(nodes []geo.Point, order []int) float64 {
	total := 0.0
	for i := 0; i < len(order)-1; i++ {
		total += geo.HaversineMeters(nodes[order[i]], nodes[order[i+1]])
	}
	return total
}

func sameOrder(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
