package api

import (
	"context"
	"fmt"
	"time"

	"carenav/internal/geo"
	"carenav/internal/metrics"
	"carenav/internal/model"
	"carenav/internal/opt"
	"carenav/internal/travel"
	"carenav/internal/webhooks"
)

// RunOptimize plans one date and persists a route per worker. Travel and weather are
// resolved before sequencing; notifications fire only after every route is written.
func (s *Server) RunOptimize(ctx context.Context, req model.OptimizeRequest) (model.OptimizeResponse, error) {
	date, err := validateOptimizeRequest(&req)
	if err != nil {
		return model.OptimizeResponse{}, err
	}
	res, err := s.runOptimize(ctx, date, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if k := kindLabel(err); k != "" {
			outcome = k
		}
	}
	metrics.PlanningRuns.WithLabelValues(outcome).Inc()
	return res, err
}

func (s *Server) runOptimize(ctx context.Context, date time.Time, req model.OptimizeRequest) (model.OptimizeResponse, error) {
	pc := s.Config.Planning
	preserve := *pc.PreserveLocked
	if req.PreserveLockedAssignments != nil {
		preserve = *req.PreserveLockedAssignments
	}
	day := date.Format(model.DateLayout)

	workers, err := s.Store.ListWorkers(ctx, req.EmployeeIDs)
	if err != nil {
		return model.OptimizeResponse{}, fmt.Errorf("load workers: %w", err)
	}
	stops, err := s.Store.ListStops(ctx, day, preserve)
	if err != nil {
		return model.OptimizeResponse{}, fmt.Errorf("load stops: %w", err)
	}

	var locked map[string][]model.Assignment
	if preserve {
		if locked, err = s.lockedAssignments(ctx, workers, date); err != nil {
			return model.OptimizeResponse{}, fmt.Errorf("load locked assignments: %w", err)
		}
	}

	points := make([]geo.Point, 0, len(stops)+len(workers))
	for _, w := range workers {
		points = append(points, w.Home)
	}
	stopPts := make([]geo.Point, 0, len(stops))
	for _, st := range stops {
		stopPts = append(stopPts, st.Location)
	}
	points = append(points, stopPts...)

	mult := 1.0
	if len(stopPts) > 0 {
		mult = s.Weather.Multiplier(ctx, geo.Centroid(stopPts))
	}
	table, err := travel.Prefetch(ctx, s.Travel, points, mult, s.Config.Travel.PrefetchParallel)
	if err != nil {
		return model.OptimizeResponse{}, fmt.Errorf("prefetch travel: %w", err)
	}

	plan, err := s.Planner.Plan(ctx, opt.PlanInput{
		Date:                    date,
		Stops:                   stops,
		Workers:                 workers,
		Travel:                  table,
		DefaultWorkStartMinutes: pc.WorkStartMinutes,
		DefaultWorkEndMinutes:   pc.WorkEndMinutes,
		BreakMinutes:            pc.BreakMinutes,
		BreakAfterMinutes:       pc.BreakAfterMinutes,
		TwoOptPasses:            pc.TwoOptPasses,
		Locked:                  locked,
	})
	if err != nil {
		return model.OptimizeResponse{}, err
	}

	saved := make([]model.Route, 0, len(plan.Routes))
	unassigned := append([]string(nil), plan.Unassigned...)
	assigned := 0
	for _, rt := range plan.Routes {
		out, err := s.Store.ReplaceRoute(ctx, rt, preserve)
		if err != nil {
			return model.OptimizeResponse{}, fmt.Errorf("save route for %s: %w", rt.EmployeeID, err)
		}
		kept, dropped := storedFresh(rt, out)
		if len(dropped) > 0 {
			// a lock taken after planning started; the store merge dropped these
			s.Log.Warn().Str("employee", rt.EmployeeID).Strs("stops", dropped).Msg("planned stops clash with locked assignments")
			unassigned = append(unassigned, dropped...)
		}
		assigned += kept
		if rt.Efficiency != nil {
			metrics.RouteEfficiency.Observe(*rt.Efficiency)
		}
		saved = append(saved, out)
	}
	metrics.StopsPlanned.WithLabelValues("assigned").Add(float64(assigned))
	metrics.StopsPlanned.WithLabelValues("unassigned").Add(float64(len(unassigned)))

	s.notifyRoutesUpdated(ctx, day, len(saved))
	s.Log.Info().Str("date", day).Int("routes", len(saved)).Int("assigned", assigned).
		Int("unassigned", len(unassigned)).Float64("weather", mult).Int("pairs", table.Len()).Msg("optimize run")

	return model.OptimizeResponse{
		Success:         true,
		Date:            day,
		RoutesOptimized: len(saved),
		TasksAssigned:   assigned,
		Unassigned:      unassigned,
		Efficiency:      plan.Efficiency,
		Routes:          saved,
	}, nil
}

// lockedAssignments returns the locked assignments each worker already holds on date.
func (s *Server) lockedAssignments(ctx context.Context, workers []model.Worker, date time.Time) (map[string][]model.Assignment, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	to := from.AddDate(0, 0, 1)
	out := make(map[string][]model.Assignment)
	for _, w := range workers {
		as, err := s.Store.ListAssignments(ctx, w.ID, from, to)
		if err != nil {
			return nil, err
		}
		for _, a := range as {
			if a.Locked {
				out[w.ID] = append(out[w.ID], a)
			}
		}
	}
	return out, nil
}

// storedFresh counts the planned assignments of planned that made it into stored and
// returns the stops of those that did not.
func storedFresh(planned, stored model.Route) (int, []string) {
	have := make(map[string]bool, len(stored.Assignments))
	for _, a := range stored.Assignments {
		if !a.Locked {
			have[a.StopID] = true
		}
	}
	kept := 0
	var dropped []string
	for _, a := range planned.Assignments {
		if have[a.StopID] {
			kept++
		} else {
			dropped = append(dropped, a.StopID)
		}
	}
	return kept, dropped
}

func (s *Server) notifyRoutesUpdated(ctx context.Context, day string, n int) {
	ev := model.RoutesUpdated{Date: day, UpdatedAt: time.Now().UTC().Format(time.RFC3339), Routes: n}
	data := map[string]any{"date": ev.Date, "updatedAt": ev.UpdatedAt, "routes": ev.Routes}
	s.Broker.Publish(TopicRoutes, Event{Type: webhooks.EventRoutesUpdated, Data: data})
	s.Pub.Emit(ctx, webhooks.EventRoutesUpdated, ev)
}
