package opt

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"carenav/internal/errs"
	"carenav/internal/geo"
	"carenav/internal/model"
)

// PlanInput is everything one planning run needs. Stops and workers are snapshots;
// the planner never reads a store.
type PlanInput struct {
	Date    time.Time // any instant on the plan date; its location defines local midnight
	Stops   []model.Stop
	Workers []model.Worker
	Travel  TravelTimer

	// Used for workers whose own window is unset (both ends zero).
	DefaultWorkStartMinutes int
	DefaultWorkEndMinutes   int

	BreakMinutes      int
	BreakAfterMinutes int
	TwoOptPasses      int // 0 disables post-improvement

	// Locked holds, per worker ID, the locked assignments a replan keeps. Planned
	// assignments clashing with them are reported unassigned.
	Locked map[string][]model.Assignment
}

// PlanResult holds one route per worker, in worker order.
type PlanResult struct {
	Routes     []model.Route
	Unassigned []string
	Efficiency *float64
}

// Planner runs cluster, sequence and score for every worker of one date.
type Planner struct {
	Parallelism int
	Log         zerolog.Logger
}

func NewPlanner(parallelism int, log zerolog.Logger) *Planner {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Planner{Parallelism: parallelism, Log: log}
}

// Plan partitions in.Stops into one angular cluster per worker and sequences each
// cluster independently. Workers get clusters in input order.
func (p *Planner) Plan(ctx context.Context, in PlanInput) (PlanResult, error) {
	if len(in.Workers) == 0 {
		return PlanResult{}, fmt.Errorf("plan: no workers: %w", errs.ErrInfeasibleInput)
	}
	if len(in.Stops) == 0 {
		return PlanResult{}, fmt.Errorf("plan: no stops: %w", errs.ErrInfeasibleInput)
	}
	if in.Travel == nil {
		return PlanResult{}, fmt.Errorf("plan: travel timer is nil: %w", errs.ErrValidation)
	}
	pts := make([]geo.Point, 0, len(in.Stops))
	for _, s := range in.Stops {
		if !s.Location.Valid() {
			return PlanResult{}, fmt.Errorf("plan: stop %s has invalid location: %w", s.ID, errs.ErrValidation)
		}
		pts = append(pts, s.Location)
	}

	started := time.Now()
	center := geo.Centroid(pts)
	clusters, err := Cluster(in.Stops, center, len(in.Workers))
	if err != nil {
		return PlanResult{}, err
	}

	date := in.Date.Format(model.DateLayout)
	midnight := time.Date(in.Date.Year(), in.Date.Month(), in.Date.Day(), 0, 0, 0, 0, in.Date.Location())

	routes := make([]model.Route, len(in.Workers))
	unassigned := make([][]string, len(in.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Parallelism)
	for i, w := range in.Workers {
		i, w := i, w
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			startMin, endMin := w.WorkStartMinutes, w.WorkEndMinutes
			if startMin == 0 && endMin == 0 {
				startMin, endMin = in.DefaultWorkStartMinutes, in.DefaultWorkEndMinutes
			}
			sin := SequenceInput{
				Stops:             clusters[i],
				Worker:            w,
				WindowStart:       midnight.Add(time.Duration(startMin) * time.Minute),
				WindowEnd:         midnight.Add(time.Duration(endMin) * time.Minute),
				Travel:            in.Travel,
				BreakMinutes:      in.BreakMinutes,
				BreakAfterMinutes: in.BreakAfterMinutes,
			}
			seq, err := Sequence(sin)
			if err != nil {
				return fmt.Errorf("worker %s: %w", w.ID, err)
			}
			if in.TwoOptPasses > 0 {
				seq = Improve(sin, seq, in.TwoOptPasses)
			}
			if locked := in.Locked[w.ID]; len(locked) > 0 {
				seq = dropLockedClashes(seq, locked, sin.WindowStart)
			}
			sc := ScoreRoute(w.Home, seq)
			eff := sc.Efficiency
			routes[i] = model.Route{
				EmployeeID:           w.ID,
				Date:                 date,
				Assignments:          seq.Assignments,
				TotalDistanceKm:      sc.TotalDistanceKm,
				TotalDurationMinutes: sc.TotalDurationMinutes,
				Efficiency:           &eff,
				Status:               model.RouteStatusPlanned,
			}
			unassigned[i] = seq.Unassigned
			p.Log.Debug().Str("employee", w.ID).Int("cluster", sc.ClusterSize).Int("assigned", sc.Assigned).
				Float64("efficiency", eff).Bool("break", seq.BreakInserted).Msg("route sequenced")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PlanResult{}, err
	}

	res := PlanResult{Routes: routes}
	for _, u := range unassigned {
		res.Unassigned = append(res.Unassigned, u...)
	}
	if mean, ok := AggregateEfficiency(routes); ok {
		res.Efficiency = &mean
	}
	assigned := len(in.Stops) - len(res.Unassigned)
	RecordSummary(Summary{
		Date:            date,
		RoutesOptimized: len(routes),
		TasksAssigned:   assigned,
		Unassigned:      len(res.Unassigned),
		Efficiency:      res.Efficiency,
		DurationMs:      time.Since(started).Milliseconds(),
		At:              time.Now().UTC(),
	})
	p.Log.Info().Str("date", date).Int("workers", len(in.Workers)).Int("stops", len(in.Stops)).
		Int("assigned", assigned).Dur("took", time.Since(started)).Msg("plan complete")
	return res, nil
}
