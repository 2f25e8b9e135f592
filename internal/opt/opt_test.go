package opt

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carenav/internal/errs"
	"carenav/internal/geo"
	"carenav/internal/logging"
	"carenav/internal/model"
)

var home = geo.Point{Lat: 55.68, Lng: 12.57}

func grid(n int) []model.Stop {
	out := make([]model.Stop, n)
	for i := range out {
		out[i] = model.Stop{
			ID:              fmt.Sprintf("s%02d", i),
			Location:        geo.Point{Lat: 55.60 + float64(i%10)*0.01, Lng: 12.50 + float64(i/10)*0.01},
			DurationMinutes: 30,
		}
	}
	return out
}

func day(h, m int) time.Time { return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC) }

func TestClusterSizesAndCoverage(t *testing.T) {
	stops := grid(23)
	clusters, err := Cluster(stops, geo.Centroid(pointsOf(stops)), 4)
	require.NoError(t, err)
	require.Len(t, clusters, 4)
	seen := map[string]bool{}
	for _, c := range clusters {
		assert.LessOrEqual(t, len(c), 6)
		for _, s := range c {
			assert.False(t, seen[s.ID], "duplicate %s", s.ID)
			seen[s.ID] = true
		}
	}
	assert.Len(t, seen, 23)
}

func TestClusterEdgeCases(t *testing.T) {
	_, err := Cluster(grid(3), home, 0)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	clusters, err := Cluster(nil, home, 3)
	require.NoError(t, err)
	require.Len(t, clusters, 3)
	for _, c := range clusters {
		assert.Empty(t, c)
	}

	// more workers than stops: trailing clusters stay empty
	clusters, err = Cluster(grid(2), home, 5)
	require.NoError(t, err)
	assert.Len(t, clusters[0], 1)
	assert.Len(t, clusters[1], 1)
	assert.Empty(t, clusters[4])
}

func TestClusterOrdersByAngle(t *testing.T) {
	c := geo.Point{}
	stops := []model.Stop{
		{ID: "east", Location: geo.Point{Lat: 0, Lng: 1}},
		{ID: "west", Location: geo.Point{Lat: 0, Lng: -1}},
		{ID: "north", Location: geo.Point{Lat: 1, Lng: 0}},
		{ID: "south", Location: geo.Point{Lat: -1, Lng: 0}},
	}
	clusters, err := Cluster(stops, c, 4)
	require.NoError(t, err)
	got := []string{clusters[0][0].ID, clusters[1][0].ID, clusters[2][0].ID, clusters[3][0].ID}
	assert.Equal(t, []string{"west", "north", "east", "south"}, got)
}

func TestSequenceStopsAtWindowEnd(t *testing.T) {
	in := SequenceInput{
		Stops:       grid(50),
		Worker:      model.Worker{ID: "w1", Home: home},
		WindowStart: day(7, 0),
		WindowEnd:   day(16, 0),
		Travel:      FixedTravel(8),
	}
	seq, err := Sequence(in)
	require.NoError(t, err)
	require.Len(t, seq.Assignments, 14)
	assert.Len(t, seq.Unassigned, 36)
	assert.Equal(t, 540, seq.ElapsedMinutes)
	prev := time.Time{}
	for i, a := range seq.Assignments {
		assert.Equal(t, i, a.Order)
		assert.False(t, a.End.After(in.WindowEnd))
		assert.True(t, a.Start.After(prev))
		assert.Equal(t, 8, a.TravelMinutes)
		prev = a.End
	}
	assert.Equal(t, day(7, 8), seq.Assignments[0].Start)
}

func TestSequenceNearestNeighbourWithTies(t *testing.T) {
	stops := []model.Stop{
		{ID: "far", Location: geo.Point{Lat: 1, Lng: 0}, DurationMinutes: 10},
		{ID: "tieA", Location: geo.Point{Lat: 0, Lng: 0.1}, DurationMinutes: 10},
		{ID: "tieB", Location: geo.Point{Lat: 0, Lng: -0.1}, DurationMinutes: 10},
	}
	in := SequenceInput{
		Stops: stops, Worker: model.Worker{ID: "w", Home: geo.Point{}},
		WindowStart: day(8, 0), WindowEnd: day(17, 0), Travel: FixedTravel(5),
	}
	seq, err := Sequence(in)
	require.NoError(t, err)
	ids := []string{}
	for _, a := range seq.Assignments {
		ids = append(ids, a.StopID)
	}
	assert.Equal(t, []string{"tieA", "tieB", "far"}, ids)

	again, err := Sequence(in)
	require.NoError(t, err)
	assert.Equal(t, seq, again)
}

func TestSequenceBreakAndWindows(t *testing.T) {
	stops := []model.Stop{
		{ID: "a", Location: geo.Point{Lat: 0, Lng: 0.01}, DurationMinutes: 60},
		{ID: "b", Location: geo.Point{Lat: 0, Lng: 0.02}, DurationMinutes: 60},
		{ID: "c", Location: geo.Point{Lat: 0, Lng: 0.03}, DurationMinutes: 60,
			Window: &model.TimeWindow{Start: day(12, 0), End: day(13, 0)}},
	}
	in := SequenceInput{
		Stops: stops, Worker: model.Worker{ID: "w", Home: geo.Point{}},
		WindowStart: day(8, 0), WindowEnd: day(16, 0), Travel: FixedTravel(10),
		BreakMinutes: 30, BreakAfterMinutes: 120,
	}
	seq, err := Sequence(in)
	require.NoError(t, err)
	require.Len(t, seq.Assignments, 3)
	assert.True(t, seq.BreakInserted)
	// a: 08:10-09:10, b: 09:20-10:20, break at elapsed 140, c waits for 12:00
	assert.Equal(t, day(9, 20), seq.Assignments[1].Start)
	assert.Equal(t, day(12, 0), seq.Assignments[2].Start)

	stops[2].Window = &model.TimeWindow{Start: day(8, 0), End: day(9, 0)}
	seq, err = Sequence(in)
	require.NoError(t, err)
	assert.Len(t, seq.Assignments, 2)
	assert.Equal(t, []string{"c"}, seq.Unassigned)
}

func TestSequenceSkipsUnqualifiedStops(t *testing.T) {
	stops := grid(3)
	stops[1].RequiredCompetencies = []string{"insulin"}
	in := SequenceInput{
		Stops: stops, Worker: model.Worker{ID: "w", Home: home},
		WindowStart: day(7, 0), WindowEnd: day(16, 0), Travel: FixedTravel(5),
	}
	seq, err := Sequence(in)
	require.NoError(t, err)
	assert.Len(t, seq.Assignments, 2)
	assert.Equal(t, []string{"s01"}, seq.Unassigned)
	assert.Equal(t, 3, seq.ClusterSize)

	in.Worker.Competencies = []string{"insulin"}
	seq, err = Sequence(in)
	require.NoError(t, err)
	assert.Len(t, seq.Assignments, 3)
}

func TestSequenceRejectsBadInput(t *testing.T) {
	_, err := Sequence(SequenceInput{WindowStart: day(8, 0), WindowEnd: day(8, 0), Travel: FixedTravel(1)})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	_, err = Sequence(SequenceInput{WindowStart: day(8, 0), WindowEnd: day(9, 0)})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.7, Efficiency(7, 10))
	assert.Equal(t, 0.33, Efficiency(1, 3))
	assert.Equal(t, 0.0, Efficiency(0, 0))
	assert.Equal(t, 1.0, Efficiency(3, 3))

	s := ScoreRoute(geo.Point{}, Sequenced{
		Assignments:    make([]model.Assignment, 2),
		Path:           []geo.Point{{Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}},
		ElapsedMinutes: 95,
		ClusterSize:    4,
	})
	assert.Equal(t, 0.5, s.Efficiency)
	assert.InDelta(t, 222.39, s.TotalDistanceKm, 0.1)
	assert.Equal(t, 95, s.TotalDurationMinutes)

	a, b := 0.5, 1.0
	mean, ok := AggregateEfficiency([]model.Route{{Efficiency: &a}, {}, {Efficiency: &b}})
	assert.True(t, ok)
	assert.Equal(t, 0.75, mean)
	_, ok = AggregateEfficiency([]model.Route{{}})
	assert.False(t, ok)
}

func TestImproveShortensCrossingTour(t *testing.T) {
	stops := []model.Stop{
		{ID: "a", Location: geo.Point{Lat: 0, Lng: 1}, DurationMinutes: 10},
		{ID: "b", Location: geo.Point{Lat: 0, Lng: 3}, DurationMinutes: 10},
		{ID: "c", Location: geo.Point{Lat: 0, Lng: 2}, DurationMinutes: 10},
		{ID: "d", Location: geo.Point{Lat: 0, Lng: 4}, DurationMinutes: 10},
	}
	in := SequenceInput{
		Stops: stops, Worker: model.Worker{ID: "w", Home: geo.Point{}},
		WindowStart: day(8, 0), WindowEnd: day(16, 0), Travel: FixedTravel(5),
	}
	// hand-built crossing tour a, b, c, d
	var seq Sequenced
	for i, s := range stops {
		seq.Assignments = append(seq.Assignments, model.Assignment{StopID: s.ID, Order: i})
		seq.Path = append(seq.Path, s.Location)
	}
	seq.ClusterSize = 4
	better := Improve(in, seq, 5)
	require.Len(t, better.Assignments, 4)
	assert.Less(t, pathKm(geo.Point{}, better.Path), pathKm(geo.Point{}, seq.Path))
	assert.Equal(t, "c", better.Assignments[1].StopID)
	assert.Equal(t, 4, better.ClusterSize)
}

func TestImproveKeepsOverrunTravelInElapsed(t *testing.T) {
	stops := []model.Stop{
		{ID: "a", Location: geo.Point{Lat: 0, Lng: 1}, DurationMinutes: 10},
		{ID: "b", Location: geo.Point{Lat: 0, Lng: 3}, DurationMinutes: 10},
		{ID: "c", Location: geo.Point{Lat: 0, Lng: 2}, DurationMinutes: 10},
		{ID: "d", Location: geo.Point{Lat: 0, Lng: 4}, DurationMinutes: 10},
		{ID: "e", Location: geo.Point{Lat: 0, Lng: 5}, DurationMinutes: 600},
	}
	in := SequenceInput{
		Stops: stops, Worker: model.Worker{ID: "w", Home: geo.Point{}},
		WindowStart: day(8, 0), WindowEnd: day(16, 0), Travel: FixedTravel(5),
	}
	var seq Sequenced
	for i, s := range stops[:4] {
		seq.Assignments = append(seq.Assignments, model.Assignment{StopID: s.ID, Order: i})
		seq.Path = append(seq.Path, s.Location)
	}
	seq.overrun = "e"
	seq.ClusterSize = 5

	better := Improve(in, seq, 5)
	require.Len(t, better.Assignments, 4)
	// a, c, b, d end at 09:00; the 5-minute leg towards e still counts
	assert.Equal(t, day(9, 0), better.Assignments[3].End)
	assert.Equal(t, 65, better.ElapsedMinutes)
}

func TestPlannerPlansEveryWorker(t *testing.T) {
	workers := []model.Worker{
		{ID: "w1", Home: home},
		{ID: "w2", Home: home},
		{ID: "w3", Home: home},
	}
	in := PlanInput{
		Date:                    day(0, 0),
		Stops:                   grid(30),
		Workers:                 workers,
		Travel:                  FixedTravel(8),
		DefaultWorkStartMinutes: 7 * 60,
		DefaultWorkEndMinutes:   16 * 60,
		TwoOptPasses:            2,
	}
	p := NewPlanner(2, logging.Nop())
	res, err := p.Plan(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Routes, 3)
	total := len(res.Unassigned)
	for i, r := range res.Routes {
		assert.Equal(t, workers[i].ID, r.EmployeeID)
		assert.Equal(t, "2025-03-10", r.Date)
		require.NotNil(t, r.Efficiency)
		assert.Equal(t, 1.0, *r.Efficiency)
		total += len(r.Assignments)
	}
	assert.Equal(t, 30, total)
	require.NotNil(t, res.Efficiency)

	sums := GetSummaries("2025-03-10")
	require.NotEmpty(t, sums)
	assert.Equal(t, 30, sums[0].TasksAssigned)

	again, err := p.Plan(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestPlannerDropsStopsClashingWithLockedAssignments(t *testing.T) {
	date := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	held := model.Assignment{
		StopID: "held", EmployeeID: "w1", Locked: true,
		Start: date.Add(7 * time.Hour), End: date.Add(8 * time.Hour),
	}
	in := PlanInput{
		Date:                    date,
		Stops:                   grid(4),
		Workers:                 []model.Worker{{ID: "w1", Home: home}},
		Travel:                  FixedTravel(10),
		DefaultWorkStartMinutes: 7 * 60,
		DefaultWorkEndMinutes:   16 * 60,
		Locked:                  map[string][]model.Assignment{"w1": {held}},
	}
	res, err := NewPlanner(1, logging.Nop()).Plan(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Routes, 1)
	rt := res.Routes[0]

	// 07:10 and 07:50 overlap the 07:00-08:00 lock; 08:30 and 09:10 do not
	assert.ElementsMatch(t, []string{"s03", "s02"}, res.Unassigned)
	require.Len(t, rt.Assignments, 2)
	for i, a := range rt.Assignments {
		assert.Equal(t, i, a.Order)
		assert.False(t, a.Clashes([]model.Assignment{held}))
	}
	require.NotNil(t, rt.Efficiency)
	assert.Equal(t, 0.5, *rt.Efficiency)
	assert.Equal(t, 160, rt.TotalDurationMinutes)
	kept := []geo.Point{grid(4)[1].Location, grid(4)[0].Location}
	assert.Equal(t, round2(pathKm(home, kept)), rt.TotalDistanceKm)
	assert.Equal(t, 2, GetSummaries("2025-03-11")[0].TasksAssigned)
}

func TestPlannerInfeasible(t *testing.T) {
	p := NewPlanner(1, logging.Nop())
	_, err := p.Plan(context.Background(), PlanInput{Stops: grid(1), Travel: FixedTravel(1)})
	assert.True(t, errors.Is(err, errs.ErrInfeasibleInput))
	_, err = p.Plan(context.Background(), PlanInput{Workers: []model.Worker{{ID: "w"}}, Travel: FixedTravel(1)})
	assert.True(t, errors.Is(err, errs.ErrInfeasibleInput))

	bad := grid(1)
	bad[0].Location.Lat = 120
	_, err = p.Plan(context.Background(), PlanInput{Stops: bad, Workers: []model.Worker{{ID: "w"}}, Travel: FixedTravel(1)})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestPlannerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPlanner(1, logging.Nop())
	_, err := p.Plan(ctx, PlanInput{
		Date: day(0, 0), Stops: grid(4), Workers: []model.Worker{{ID: "w"}}, Travel: FixedTravel(1),
		DefaultWorkStartMinutes: 420, DefaultWorkEndMinutes: 960,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func pointsOf(stops []model.Stop) []geo.Point {
	out := make([]geo.Point, len(stops))
	for i, s := range stops {
		out[i] = s.Location
	}
	return out
}
