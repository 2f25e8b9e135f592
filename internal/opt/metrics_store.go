package opt

import (
	"sort"
	"sync"
	"time"
)

// Summary describes one planning run for a date.
type Summary struct {
	Date            string    `json:"date"`
	RoutesOptimized int       `json:"routesOptimized"`
	TasksAssigned   int       `json:"tasksAssigned"`
	Unassigned      int       `json:"unassigned"`
	Efficiency      *float64  `json:"efficiency,omitempty"`
	DurationMs      int64     `json:"durationMs"`
	At              time.Time `json:"at"`
}

const maxSummariesPerDate = 20

var (
	mu    sync.Mutex
	store = map[string][]Summary{}
)

// RecordSummary keeps the latest runs per date, oldest dropped first.
func RecordSummary(s Summary) {
	mu.Lock()
	defer mu.Unlock()
	runs := append(store[s.Date], s)
	if len(runs) > maxSummariesPerDate {
		runs = runs[len(runs)-maxSummariesPerDate:]
	}
	store[s.Date] = runs
}

// GetSummaries returns the recorded runs for date, newest first.
func GetSummaries(date string) []Summary {
	mu.Lock()
	defer mu.Unlock()
	out := append([]Summary(nil), store[date]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out
}
