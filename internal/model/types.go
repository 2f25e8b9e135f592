package model

import (
	"time"

	"carenav/internal/geo"
)

// Core domain types for day planning and labour-time compliance.

type GeoPoint = geo.Point

// TimeWindow bounds when a stop may be started.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Stop is one service visit to plan. Immutable for the duration of a planning run.
type Stop struct {
	ID                   string      `json:"id"`
	ClientID             string      `json:"clientId,omitempty"`
	Location             GeoPoint    `json:"location"`
	DurationMinutes      int         `json:"durationMinutes"`
	Priority             string      `json:"priority,omitempty"`
	RequiredCompetencies []string    `json:"requiredCompetencies,omitempty"`
	Window               *TimeWindow `json:"window,omitempty"`
}

// Worker is a mobile employee that stops are assigned to.
type Worker struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	Competencies     []string `json:"competencies,omitempty"`
	Home             GeoPoint `json:"home"`
	WeeklyHours      float64  `json:"weeklyHours"`
	WorkStartMinutes int      `json:"workStartMinutes"` // minutes after midnight
	WorkEndMinutes   int      `json:"workEndMinutes"`
}

// Qualified reports whether w holds every competency in required.
func (w Worker) Qualified(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(w.Competencies))
	for _, c := range w.Competencies {
		have[c] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// Route and assignment statuses.
const (
	RouteStatusPlanned    = "planned"
	RouteStatusInProgress = "in_progress"
	RouteStatusCompleted  = "completed"

	AssignmentStatusPending   = "pending"
	AssignmentStatusCompleted = "completed"
)

// Route is the ordered plan of one worker on one date.
type Route struct {
	ID                   string       `json:"id"`
	EmployeeID           string       `json:"employeeId"`
	Date                 string       `json:"date"` // YYYY-MM-DD
	Assignments          []Assignment `json:"assignments"`
	TotalDistanceKm      float64      `json:"totalDistanceKm"`
	TotalDurationMinutes int          `json:"totalDurationMinutes"`
	Efficiency           *float64     `json:"efficiency,omitempty"`
	Status               string       `json:"status"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// Assignment places one stop on a route at a computed time.
type Assignment struct {
	ID            string    `json:"id"`
	StopID        string    `json:"stopId"`
	EmployeeID    string    `json:"employeeId"`
	RouteID       string    `json:"routeId,omitempty"`
	Start         time.Time `json:"startTime"`
	End           time.Time `json:"endTime"`
	Order         int       `json:"order"`
	TravelMinutes int       `json:"travelMinutes"`
	Locked        bool      `json:"isLocked"`
	Status        string    `json:"status"`
}

// Clashes reports whether a would serve a stop one of locked already serves, or
// overlap one of them in time.
func (a Assignment) Clashes(locked []Assignment) bool {
	for _, l := range locked {
		if l.StopID == a.StopID || (a.Start.Before(l.End) && l.Start.Before(a.End)) {
			return true
		}
	}
	return false
}

// WorkLog is one recorded shift. Start and End are nil when not clocked.
type WorkLog struct {
	EmployeeID string     `json:"employeeId"`
	Date       time.Time  `json:"date"`
	Start      *time.Time `json:"startTime,omitempty"`
	End        *time.Time `json:"endTime,omitempty"`
}

// Schedule is the planned and actual hours of one week.
type Schedule struct {
	EmployeeID   string    `json:"employeeId"`
	WeekStart    time.Time `json:"weekStart"`
	PlannedHours float64   `json:"plannedHours"`
	ActualHours  *float64  `json:"actualHours,omitempty"`
	Status       string    `json:"complianceStatus,omitempty"`
}

// Hours returns the actual hours when recorded and non-zero, the planned hours otherwise.
func (s Schedule) Hours() float64 {
	if s.ActualHours != nil && *s.ActualHours != 0 {
		return *s.ActualHours
	}
	return s.PlannedHours
}

// Compliance read models

type Violation struct {
	Rule    string  `json:"rule"`
	Message string  `json:"message"`
	Date    string  `json:"date,omitempty"`
	Value   float64 `json:"value"`
}

type Warning struct {
	Rule         string  `json:"rule"`
	Message      string  `json:"message"`
	CurrentValue float64 `json:"currentValue"`
	Threshold    float64 `json:"threshold"`
}

type ComplianceResult struct {
	EmployeeID  string      `json:"employeeId"`
	IsCompliant bool        `json:"isCompliant"`
	Violations  []Violation `json:"violations"`
	Warnings    []Warning   `json:"warnings"`
}

type AssignmentCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type WeeklyHoursStatus struct {
	Planned     float64 `json:"planned"`
	Actual      float64 `json:"actual"`
	Remaining   float64 `json:"remaining"`
	PercentUsed int     `json:"percentUsed"`
}

// Request models

type OptimizeRequest struct {
	Date                      string   `json:"date"`
	EmployeeIDs               []string `json:"employeeIds,omitempty"`
	PreserveLockedAssignments *bool    `json:"preserveLockedAssignments,omitempty"`
}

type OptimizeResponse struct {
	Success         bool     `json:"success"`
	Date            string   `json:"date"`
	RoutesOptimized int      `json:"routesOptimized"`
	TasksAssigned   int      `json:"tasksAssigned"`
	Unassigned      []string `json:"unassigned,omitempty"`
	Efficiency      *float64 `json:"efficiency,omitempty"`
	Routes          []Route  `json:"routes"`
}

type ValidateAssignmentRequest struct {
	EmployeeID string `json:"employeeId"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// RoutesUpdated is broadcast after a successful planning run.
type RoutesUpdated struct {
	Date      string `json:"date"`
	UpdatedAt string `json:"updatedAt"`
	Routes    int    `json:"routes"`
}

// DateLayout is the calendar-date wire format.
const DateLayout = "2006-01-02"

// ComplianceSnapshot is one consistent read of an employee's history.
type ComplianceSnapshot struct {
	Logs      []WorkLog
	Schedules []Schedule
}
