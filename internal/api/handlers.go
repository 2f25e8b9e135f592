package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"carenav/internal/compliance"
	"carenav/internal/model"
	"carenav/internal/opt"
)

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	res, err := s.RunOptimize(r.Context(), req)
	if err != nil {
		s.writeError(w, r, "Optimize failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RoutesIndexHandler handles GET /v1/routes?date=&employeeId=
func (s *Server) RoutesIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := parseDate("date", date); err != nil {
			s.writeError(w, r, "Invalid date", err)
			return
		}
	}
	routes, err := s.Store.ListRoutes(r.Context(), date)
	if err != nil {
		s.writeError(w, r, "List routes failed", err)
		return
	}
	if emp := r.URL.Query().Get("employeeId"); emp != "" {
		kept := routes[:0]
		for _, rt := range routes {
			if rt.EmployeeID == emp {
				kept = append(kept, rt)
			}
		}
		routes = kept
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": routes})
}

// RouteByIDHandler handles GET /v1/routes/{id}
func (s *Server) RouteByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/routes/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rt, err := s.Store.GetRoute(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "Route not found", err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// EfficiencyHandler handles GET /v1/analytics/efficiency?date=
func (s *Server) EfficiencyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(model.DateLayout)
	} else if _, err := parseDate("date", date); err != nil {
		s.writeError(w, r, "Invalid date", err)
		return
	}
	routes, err := s.Store.ListRoutes(r.Context(), date)
	if err != nil {
		s.writeError(w, r, "List routes failed", err)
		return
	}
	var distance float64
	var duration, assignments int
	for _, rt := range routes {
		distance += rt.TotalDistanceKm
		duration += rt.TotalDurationMinutes
		assignments += len(rt.Assignments)
	}
	body := map[string]any{
		"date":                 date,
		"routes":               len(routes),
		"assignments":          assignments,
		"totalDistanceKm":      distance,
		"totalDurationMinutes": duration,
		"efficiency":           nil,
	}
	if mean, ok := opt.AggregateEfficiency(routes); ok {
		body["efficiency"] = mean
	}
	writeJSON(w, http.StatusOK, body)
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics?date=
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeProblem(w, http.StatusBadRequest, "Missing date", "", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": opt.GetSummaries(date)})
}

// ComplianceCheckHandler handles GET /v1/compliance/check/{employeeId}?startDate&endDate
func (s *Server) ComplianceCheckHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/compliance/check/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing employee id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	end := time.Now()
	start := end.Add(-compliance.DefaultLookback)
	var err error
	if v := r.URL.Query().Get("endDate"); v != "" {
		if end, err = parseInstant("endDate", v); err != nil {
			s.writeError(w, r, "Invalid endDate", err)
			return
		}
	}
	if v := r.URL.Query().Get("startDate"); v != "" {
		if start, err = parseInstant("startDate", v); err != nil {
			s.writeError(w, r, "Invalid startDate", err)
			return
		}
	}
	res, err := s.Compliance.CheckCompliance(r.Context(), id, start, end)
	if err != nil {
		s.writeError(w, r, "Compliance check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ValidateAssignmentHandler handles POST /v1/compliance/validate-assignment
func (s *Server) ValidateAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.ValidateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	start, end, err := validateAssignmentRequest(&req)
	if err != nil {
		s.writeError(w, r, "Invalid assignment", err)
		return
	}
	res, err := s.Compliance.ValidateAssignment(r.Context(), req.EmployeeID, start, end)
	if err != nil {
		s.writeError(w, r, "Validate assignment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// WeeklyHoursHandler handles GET /v1/compliance/weekly-hours/{employeeId}?weekStart=
func (s *Server) WeeklyHoursHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/compliance/weekly-hours/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing employee id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	weekStart, err := parseDate("weekStart", r.URL.Query().Get("weekStart"))
	if err != nil {
		s.writeError(w, r, "Invalid weekStart", err)
		return
	}
	res, err := s.Compliance.WeeklyHoursStatus(r.Context(), id, weekStart)
	if err != nil {
		s.writeError(w, r, "Weekly hours failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
