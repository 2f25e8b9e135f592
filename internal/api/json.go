package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"carenav/internal/errs"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps an error kind to its status code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	status := http.StatusInternalServerError
	switch errs.Kind(err) {
	case errs.ErrNotFound:
		status = http.StatusNotFound
	case errs.ErrValidation:
		status = http.StatusBadRequest
	case errs.ErrInfeasibleInput:
		status = http.StatusUnprocessableEntity
	case errs.ErrExternalUnavailable:
		status = http.StatusServiceUnavailable
	}
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		s.Log.Error().Err(err).Str("path", r.URL.Path).Msg(title)
	}
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}

// kindLabel names an error kind for metric labels.
func kindLabel(err error) string {
	switch errs.Kind(err) {
	case errs.ErrNotFound:
		return "not_found"
	case errs.ErrValidation:
		return "invalid"
	case errs.ErrInfeasibleInput:
		return "infeasible"
	case errs.ErrExternalUnavailable:
		return "unavailable"
	}
	return ""
}
