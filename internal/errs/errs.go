// Package errs defines the error kinds shared by the planning and compliance packages.
package errs

import "errors"

var (
	// ErrNotFound marks an unknown employee, route or stop reference.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input: bad date ranges, non-positive worker counts, missing coordinates.
	ErrValidation = errors.New("validation error")
	// ErrInfeasibleInput marks a planning request with no stops or no workers.
	ErrInfeasibleInput = errors.New("infeasible input")
	// ErrExternalUnavailable marks a travel or weather provider failure. Callers recover it with a fallback.
	ErrExternalUnavailable = errors.New("external service unavailable")
)

// Kind returns the sentinel matching err, or nil when err carries none of them.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrValidation, ErrInfeasibleInput, ErrExternalUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
