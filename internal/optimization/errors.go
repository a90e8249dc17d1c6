package optimization

import (
	"errors"
	"fmt"
)

// ErrBudgetExhausted is returned by the evaluator once the evaluation cap is
// reached. The driver absorbs it as a terminal condition; callers of the
// public entry points never observe it as an error.
var ErrBudgetExhausted = errors.New("evaluation budget exhausted")

// InvalidBoundsError reports malformed lower/upper bound vectors. It is
// raised before any objective evaluation takes place.
type InvalidBoundsError struct {
	// Index is the offending coordinate, or -1 for a length mismatch.
	Index int
	// Reason describes what is wrong with the bounds.
	Reason string
}

// Error returns the string representation of the error.
func (e *InvalidBoundsError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid bounds: %s", e.Reason)
	}
	return fmt.Sprintf("invalid bounds at coordinate %d: %s", e.Index, e.Reason)
}

// InvalidConfigurationError reports an unusable Options field. It is raised
// at construction, before any work begins.
type InvalidConfigurationError struct {
	Field  string
	Reason string
}

// Error returns the string representation of the error.
func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NonFiniteObjectiveError reports that the objective returned NaN or an
// infinity, or failed outright, for one candidate. The driver discards the
// candidate and continues; the run is never aborted by this error.
type NonFiniteObjectiveError struct {
	// Value is the non-finite fitness the objective returned, if any.
	Value float64
	// Err is the underlying objective error, if the callable failed.
	Err error
}

// Error returns the string representation of the error.
func (e *NonFiniteObjectiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("objective failed: %v", e.Err)
	}
	return fmt.Sprintf("objective returned non-finite value %v", e.Value)
}

// Unwrap returns the underlying objective error, if any.
func (e *NonFiniteObjectiveError) Unwrap() error {
	return e.Err
}

// IsNonFinite reports whether err marks a discarded candidate.
func IsNonFinite(err error) bool {
	var nf *NonFiniteObjectiveError
	return errors.As(err, &nf)
}
