package stochastic

import (
	"math"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

// evaluator wraps the user objective with evaluation counting, the hard
// budget cap and the optional maximize transform. All fitness values inside
// the engine are in minimization orientation; Restore undoes the transform
// for reporting.
type evaluator struct {
	objective optimization.ObjectiveFunction
	budget    int
	count     int
	negate    bool
}

func newEvaluator(objective optimization.ObjectiveFunction, budget int, maximize bool) *evaluator {
	return &evaluator{
		objective: objective,
		budget:    budget,
		negate:    maximize,
	}
}

// Evaluate scores one user-space vector. It returns ErrBudgetExhausted once
// the cap is reached, without calling the objective. A failing objective or
// a non-finite result consumes one evaluation and yields a
// NonFiniteObjectiveError.
func (e *evaluator) Evaluate(x []float64) (float64, error) {
	if e.count >= e.budget {
		return 0, optimization.ErrBudgetExhausted
	}
	e.count++

	f, err := e.objective(x)
	if err != nil {
		return 0, &optimization.NonFiniteObjectiveError{Err: err}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &optimization.NonFiniteObjectiveError{Value: f}
	}
	if e.negate {
		f = -f
	}
	return f, nil
}

// Count returns the number of evaluations consumed so far.
func (e *evaluator) Count() int {
	return e.count
}

// Exhausted reports whether the budget is used up.
func (e *evaluator) Exhausted() bool {
	return e.count >= e.budget
}

// Transform converts a user-orientation fitness into engine orientation.
func (e *evaluator) Transform(f float64) float64 {
	if e.negate {
		return -f
	}
	return f
}

// Restore converts an engine-orientation fitness back to user orientation.
func (e *evaluator) Restore(f float64) float64 {
	if e.negate {
		return -f
	}
	return f
}
