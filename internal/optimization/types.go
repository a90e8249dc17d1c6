package optimization

import (
	"context"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process against the given objective
	Optimize(ctx context.Context, objective ObjectiveFunction) (*RunResult, error)

	// BestSolution returns the best solution found so far
	BestSolution() *Solution

	// Progress returns the recorded progress trace
	Progress() []ProgressSample

	// Stop gracefully stops the optimization process
	Stop()
}

// ObjectiveFunction defines the function to be optimized. It receives a
// parameter vector and returns a single fitness value. Returning an error
// marks the candidate as invalid; it does not abort the run.
type ObjectiveFunction func([]float64) (float64, error)

// Options contains the tunable configuration for a run. Zero values select
// the documented defaults.
type Options struct {
	// MaxEvaluations is the hard cap on objective evaluations (required)
	MaxEvaluations int

	// PopulationSize is the number of candidates held; 0 derives max(10, 4*D)
	PopulationSize int

	// TargetFitness stops the run once best fitness reaches this value
	TargetFitness *float64

	// StagnationGenerations stops the run after this many generations
	// without improvement to the best; 0 derives 1000
	StagnationGenerations int

	// NumRestarts is the number of independent restarts; 0 derives 1
	NumRestarts int

	// RandomSeed makes runs reproducible; 0 seeds from the clock
	RandomSeed int64

	// Maximize negates the objective internally
	Maximize bool

	// ScaleInit, ScaleMin and ScaleMax bound the global mutation scale;
	// zeros derive 0.5, 0.05 and 1.0
	ScaleInit float64
	ScaleMin  float64
	ScaleMax  float64

	// AdaptInterval is the window, in generations, between weight and scale
	// updates; 0 derives 20
	AdaptInterval int

	// WeightFloor is the minimum selection probability kept for every
	// generator; 0 derives 0.10
	WeightFloor float64

	// CrossoverProb governs per-coordinate mixing in the best-guided
	// crossover generator; 0 derives 0.7
	CrossoverProb float64
}

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64
	Value      float64
}

// ProgressSample is a snapshot of run state taken once per adaptation window.
type ProgressSample struct {
	Generation  int
	Evaluations int
	BestFitness float64
	Scale       float64
}

// TerminationReason reports why a run stopped.
type TerminationReason int

const (
	// TerminationNone means the run is still in progress.
	TerminationNone TerminationReason = iota
	// TargetReached means best fitness reached the configured target.
	TargetReached
	// Stagnated means the best fitness did not improve for the configured
	// number of consecutive generations.
	Stagnated
	// BudgetExhausted means the evaluation budget was used up.
	BudgetExhausted
	// Cancelled means the caller's context was cancelled.
	Cancelled
)

// String returns the reason in the wire format used by the server.
func (r TerminationReason) String() string {
	switch r {
	case TargetReached:
		return "TARGET_REACHED"
	case Stagnated:
		return "STAGNATED"
	case BudgetExhausted:
		return "BUDGET_EXHAUSTED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "RUNNING"
	}
}

// RunResult contains the result of an optimization run
type RunResult struct {
	// BestParameters is the best parameter vector found, in user space
	BestParameters []float64
	// BestFitness is the objective value at BestParameters
	BestFitness float64
	// Evaluations is the number of objective evaluations the winning run
	// consumed; it never exceeds the configured maximum
	Evaluations int
	// TotalEvaluations is the number of objective evaluations consumed
	// across all restarts; it equals Evaluations for a single-start run
	TotalEvaluations int
	// Reason reports why the run terminated
	Reason TerminationReason
	// Progress holds one sample per adaptation window
	Progress []ProgressSample
}

// BestSolution returns the result as a Solution.
func (r *RunResult) BestSolution() *Solution {
	if r == nil {
		return nil
	}
	return &Solution{Parameters: r.BestParameters, Value: r.BestFitness}
}
