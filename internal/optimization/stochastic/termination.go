package stochastic

import (
	"context"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

// termination evaluates the stopping conditions once per generation. The
// precedence is fixed: target reached beats stagnation beats budget
// exhaustion, with cooperative cancellation checked first at the same
// checkpoint. All outcomes are terminal.
type termination struct {
	target          *float64
	stagnationLimit int
	sinceImprove    int
	reason          optimization.TerminationReason
}

func newTermination(target *float64, stagnationLimit int) *termination {
	return &termination{
		target:          target,
		stagnationLimit: stagnationLimit,
	}
}

// Observe feeds the improvement outcome of the current generation.
func (t *termination) Observe(improved bool) {
	if improved {
		t.sinceImprove = 0
	} else {
		t.sinceImprove++
	}
}

// Terminal moves the controller directly into a terminal state. Used by the
// driver when the evaluator reports budget exhaustion mid-generation.
func (t *termination) Terminal(reason optimization.TerminationReason) {
	if t.reason == optimization.TerminationNone {
		t.reason = reason
	}
}

// Check returns the termination reason for the current generation, or
// TerminationNone while the run should continue. Once terminal, the reason
// is latched and Check never unlatches it.
func (t *termination) Check(ctx context.Context, bestFitness float64, budgetExhausted bool) optimization.TerminationReason {
	if t.reason != optimization.TerminationNone {
		return t.reason
	}
	switch {
	case ctx.Err() != nil:
		t.reason = optimization.Cancelled
	case t.target != nil && bestFitness <= *t.target:
		t.reason = optimization.TargetReached
	case t.stagnationLimit > 0 && t.sinceImprove >= t.stagnationLimit:
		t.reason = optimization.Stagnated
	case budgetExhausted:
		t.reason = optimization.BudgetExhausted
	}
	return t.reason
}
