package stochastic

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/objectives"
)

func TestEvaluatorCountsAndCaps(t *testing.T) {
	eval := newEvaluator(objectives.Sphere, 3, false)

	for i := 0; i < 3; i++ {
		f, err := eval.Evaluate([]float64{2})
		require.NoError(t, err)
		assert.Equal(t, 4.0, f)
		assert.Equal(t, i+1, eval.Count())
	}
	assert.True(t, eval.Exhausted())

	_, err := eval.Evaluate([]float64{2})
	assert.ErrorIs(t, err, optimization.ErrBudgetExhausted)
	// The rejected call must not consume an evaluation
	assert.Equal(t, 3, eval.Count())
}

func TestEvaluatorNonFinite(t *testing.T) {
	tests := []struct {
		name      string
		objective optimization.ObjectiveFunction
	}{
		{"NaN", func(x []float64) (float64, error) { return math.NaN(), nil }},
		{"positive infinity", func(x []float64) (float64, error) { return math.Inf(1), nil }},
		{"negative infinity", func(x []float64) (float64, error) { return math.Inf(-1), nil }},
		{"error", func(x []float64) (float64, error) { return 0, fmt.Errorf("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := newEvaluator(tt.objective, 10, false)
			_, err := eval.Evaluate([]float64{1})
			require.Error(t, err)
			assert.True(t, optimization.IsNonFinite(err))
			assert.False(t, errors.Is(err, optimization.ErrBudgetExhausted))
			// Invalid results still burn budget
			assert.Equal(t, 1, eval.Count())
		})
	}
}

func TestEvaluatorMaximizeNegates(t *testing.T) {
	eval := newEvaluator(func(x []float64) (float64, error) { return 7, nil }, 10, true)

	f, err := eval.Evaluate([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, -7.0, f)
	assert.Equal(t, 7.0, eval.Restore(f))
	assert.Equal(t, -7.0, eval.Transform(7.0))
}
