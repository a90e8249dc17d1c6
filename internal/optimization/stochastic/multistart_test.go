package stochastic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/objectives"
)

func TestMultiStartNeverWorseThanAnyRestart(t *testing.T) {
	lower, upper := uniformBounds(3, -5.12, 5.12)
	opts := optimization.Options{
		MaxEvaluations: 2000,
		RandomSeed:     21,
	}

	// Run the four seeds individually first
	individual := make([]*optimization.RunResult, 4)
	for k := range individual {
		o := opts
		o.RandomSeed = opts.RandomSeed + int64(k)
		res, err := Minimize(context.Background(), objectives.Rastrigin, lower, upper, o)
		require.NoError(t, err)
		individual[k] = res
	}

	o := opts
	o.NumRestarts = 4
	combined, err := Minimize(context.Background(), objectives.Rastrigin, lower, upper, o)
	require.NoError(t, err)

	for k, res := range individual {
		assert.LessOrEqual(t, combined.BestFitness, res.BestFitness, "restart %d", k)
	}
}

func TestMultiStartDeterministic(t *testing.T) {
	lower, upper := uniformBounds(2, -5, 5)
	opts := optimization.Options{
		MaxEvaluations: 1500,
		NumRestarts:    3,
		RandomSeed:     33,
	}

	a, err := Minimize(context.Background(), objectives.Ackley, lower, upper, opts)
	require.NoError(t, err)
	b, err := Minimize(context.Background(), objectives.Ackley, lower, upper, opts)
	require.NoError(t, err)

	assert.Equal(t, a.BestFitness, b.BestFitness)
	assert.Equal(t, a.BestParameters, b.BestParameters)
	assert.Equal(t, a.Evaluations, b.Evaluations)
}

func TestMultiStartEvaluationsWithinBudget(t *testing.T) {
	lower, upper := uniformBounds(2, -1, 1)
	opts := optimization.Options{
		MaxEvaluations: 200,
		NumRestarts:    4,
		RandomSeed:     2,
	}

	result, err := Minimize(context.Background(), objectives.Sphere, lower, upper, opts)
	require.NoError(t, err)

	// The winner's count stays within the per-run cap even though four
	// restarts each burned their own budget.
	assert.LessOrEqual(t, result.Evaluations, 200)
	assert.Greater(t, result.Evaluations, 0)

	assert.Greater(t, result.TotalEvaluations, 200, "all restarts should contribute to the aggregate")
	assert.LessOrEqual(t, result.TotalEvaluations, 4*200)
	assert.GreaterOrEqual(t, result.TotalEvaluations, result.Evaluations)
}

func TestMultiStartStop(t *testing.T) {
	lower, upper := uniformBounds(2, -1, 1)

	ms, err := NewMultiStart(lower, upper, optimization.Options{
		MaxEvaluations: 1000000,
		NumRestarts:    2,
		RandomSeed:     3,
	}, nil)
	require.NoError(t, err)

	done := make(chan *optimization.RunResult, 1)

	// Signals once the first evaluation has happened, so Stop lands
	// mid-run. Safe across the concurrent restarts.
	evals := make(chan struct{}, 1)
	obj := func(x []float64) (float64, error) {
		select {
		case evals <- struct{}{}:
		default:
		}
		return objectives.Sphere(x)
	}

	go func() {
		res, _ := ms.Optimize(context.Background(), obj)
		done <- res
	}()

	<-evals
	ms.Stop()

	res := <-done
	require.NotNil(t, res)
	assert.Equal(t, optimization.Cancelled, res.Reason)
}

func TestMultiStartMaximizePicksHighest(t *testing.T) {
	lower, upper := uniformBounds(2, -5, 5)

	objective := func(x []float64) (float64, error) {
		f, _ := objectives.Sphere(x)
		return -f, nil
	}

	result, err := Minimize(context.Background(), objective, lower, upper,
		optimization.Options{
			MaxEvaluations: 3000,
			NumRestarts:    3,
			Maximize:       true,
			RandomSeed:     17,
		})
	require.NoError(t, err)

	assert.LessOrEqual(t, result.BestFitness, 0.0)
	assert.Greater(t, result.BestFitness, -0.5)
}
