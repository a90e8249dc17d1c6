package stochastic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulationStartsInvalid(t *testing.T) {
	pop := NewPopulation(4, 2)
	require.Equal(t, 4, pop.Len())
	require.Equal(t, 2, pop.Dim())

	for i := 0; i < pop.Len(); i++ {
		assert.True(t, math.IsInf(pop.At(i).Fitness, 1))
	}
}

func TestPopulationBestAndWorst(t *testing.T) {
	pop := NewPopulation(3, 1)
	pop.Set(0, Candidate{Params: []float64{0.1}, Fitness: 5})
	pop.Set(1, Candidate{Params: []float64{0.2}, Fitness: 1})
	pop.Set(2, Candidate{Params: []float64{0.3}, Fitness: 9})

	assert.Equal(t, 1, pop.BestIndex())
	assert.Equal(t, 2, pop.WorstIndex())
	assert.Equal(t, []float64{0.2}, pop.BestMember())
}

func TestPopulationTieBreaksByInsertion(t *testing.T) {
	pop := NewPopulation(3, 1)
	pop.Set(1, Candidate{Params: []float64{0.1}, Fitness: 2})
	pop.Set(0, Candidate{Params: []float64{0.2}, Fitness: 2})
	pop.Set(2, Candidate{Params: []float64{0.3}, Fitness: 2})

	// Slot 1 was inserted first, so it wins both ties.
	assert.Equal(t, 1, pop.BestIndex())
	assert.Equal(t, 1, pop.WorstIndex())
}

func TestPopulationReplaceGuard(t *testing.T) {
	pop := NewPopulation(2, 1)
	pop.Set(0, Candidate{Params: []float64{0.5}, Fitness: 3})
	pop.Set(1, Candidate{Params: []float64{0.6}, Fitness: 4})

	// Worse candidate is rejected
	assert.False(t, pop.Replace(0, Candidate{Params: []float64{0.9}, Fitness: 7}))
	assert.Equal(t, 3.0, pop.At(0).Fitness)

	// Equal candidate is accepted
	assert.True(t, pop.Replace(0, Candidate{Params: []float64{0.7}, Fitness: 3}))
	assert.Equal(t, []float64{0.7}, pop.Member(0))

	// Better candidate is accepted
	assert.True(t, pop.Replace(1, Candidate{Params: []float64{0.1}, Fitness: 1}))
	assert.Equal(t, 1.0, pop.At(1).Fitness)
	assert.Equal(t, 1, pop.BestIndex())
}

func TestPopulationWorstNeverImproves(t *testing.T) {
	pop := NewPopulation(4, 1)
	for i := 0; i < 4; i++ {
		pop.Set(i, Candidate{Params: []float64{0}, Fitness: float64(10 - i)})
	}

	prevWorst := pop.At(pop.WorstIndex()).Fitness
	for f := 9.5; f > 0; f -= 0.5 {
		pop.Replace(pop.WorstIndex(), Candidate{Params: []float64{0}, Fitness: f})
		worst := pop.At(pop.WorstIndex()).Fitness
		assert.LessOrEqual(t, worst, prevWorst)
		prevWorst = worst
	}
}
