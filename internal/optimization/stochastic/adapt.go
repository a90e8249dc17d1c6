package stochastic

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scale adjustment schedule. A window with almost no accepted proposals
// means the search is grinding against a local structure, so the scale
// shrinks to refine; a window with many acceptances means easy gains remain,
// so the scale grows to explore.
const (
	lowSuccessRate  = 0.05
	highSuccessRate = 0.30
	scaleShrink     = 0.85
	scaleGrow       = 1.2
)

// adaptation is the engine's only feedback loop. It tracks per-generator
// acceptance over a fixed window of generations and recomputes both the
// generator selection weights and the global mutation scale at each window
// boundary. Given a fixed seed and window size it is fully deterministic.
type adaptation struct {
	weights   []float64
	attempts  []float64
	successes []float64

	scale    float64
	scaleMin float64
	scaleMax float64

	interval int
	floor    float64
	pending  int
}

func newAdaptation(numGenerators, interval int, floor, scaleInit, scaleMin, scaleMax float64) *adaptation {
	a := &adaptation{
		weights:   make([]float64, numGenerators),
		attempts:  make([]float64, numGenerators),
		successes: make([]float64, numGenerators),
		scale:     scaleInit,
		scaleMin:  scaleMin,
		scaleMax:  scaleMax,
		interval:  interval,
		floor:     floor,
	}
	// Uniform selection until the first window completes.
	for i := range a.weights {
		a.weights[i] = 1 / float64(numGenerators)
	}
	return a
}

// Pick selects a generator index by the current weights.
func (a *adaptation) Pick(rng *rand.Rand) int {
	r := rng.Float64()
	acc := 0.0
	for i, w := range a.weights {
		acc += w
		if r < acc {
			return i
		}
	}
	return len(a.weights) - 1
}

// Record feeds one accept/reject outcome for generator g. At each window
// boundary the weights and scale are recomputed; Record reports whether that
// happened so the driver can sample progress.
func (a *adaptation) Record(g int, success bool) bool {
	a.attempts[g]++
	if success {
		a.successes[g]++
	}
	a.pending++
	if a.pending < a.interval {
		return false
	}
	a.recompute()
	return true
}

// Scale returns the current global mutation scale.
func (a *adaptation) Scale() float64 {
	return a.scale
}

// Weights returns the current selection weights (not a copy).
func (a *adaptation) Weights() []float64 {
	return a.weights
}

// recompute derives new weights from windowed success rates, floored so no
// generator starves, and applies the scale schedule.
func (a *adaptation) recompute() {
	rates := make([]float64, len(a.weights))
	for i := range rates {
		if a.attempts[i] > 0 {
			rates[i] = a.successes[i] / a.attempts[i]
		}
	}

	for i, r := range rates {
		a.weights[i] = r
		if a.weights[i] < a.floor {
			a.weights[i] = a.floor
		}
	}
	floats.Scale(1/floats.Sum(a.weights), a.weights)

	// Aggregate window success rate, weighted by how often each generator
	// was actually tried.
	aggregate := stat.Mean(rates, a.attempts)
	switch {
	case aggregate < lowSuccessRate:
		a.scale *= scaleShrink
	case aggregate > highSuccessRate:
		a.scale *= scaleGrow
	}
	if a.scale < a.scaleMin {
		a.scale = a.scaleMin
	}
	if a.scale > a.scaleMax {
		a.scale = a.scaleMax
	}

	for i := range a.attempts {
		a.attempts[i] = 0
		a.successes[i] = 0
	}
	a.pending = 0
}
