// Package generators holds the stochastic candidate-generation strategies
// used by the adaptive optimizer. Every generator works in the normalized
// unit cube and returns a vector already folded back into range.
package generators

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/stochopt/internal/optimization/bounds"
)

// PopulationView is the read-only access generators need to the current
// population.
type PopulationView interface {
	// Dim returns the dimensionality of the search space
	Dim() int
	// Len returns the number of candidates held
	Len() int
	// Member returns the parameter vector of candidate i (not a copy)
	Member(i int) []float64
	// BestMember returns the parameter vector of the best candidate
	BestMember() []float64
}

// Generator produces one new candidate vector from the population state and
// the current global mutation scale. Implementations must be pure given the
// RNG: same population, scale and RNG state yield the same vector.
type Generator interface {
	// Name identifies the generator in logs and candidate tags
	Name() string
	// Generate returns a new unit-cube vector
	Generate(pop PopulationView, scale float64, rng *rand.Rand) []float64
}

// Default returns the standard generator set: differential perturbation,
// best-guided crossover and a single-coordinate local jump.
func Default(crossoverProb float64) []Generator {
	return []Generator{
		Differential{},
		BestCrossover{CrossoverProb: crossoverProb},
		LocalJump{Sigma: 0.1},
	}
}

// Differential implements DE/rand/1 style perturbation: a random target
// member shifted by the scaled difference of two other distinct members.
type Differential struct{}

// Name identifies the generator.
func (Differential) Name() string { return "differential" }

// Generate returns target + scale*(a - b) folded into the unit cube.
func (Differential) Generate(pop PopulationView, scale float64, rng *rand.Rand) []float64 {
	r0, r1, r2 := distinctThree(pop.Len(), rng)

	v := make([]float64, pop.Dim())
	floats.SubTo(v, pop.Member(r1), pop.Member(r2))
	floats.Scale(scale, v)
	floats.Add(v, pop.Member(r0))
	return bounds.FoldUnit(v)
}

// BestCrossover blends the current best with a random member, taking each
// coordinate from the best with probability CrossoverProb. One coordinate is
// always taken from the best so the result never degenerates to a copy of
// the member.
type BestCrossover struct {
	CrossoverProb float64
}

// Name identifies the generator.
func (BestCrossover) Name() string { return "best-crossover" }

// Generate returns the per-coordinate blend folded into the unit cube.
func (g BestCrossover) Generate(pop PopulationView, scale float64, rng *rand.Rand) []float64 {
	best := pop.BestMember()
	member := pop.Member(rng.Intn(pop.Len()))
	forced := rng.Intn(pop.Dim())

	v := make([]float64, pop.Dim())
	for i := range v {
		if i == forced || rng.Float64() < g.CrossoverProb {
			v[i] = best[i]
		} else {
			v[i] = member[i]
		}
	}
	return bounds.FoldUnit(v)
}

// LocalJump perturbs a single randomly chosen coordinate of a random member
// by a scaled Gaussian step, leaving the rest untouched. It provides fine
// refinement once the population has collapsed into one basin.
type LocalJump struct {
	// Sigma is the standard deviation of the step relative to the scale
	Sigma float64
}

// Name identifies the generator.
func (LocalJump) Name() string { return "local-jump" }

// Generate returns the member with one coordinate nudged, folded into the
// unit cube.
func (g LocalJump) Generate(pop PopulationView, scale float64, rng *rand.Rand) []float64 {
	member := pop.Member(rng.Intn(pop.Len()))
	coord := rng.Intn(pop.Dim())

	normal := distuv.Normal{Mu: 0, Sigma: g.Sigma * scale, Src: rng}

	v := append([]float64(nil), member...)
	v[coord] += normal.Rand()
	return bounds.FoldUnit(v)
}

// distinctThree draws three distinct indices from [0, n). With fewer than
// three members the indices may repeat, which only weakens the perturbation.
func distinctThree(n int, rng *rand.Rand) (int, int, int) {
	r0 := rng.Intn(n)
	r1 := rng.Intn(n)
	r2 := rng.Intn(n)
	if n < 3 {
		return r0, r1, r2
	}
	for r1 == r0 {
		r1 = rng.Intn(n)
	}
	for r2 == r0 || r2 == r1 {
		r2 = rng.Intn(n)
	}
	return r0, r1, r2
}
