package stochastic

import "math"

// invalidFitness marks a slot whose objective value was unusable. It
// compares strictly worse than every finite fitness.
var invalidFitness = math.Inf(1)

// Candidate is one evaluated population member. Parameters are stored in the
// normalized unit cube. Candidates are replaced, never mutated, once
// evaluated.
type Candidate struct {
	// Params is the parameter vector in the unit cube
	Params []float64
	// Fitness is the engine-orientation fitness; +Inf marks an invalid
	// candidate that can never become best
	Fitness float64
	// Origin names the generator that produced the candidate
	Origin string

	// seq is the insertion sequence, used to break fitness ties in favor
	// of the earliest entry
	seq int
}

// Population is a fixed-capacity arena of candidates addressed by index. It
// is exclusively owned by one optimizer run.
type Population struct {
	dim     int
	members []Candidate
	nextSeq int
}

// NewPopulation allocates an arena of size slots for dim-dimensional
// candidates. Slots start invalid (+Inf fitness) until Set fills them.
func NewPopulation(size, dim int) *Population {
	members := make([]Candidate, size)
	for i := range members {
		members[i] = Candidate{
			Params:  make([]float64, dim),
			Fitness: invalidFitness,
		}
	}
	return &Population{dim: dim, members: members}
}

// Dim returns the dimensionality of the search space.
func (p *Population) Dim() int { return p.dim }

// Len returns the number of slots.
func (p *Population) Len() int { return len(p.members) }

// Member returns the parameter vector held in slot i.
func (p *Population) Member(i int) []float64 { return p.members[i].Params }

// BestMember returns the parameter vector of the best candidate.
func (p *Population) BestMember() []float64 { return p.members[p.BestIndex()].Params }

// At returns the candidate in slot i.
func (p *Population) At(i int) Candidate { return p.members[i] }

// Set unconditionally writes slot i, stamping the insertion sequence.
func (p *Population) Set(i int, c Candidate) {
	c.seq = p.nextSeq
	p.nextSeq++
	p.members[i] = c
}

// Replace overwrites slot i only if c's fitness is no worse than the current
// occupant's. It reports whether the replacement happened. With greedy
// elitist replacement the population's worst fitness never increases.
func (p *Population) Replace(i int, c Candidate) bool {
	if c.Fitness > p.members[i].Fitness {
		return false
	}
	p.Set(i, c)
	return true
}

// BestIndex returns the slot holding the minimum fitness, ties broken by
// earliest insertion.
func (p *Population) BestIndex() int {
	best := 0
	for i := 1; i < len(p.members); i++ {
		if p.better(i, best) {
			best = i
		}
	}
	return best
}

// WorstIndex returns the slot holding the maximum fitness, ties broken by
// earliest insertion. It is the replacement target each generation.
func (p *Population) WorstIndex() int {
	worst := 0
	for i := 1; i < len(p.members); i++ {
		if p.better(worst, i) {
			worst = i
		}
	}
	return worst
}

// better reports whether slot i strictly beats slot j: lower fitness, or
// equal fitness with earlier insertion.
func (p *Population) better(i, j int) bool {
	mi, mj := &p.members[i], &p.members[j]
	if mi.Fitness != mj.Fitness {
		return mi.Fitness < mj.Fitness
	}
	return mi.seq < mj.seq
}
