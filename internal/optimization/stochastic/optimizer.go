// Package stochastic implements a derivative-free global optimizer for
// bounded continuous objectives. A fixed population of candidates is refined
// by a small family of stochastic generators whose selection weights and
// shared mutation scale adapt online to recent acceptance rates.
package stochastic

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/bounds"
	"github.com/copyleftdev/stochopt/internal/optimization/generators"
)

// Optimizer is a single optimization run: one population, one RNG stream,
// sequential generations. It implements optimization.Optimizer.
type Optimizer struct {
	opts       optimization.Options
	normalizer *bounds.Normalizer
	gens       []generators.Generator
	rng        *rand.Rand
	logger     *zap.Logger

	// mu guards best and progress, which the server polls while the run
	// is in flight.
	mu       sync.Mutex
	best     *optimization.Solution
	progress []optimization.ProgressSample

	// For cancellation
	cancel context.CancelFunc
}

// New creates an optimizer over the given bound vectors. Configuration and
// bound errors fail here, before any evaluation. A nil logger disables
// telemetry.
func New(lower, upper []float64, opts optimization.Options, logger *zap.Logger) (*Optimizer, error) {
	normalizer, err := bounds.NewNormalizer(lower, upper)
	if err != nil {
		return nil, err
	}

	opts, err = withDefaults(opts, normalizer.Dim())
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Optimizer{
		opts:       opts,
		normalizer: normalizer,
		gens:       generators.Default(opts.CrossoverProb),
		rng:        rand.New(rand.NewSource(opts.RandomSeed)),
		logger:     logger,
	}, nil
}

// Optimize runs the generation loop to termination and returns the result.
// Budget exhaustion, stagnation, target and cancellation all surface through
// RunResult.Reason, never as an error.
func (o *Optimizer) Optimize(ctx context.Context, objective optimization.ObjectiveFunction) (*optimization.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	eval := newEvaluator(objective, o.opts.MaxEvaluations, o.opts.Maximize)

	var target *float64
	if o.opts.TargetFitness != nil {
		t := eval.Transform(*o.opts.TargetFitness)
		target = &t
	}
	term := newTermination(target, o.opts.StagnationGenerations)
	adapt := newAdaptation(len(o.gens), o.opts.AdaptInterval, o.opts.WeightFloor,
		o.opts.ScaleInit, o.opts.ScaleMin, o.opts.ScaleMax)

	pop := o.initPopulation(eval, term)

	bestIdx := pop.BestIndex()
	bestUnit := append([]float64(nil), pop.Member(bestIdx)...)
	bestFitness := pop.At(bestIdx).Fitness
	o.setBest(bestUnit, eval.Restore(bestFitness))

	generation := 0
	for {
		if term.Check(ctx, bestFitness, eval.Exhausted()) != optimization.TerminationNone {
			break
		}

		g := adapt.Pick(o.rng)
		unit := o.gens[g].Generate(pop, adapt.Scale(), o.rng)
		fitness, err := eval.Evaluate(o.normalizer.FromUnit(unit))

		if errors.Is(err, optimization.ErrBudgetExhausted) {
			term.Terminal(optimization.BudgetExhausted)
			break
		}

		success := false
		improved := false
		if err == nil {
			// Greedy elitist replacement: the current worst slot is
			// the target, and only a no-worse candidate displaces it.
			worst := pop.WorstIndex()
			displaced := pop.At(worst).Fitness
			if pop.Replace(worst, Candidate{
				Params:  unit,
				Fitness: fitness,
				Origin:  o.gens[g].Name(),
			}) {
				success = fitness < displaced
			}
			if fitness < bestFitness {
				improved = true
				bestFitness = fitness
				bestUnit = append(bestUnit[:0], unit...)
				o.setBest(bestUnit, eval.Restore(bestFitness))
			}
		}

		term.Observe(improved)
		if adapt.Record(g, success) {
			o.sampleProgress(generation, eval, bestFitness, adapt)
		}
		generation++
	}

	reason := term.Check(ctx, bestFitness, eval.Exhausted())
	result := &optimization.RunResult{
		BestParameters:   o.normalizer.FromUnit(bestUnit),
		BestFitness:      eval.Restore(bestFitness),
		Evaluations:      eval.Count(),
		TotalEvaluations: eval.Count(),
		Reason:           reason,
		Progress:         o.Progress(),
	}

	o.logger.Info("run terminated",
		zap.String("reason", reason.String()),
		zap.Int("evaluations", result.Evaluations),
		zap.Int("generations", generation),
		zap.Float64("best_fitness", result.BestFitness),
	)
	return result, nil
}

// initPopulation fills the arena with uniformly random candidates from the
// unit cube, evaluating each. Running out of budget here leaves the
// remaining slots invalid and latches the terminal state; invalid objective
// values leave only the affected slot invalid.
func (o *Optimizer) initPopulation(eval *evaluator, term *termination) *Population {
	pop := NewPopulation(o.opts.PopulationSize, o.normalizer.Dim())
	for i := 0; i < pop.Len(); i++ {
		unit := make([]float64, pop.Dim())
		for j := range unit {
			unit[j] = o.rng.Float64()
		}

		fitness, err := eval.Evaluate(o.normalizer.FromUnit(unit))
		if errors.Is(err, optimization.ErrBudgetExhausted) {
			term.Terminal(optimization.BudgetExhausted)
			break
		}
		c := Candidate{Params: unit, Origin: "init", Fitness: fitness}
		if err != nil {
			// Non-finite objective value: the slot stays occupied but
			// can never become best.
			c.Fitness = invalidFitness
		}
		pop.Set(i, c)
	}
	return pop
}

// BestSolution returns a copy of the best solution found so far, in user
// space. Safe to call concurrently with a running Optimize.
func (o *Optimizer) BestSolution() *optimization.Solution {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.best == nil {
		return nil
	}
	return &optimization.Solution{
		Parameters: append([]float64(nil), o.best.Parameters...),
		Value:      o.best.Value,
	}
}

// Progress returns a copy of the progress trace recorded so far.
func (o *Optimizer) Progress() []optimization.ProgressSample {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]optimization.ProgressSample(nil), o.progress...)
}

// Stop cancels a running Optimize; the run finishes with Reason Cancelled.
func (o *Optimizer) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Optimizer) setBest(unit []float64, fitness float64) {
	params := o.normalizer.FromUnit(unit)
	o.mu.Lock()
	o.best = &optimization.Solution{Parameters: params, Value: fitness}
	o.mu.Unlock()
}

func (o *Optimizer) sampleProgress(generation int, eval *evaluator, bestFitness float64, adapt *adaptation) {
	sample := optimization.ProgressSample{
		Generation:  generation + 1,
		Evaluations: eval.Count(),
		BestFitness: eval.Restore(bestFitness),
		Scale:       adapt.Scale(),
	}
	o.mu.Lock()
	o.progress = append(o.progress, sample)
	o.mu.Unlock()

	o.logger.Debug("adaptation window complete",
		zap.Int("generation", sample.Generation),
		zap.Int("evaluations", sample.Evaluations),
		zap.Float64("best_fitness", sample.BestFitness),
		zap.Float64("scale", sample.Scale),
		zap.Float64s("weights", adapt.Weights()),
	)
}

// withDefaults fills zero-valued options with the documented defaults and
// validates the result. Validation failures are InvalidConfigurationError.
func withDefaults(opts optimization.Options, dim int) (optimization.Options, error) {
	if opts.MaxEvaluations <= 0 {
		return opts, &optimization.InvalidConfigurationError{Field: "MaxEvaluations", Reason: "must be positive"}
	}
	if opts.PopulationSize == 0 {
		opts.PopulationSize = 4 * dim
		if opts.PopulationSize < 10 {
			opts.PopulationSize = 10
		}
	}
	if opts.PopulationSize < 0 {
		return opts, &optimization.InvalidConfigurationError{Field: "PopulationSize", Reason: "must be positive"}
	}
	if opts.StagnationGenerations == 0 {
		opts.StagnationGenerations = 1000
	}
	if opts.StagnationGenerations < 0 {
		return opts, &optimization.InvalidConfigurationError{Field: "StagnationGenerations", Reason: "must be positive"}
	}
	if opts.NumRestarts == 0 {
		opts.NumRestarts = 1
	}
	if opts.NumRestarts < 0 {
		return opts, &optimization.InvalidConfigurationError{Field: "NumRestarts", Reason: "must be positive"}
	}
	if opts.RandomSeed == 0 {
		opts.RandomSeed = time.Now().UnixNano()
	}
	if opts.ScaleInit == 0 {
		opts.ScaleInit = 0.5
	}
	if opts.ScaleMin == 0 {
		opts.ScaleMin = 0.05
	}
	if opts.ScaleMax == 0 {
		opts.ScaleMax = 1.0
	}
	if opts.ScaleMin <= 0 || opts.ScaleMin > opts.ScaleMax {
		return opts, &optimization.InvalidConfigurationError{Field: "ScaleMin", Reason: "must be positive and not above ScaleMax"}
	}
	if opts.ScaleInit < opts.ScaleMin || opts.ScaleInit > opts.ScaleMax {
		return opts, &optimization.InvalidConfigurationError{Field: "ScaleInit", Reason: "must lie within [ScaleMin, ScaleMax]"}
	}
	if opts.AdaptInterval == 0 {
		opts.AdaptInterval = 20
	}
	if opts.AdaptInterval < 0 {
		return opts, &optimization.InvalidConfigurationError{Field: "AdaptInterval", Reason: "must be positive"}
	}
	if opts.WeightFloor == 0 {
		opts.WeightFloor = 0.10
	}
	if opts.WeightFloor < 0 || opts.WeightFloor >= 1 {
		return opts, &optimization.InvalidConfigurationError{Field: "WeightFloor", Reason: "must lie within [0, 1)"}
	}
	if opts.CrossoverProb == 0 {
		opts.CrossoverProb = 0.7
	}
	if opts.CrossoverProb < 0 || opts.CrossoverProb > 1 {
		return opts, &optimization.InvalidConfigurationError{Field: "CrossoverProb", Reason: "must lie within [0, 1]"}
	}
	return opts, nil
}
