package stochastic

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

// MultiStart runs several independent optimizer instances in parallel and
// keeps the best result. Each restart owns its population and RNG stream
// (seeded seed, seed+1, ...), so the restarts share no mutable state and the
// aggregate stays reproducible. It implements optimization.Optimizer.
type MultiStart struct {
	runs     []*Optimizer
	maximize bool

	mu     sync.Mutex
	best   *optimization.Solution
	cancel context.CancelFunc
}

// NewMultiStart builds opts.NumRestarts independent optimizers over the same
// bounds. Validation happens once, up front.
func NewMultiStart(lower, upper []float64, opts optimization.Options, logger *zap.Logger) (*MultiStart, error) {
	// Validate and default once so every restart sees identical options
	// apart from the seed; this also pins the seed before it is offset.
	first, err := New(lower, upper, opts, logger)
	if err != nil {
		return nil, err
	}
	opts = first.opts

	runs := make([]*Optimizer, opts.NumRestarts)
	runs[0] = first
	for k := 1; k < opts.NumRestarts; k++ {
		o := opts
		o.RandomSeed = opts.RandomSeed + int64(k)
		runs[k], err = New(lower, upper, o, logger)
		if err != nil {
			return nil, err
		}
	}
	return &MultiStart{runs: runs, maximize: opts.Maximize}, nil
}

// Optimize runs all restarts to completion and returns the result with the
// lowest fitness; ties go to the run that used fewer evaluations, then to
// the lowest restart index. The returned result carries the winning run's
// own Evaluations and the cross-restart sum in TotalEvaluations. Results
// merge only after every restart has finished.
func (m *MultiStart) Optimize(ctx context.Context, objective optimization.ObjectiveFunction) (*optimization.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	results := make([]*optimization.RunResult, len(m.runs))
	errs := make([]error, len(m.runs))

	var wg sync.WaitGroup
	for k, run := range m.runs {
		wg.Add(1)
		go func(k int, run *Optimizer) {
			defer wg.Done()
			results[k], errs[k] = run.Optimize(ctx, objective)
		}(k, run)
	}
	wg.Wait()

	var best *optimization.RunResult
	total := 0
	for _, res := range results {
		if res == nil {
			continue
		}
		total += res.Evaluations
		if m.betterResult(res, best) {
			best = res
		}
	}
	if best == nil {
		// No restart produced a result; surface the first error.
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		return nil, &optimization.InvalidConfigurationError{Field: "NumRestarts", Reason: "no restarts executed"}
	}

	m.mu.Lock()
	m.best = best.BestSolution()
	m.mu.Unlock()

	// The winner keeps its own evaluation count, so Evaluations stays
	// within the per-run budget; the cross-restart sum is reported
	// separately.
	merged := *best
	merged.TotalEvaluations = total
	return &merged, nil
}

// BestSolution returns the best solution across running restarts.
func (m *MultiStart) BestSolution() *optimization.Solution {
	m.mu.Lock()
	if m.best != nil {
		defer m.mu.Unlock()
		return &optimization.Solution{
			Parameters: append([]float64(nil), m.best.Parameters...),
			Value:      m.best.Value,
		}
	}
	m.mu.Unlock()

	var best *optimization.Solution
	for _, run := range m.runs {
		s := run.BestSolution()
		if s == nil {
			continue
		}
		if best == nil || (m.maximize && s.Value > best.Value) || (!m.maximize && s.Value < best.Value) {
			best = s
		}
	}
	return best
}

// Progress returns the progress trace of the first restart; the restarts
// share one schedule, so one trace is representative.
func (m *MultiStart) Progress() []optimization.ProgressSample {
	return m.runs[0].Progress()
}

// Stop cancels every restart.
func (m *MultiStart) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	for _, run := range m.runs {
		run.Stop()
	}
}

// betterResult reports whether a beats b: better fitness in the configured
// orientation, ties broken by fewer evaluations, then by earlier restart
// index (callers iterate in restart order).
func (m *MultiStart) betterResult(a, b *optimization.RunResult) bool {
	if b == nil {
		return true
	}
	if a.BestFitness != b.BestFitness {
		if m.maximize {
			return a.BestFitness > b.BestFitness
		}
		return a.BestFitness < b.BestFitness
	}
	return a.Evaluations < b.Evaluations
}

// Minimize is the package entry point: it validates bounds and options,
// runs opts.NumRestarts independent searches and returns the best result.
// Fail-fast errors (invalid bounds or configuration) are the only errors it
// returns; every completed run yields a RunResult whose Reason explains the
// termination.
func Minimize(ctx context.Context, objective optimization.ObjectiveFunction, lower, upper []float64, opts optimization.Options) (*optimization.RunResult, error) {
	ms, err := NewMultiStart(lower, upper, opts, nil)
	if err != nil {
		return nil, err
	}
	return ms.Optimize(ctx, objective)
}
