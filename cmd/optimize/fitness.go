package main

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/pthm-cable/cellflow/config"
	"github.com/pthm-cable/cellflow/engine"
	"github.com/pthm-cable/cellflow/systems"
	"github.com/pthm-cable/cellflow/telemetry"
)

// brokenPenalty is added to the fitness of a run that broke an invariant
// before reaching its step count, scaled by the share of steps it missed.
const brokenPenalty = 1.0

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	steps      int
	seeds      []int64
	target     float64
	baseConfig *config.Config

	mu       sync.Mutex
	lastRate float64 // mean move rate from the most recent Evaluate call
	lastErr  error   // first setup error from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, steps int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		steps:      steps,
		seeds:      seeds,
		target:     baseCfg.Optimize.TargetMoveRate,
		baseConfig: baseCfg,
	}
}

// LastRate returns the mean move rate from the most recent evaluation.
func (fe *FitnessEvaluator) LastRate() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastRate
}

// LastErr returns the setup error from the most recent evaluation, if any.
func (fe *FitnessEvaluator) LastErr() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastErr
}

// runResult holds the results from a single simulation run.
type runResult struct {
	reached int // iterations completed
	chains  int
	moved   int
	err     error
}

// moveRate is the share of started chains that completed.
func (r runResult) moveRate() float64 {
	if r.chains == 0 {
		return 0
	}
	return float64(r.moved) / float64(r.chains)
}

// Evaluate computes fitness for a parameter vector (lower = better): the
// distance between the observed move rate and the target, averaged over
// seeds, plus a penalty for runs that broke early.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	var total, rateSum float64
	var setupErr error
	for _, r := range results {
		if r.err != nil && !errors.Is(r.err, systems.ErrInvariant) {
			if setupErr == nil {
				setupErr = r.err
			}
			total += brokenPenalty + 1
			continue
		}
		rate := r.moveRate()
		rateSum += rate
		total += fe.computeFitness(r, rate)
	}

	n := float64(len(fe.seeds))
	fe.mu.Lock()
	fe.lastRate = rateSum / n
	fe.lastErr = setupErr
	fe.mu.Unlock()

	return total / n
}

// computeFitness scores one run.
func (fe *FitnessEvaluator) computeFitness(r runResult, rate float64) float64 {
	fitness := math.Abs(rate - fe.target)
	if r.err != nil && fe.steps > 0 {
		missed := float64(fe.steps-r.reached) / float64(fe.steps)
		fitness += brokenPenalty * missed
	}
	return fitness
}

// runSimulation executes a single headless run with its own engine, grid
// and random source.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) runResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	var result runResult
	e, err := engine.New(engine.Options{
		Config: cfg,
		Seed:   seed,
		Steps:  fe.steps,
		StatsCallback: func(w telemetry.WindowStats) {
			result.chains += w.Chains
			result.moved += w.Moved
		},
	})
	if err != nil {
		result.err = err
		return result
	}
	result.err = e.Run(context.Background())
	result.reached = e.Iteration()
	return result
}

// copyConfig creates a copy of the base config that a run may modify.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Densities = make(map[string]float64, len(fe.baseConfig.Densities))
	for k, v := range fe.baseConfig.Densities {
		cfg.Densities[k] = v
	}
	return &cfg
}
