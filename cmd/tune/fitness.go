package main

import (
	"math/rand"

	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/geom"
	"github.com/pthm-cable/haze/sim"
	"github.com/pthm-cable/haze/telemetry"
)

// Fitness weights. Collisions and numeric failures are penalized; goal
// arrivals and explored area are rewarded.
const (
	collisionPenalty = 1.0
	discardPenalty   = 50.0
	goalReward       = 10.0
	coverageReward   = 100.0
)

// FitnessEvaluator scores a parameter vector by running short headless
// simulations over several seeds.
type FitnessEvaluator struct {
	params *ParamVector
	ticks  int
	seeds  []int64
	base   *config.Config

	lastStats telemetry.WindowStats
}

// NewFitnessEvaluator creates an evaluator over the given base config.
func NewFitnessEvaluator(params *ParamVector, ticks int, seeds []int64, base *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params: params,
		ticks:  ticks,
		seeds:  seeds,
		base:   base,
	}
}

// Evaluate returns the mean score across all seeds, lower is better.
func (e *FitnessEvaluator) Evaluate(raw []float64) float64 {
	var total float64
	for _, seed := range e.seeds {
		total += e.runOnce(raw, seed)
	}
	return total / float64(len(e.seeds))
}

// LastStats returns the telemetry of the most recent run, for progress
// reporting.
func (e *FitnessEvaluator) LastStats() telemetry.WindowStats {
	return e.lastStats
}

func (e *FitnessEvaluator) runOnce(raw []float64, seed int64) float64 {
	// The base config is shared; runs get their own mutated copy.
	cfg := *e.base
	e.params.ApplyToConfig(&cfg, raw)
	cfg.ComputeDerived()

	world, err := sim.NewWorld(sim.Options{Config: &cfg, Seed: seed})
	if err != nil {
		return 1e9
	}
	defer world.Close()
	world.Populate()

	// Every agent gets a random goal so the pragmatic term is exercised.
	rng := rand.New(rand.NewSource(seed))
	for _, v := range world.Agents() {
		world.SetGoal(v.Entity, geom.Vec{
			X: rng.Float64() * cfg.World.Width,
			Y: rng.Float64() * cfg.World.Height,
		})
	}

	for t := 0; t < e.ticks; t++ {
		world.Step()
	}

	stats := world.FlushStats()
	e.lastStats = stats

	return float64(stats.Collisions)*collisionPenalty +
		float64(stats.NumericDiscards)*discardPenalty -
		float64(stats.GoalsReached)*goalReward -
		stats.CoverageFraction*coverageReward
}
