package control

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/geom"
	"github.com/pthm-cable/haze/perception"
)

// Input is the read-only snapshot a single decision operates on.
type Input struct {
	Self      perception.AgentState
	Neighbors []perception.AgentState
	Tensor    perception.Tensor
	Prev      perception.Tensor
	Precision perception.Field

	// Preferred is the goal-seeking velocity, nil when the agent has no
	// goal and should explore instead.
	Preferred *geom.Vec

	// EnvHaze is the environmental haze sampled at the agent's position,
	// zero when the field is disabled.
	EnvHaze float64

	WorldW, WorldH float64
}

// Trace carries per-decision diagnostics. Nothing in the algorithm consumes
// it; the orchestrator stores it on the agent for introspection.
type Trace struct {
	Gradient        geom.Vec
	Cost            float64
	Entropy         float64
	Iterations      int
	PredictorFailed bool
	FellBack        bool
}

// Controller runs bounded gradient descent on the expected-free-energy cost.
// It is stateless and safe for concurrent use; the rng is supplied per call
// so parallel workers can keep their own streams.
type Controller struct {
	cfg  *config.Config
	pred Predictor
}

// NewController builds a controller over the given predictor.
func NewController(cfg *config.Config, pred Predictor) *Controller {
	return &Controller{cfg: cfg, pred: pred}
}

// nearZeroSpeed is the threshold below which the starting action is
// considered degenerate and replaced with a random kick.
const nearZeroSpeed = 1e-3

// DecideAction picks a velocity for the agent described by in. The candidate
// starts from the previous velocity (or a small random kick), descends the
// cost for a fixed number of iterations with clipped numeric gradients, is
// clamped to the speed and acceleration limits, and is finally blended with
// the previous velocity to avoid discontinuous jumps.
//
// Numeric failures never escape: a non-finite gradient aborts descent and
// falls back to the preferred velocity (or zero), and predictor failures
// only zero the prediction-dependent cost terms.
func (c *Controller) DecideAction(in Input, rng *rand.Rand) (geom.Vec, Trace) {
	cfg := c.cfg
	ctx := &evalContext{
		self:      in.Self,
		neighbors: in.Neighbors,
		tensor:    in.Tensor,
		prev:      in.Prev,
		precision: in.Precision,
		preferred: in.Preferred,
		envHaze:   in.EnvHaze,
		worldW:    in.WorldW,
		worldH:    in.WorldH,
		dt:        cfg.Physics.DT,
		cfg:       cfg,
		pred:      c.pred,
	}

	prev := in.Self.Vel
	action := prev
	if action.Norm() < nearZeroSpeed {
		kick := geom.Unit(rng.Float64() * 2 * math.Pi)
		action = kick.Scale(0.1 * in.Self.MaxSpeed)
	}

	costFn := func(x []float64) float64 {
		total, _ := evaluate(geom.Vec{X: x[0], Y: x[1]}, ctx)
		return total
	}
	settings := &fd.Settings{Formula: fd.Central}

	var trace Trace
	grad := make([]float64, 2)
	x := []float64{action.X, action.Y}

	for i := 0; i < cfg.Descent.Iterations; i++ {
		fd.Gradient(grad, costFn, x, settings)
		g := geom.Vec{X: grad[0], Y: grad[1]}

		if !g.IsFinite() {
			action = c.fallbackAction(in)
			trace.FellBack = true
			break
		}

		g = g.ClampNorm(cfg.Descent.GradClip)
		action = action.Sub(g.Scale(cfg.Descent.StepSize)).ClampNorm(in.Self.MaxSpeed)
		x[0], x[1] = action.X, action.Y

		trace.Gradient = g
		trace.Iterations = i + 1
	}

	// Smooth against the previous velocity, then re-apply the physical
	// limits: the blend can exceed neither max speed nor the per-step
	// acceleration budget.
	blend := cfg.Descent.Blend
	action = action.Scale(1 - blend).Add(prev.Scale(blend))
	action = clampAccel(action, prev, cfg.Agents.MaxAccel*cfg.Physics.DT)
	action = action.ClampNorm(in.Self.MaxSpeed)

	finalCost, terms := evaluate(action, ctx)
	if isFinite(finalCost) {
		trace.Cost = finalCost
	}
	trace.Entropy = perception.BeliefEntropy(in.Precision)
	trace.PredictorFailed = terms.PredictorFailed

	return action, trace
}

// fallbackAction is the safe default when descent produces invalid numbers.
func (c *Controller) fallbackAction(in Input) geom.Vec {
	if in.Preferred != nil {
		return in.Preferred.ClampNorm(in.Self.MaxSpeed)
	}
	return geom.Vec{}
}

// clampAccel limits the velocity change from prev to next to maxDelta.
func clampAccel(next, prev geom.Vec, maxDelta float64) geom.Vec {
	if maxDelta <= 0 {
		return next
	}
	delta := next.Sub(prev)
	if delta.Norm() <= maxDelta {
		return next
	}
	return prev.Add(delta.ClampNorm(maxDelta))
}
