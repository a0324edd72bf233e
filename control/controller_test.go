package control

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/geom"
	"github.com/pthm-cable/haze/perception"
)

// failingPredictor always errors, exercising the degraded-cost path.
type failingPredictor struct{}

func (failingPredictor) Predict(Request) (perception.Tensor, error) {
	return perception.Tensor{}, fmt.Errorf("predictor offline")
}

// nanPredictor returns a tensor poisoned with NaN.
type nanPredictor struct{ nr, nt int }

func (p nanPredictor) Predict(Request) (perception.Tensor, error) {
	t := perception.NewTensor(p.nr, p.nt)
	t.Set(perception.ChanOccupancy, 0, 0, math.NaN())
	return t, nil
}

func testInput(cfg *config.Config, self perception.AgentState, neighbors []perception.AgentState) Input {
	tensor := perception.Encode(self, neighbors, worldW, worldH, &cfg.Perception)
	haze := perception.SelfHaze(tensor, &cfg.Haze)
	return Input{
		Self:      self,
		Neighbors: neighbors,
		Tensor:    tensor,
		Precision: perception.PrecisionField(tensor, haze, &cfg.Haze),
		WorldW:    worldW,
		WorldH:    worldH,
	}
}

func newTestController(t *testing.T, cfg *config.Config) *Controller {
	t.Helper()
	pred, err := NewPredictor(&cfg.Predictor, &cfg.Perception)
	if err != nil {
		t.Fatalf("NewPredictor: %v", err)
	}
	return NewController(cfg, pred)
}

func TestDecideActionSpeedBound(t *testing.T) {
	cfg := testConfig(t)
	ctrl := newTestController(t, cfg)
	rng := rand.New(rand.NewSource(1))

	self := testSelf(400, 300, 45, 20)
	neighbors := []perception.AgentState{
		testNeighbor(1, 430, 300, -20, 0),
		testNeighbor(2, 400, 340, 0, -20),
		testNeighbor(3, 370, 280, 20, 10),
	}

	for i := 0; i < 10; i++ {
		action, _ := ctrl.DecideAction(testInput(cfg, self, neighbors), rng)
		if !action.IsFinite() {
			t.Fatal("action not finite")
		}
		if action.Norm() > self.MaxSpeed+1e-9 {
			t.Fatalf("action speed %g exceeds limit %g", action.Norm(), self.MaxSpeed)
		}
		self.Vel = action
	}
}

func TestDecideActionAccelBound(t *testing.T) {
	cfg := testConfig(t)
	ctrl := newTestController(t, cfg)
	rng := rand.New(rand.NewSource(2))

	self := testSelf(400, 300, 40, 0)
	action, _ := ctrl.DecideAction(testInput(cfg, self, nil), rng)

	budget := cfg.Agents.MaxAccel * cfg.Physics.DT
	if delta := action.Sub(self.Vel).Norm(); delta > budget+1e-9 {
		t.Errorf("velocity change %g exceeds acceleration budget %g", delta, budget)
	}
}

func TestDecideActionDegenerateStart(t *testing.T) {
	cfg := testConfig(t)
	ctrl := newTestController(t, cfg)
	rng := rand.New(rand.NewSource(3))

	// At rest with no goal, the exploration term should push the agent
	// into motion rather than leaving it pinned at zero.
	self := testSelf(400, 300, 0, 0)
	action, _ := ctrl.DecideAction(testInput(cfg, self, nil), rng)
	if action.Norm() == 0 {
		t.Error("agent stayed at rest from a degenerate start")
	}
}

func TestDecideActionPredictorFailure(t *testing.T) {
	cfg := testConfig(t)
	ctrl := NewController(cfg, failingPredictor{})
	rng := rand.New(rand.NewSource(4))

	self := testSelf(400, 300, 30, 0)
	action, trace := ctrl.DecideAction(testInput(cfg, self, nil), rng)

	if !trace.PredictorFailed {
		t.Error("trace should report predictor failure")
	}
	if !action.IsFinite() {
		t.Fatal("action not finite despite degraded cost")
	}
	if action.Norm() > self.MaxSpeed+1e-9 {
		t.Errorf("action speed %g exceeds limit under predictor failure", action.Norm())
	}
}

func TestDecideActionNaNPrediction(t *testing.T) {
	cfg := testConfig(t)
	ctrl := NewController(cfg, nanPredictor{nr: cfg.Perception.RadialBins, nt: cfg.Perception.AngularBins})
	rng := rand.New(rand.NewSource(5))

	self := testSelf(400, 300, 30, 0)
	action, trace := ctrl.DecideAction(testInput(cfg, self, nil), rng)

	if !trace.PredictorFailed {
		t.Error("non-finite prediction should degrade the cost terms")
	}
	if !action.IsFinite() {
		t.Fatal("NaN leaked into the action")
	}
}

func TestDecideActionFollowsPreferred(t *testing.T) {
	cfg := testConfig(t)
	// Isolate the pragmatic term.
	cfg.Cost.EntropyWeight = 0
	cfg.Cost.InfoWeight = 0
	ctrl := newTestController(t, cfg)
	rng := rand.New(rand.NewSource(6))

	self := testSelf(400, 300, 0, 0)
	in := testInput(cfg, self, nil)
	preferred := geom.Vec{X: 30, Y: 0}
	in.Preferred = &preferred

	action, _ := ctrl.DecideAction(in, rng)
	if action.Dot(preferred) <= 0 {
		t.Errorf("action %v opposes the preferred velocity %v", action, preferred)
	}
}

func TestEvaluateMetaTerm(t *testing.T) {
	cfg := testConfig(t)
	pred, err := NewPredictor(&cfg.Predictor, &cfg.Perception)
	if err != nil {
		t.Fatalf("NewPredictor: %v", err)
	}

	self := testSelf(400, 300, 0, 0)
	tensor := perception.Encode(self, nil, worldW, worldH, &cfg.Perception)
	haze := perception.SelfHaze(tensor, &cfg.Haze)
	preferred := geom.Vec{X: 20, Y: 10}

	ctx := &evalContext{
		self:      self,
		tensor:    tensor,
		precision: perception.PrecisionField(tensor, haze, &cfg.Haze),
		preferred: &preferred,
		worldW:    worldW,
		worldH:    worldH,
		dt:        cfg.Physics.DT,
		cfg:       cfg,
		pred:      pred,
	}

	_, atPreferred := evaluate(preferred, ctx)
	if atPreferred.Meta != 0 {
		t.Errorf("meta term at the preferred velocity = %g, want 0", atPreferred.Meta)
	}
	_, offPreferred := evaluate(geom.Vec{X: -20, Y: 10}, ctx)
	if offPreferred.Meta <= 0 {
		t.Errorf("meta term off the preferred velocity = %g, want positive", offPreferred.Meta)
	}

	// Without a goal the term is the squared deviation from the
	// exploration speed.
	ctx.preferred = nil
	_, atSpeed := evaluate(geom.Unit(1).Scale(cfg.Cost.ExplorationSpeed), ctx)
	if atSpeed.Meta > 1e-9 {
		t.Errorf("meta term at exploration speed = %g, want 0", atSpeed.Meta)
	}
	_, atRest := evaluate(geom.Vec{}, ctx)
	if atRest.Meta <= 0 {
		t.Errorf("meta term at rest = %g, want positive", atRest.Meta)
	}
}

func TestPerceptRiskPenalizesApproach(t *testing.T) {
	cfg := testConfig(t)
	// Keep precision high so the risk term is visible.
	cfg.Haze.Max = 0.1
	cfg.Haze.Gamma = 0
	pred, err := NewPredictor(&cfg.Predictor, &cfg.Perception)
	if err != nil {
		t.Fatalf("NewPredictor: %v", err)
	}

	self := testSelf(400, 300, 0, 0)
	nb := testNeighbor(1, 430, 300, 0, 0) // close, directly ahead
	tensor := perception.Encode(self, []perception.AgentState{nb}, worldW, worldH, &cfg.Perception)
	haze := perception.SelfHaze(tensor, &cfg.Haze)

	ctx := &evalContext{
		self:      self,
		neighbors: []perception.AgentState{nb},
		tensor:    tensor,
		precision: perception.PrecisionField(tensor, haze, &cfg.Haze),
		worldW:    worldW,
		worldH:    worldH,
		dt:        cfg.Physics.DT,
		cfg:       cfg,
		pred:      pred,
	}

	_, toward := evaluate(geom.Vec{X: 25, Y: 0}, ctx)
	_, away := evaluate(geom.Vec{X: -25, Y: 0}, ctx)

	if toward.Percept <= 0 {
		t.Errorf("risk of moving into an occupied bin = %g, want positive", toward.Percept)
	}
	if away.Percept != 0 {
		t.Errorf("risk of moving away = %g, want 0", away.Percept)
	}
}

func TestDescentCostStaysBounded(t *testing.T) {
	variants := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"defaults", func(*config.Config) {}},
		{"heavy entropy", func(c *config.Config) { c.Cost.EntropyWeight = 1.0 }},
		{"strong info drive", func(c *config.Config) { c.Cost.InfoWeight = 0.5 }},
		{"aggressive descent", func(c *config.Config) {
			c.Descent.StepSize = 2.0
			c.Descent.Iterations = 8
		}},
	}

	self := testSelf(400, 300, 30, 10)
	neighbors := []perception.AgentState{
		testNeighbor(1, 430, 300, -20, 0),
		testNeighbor(2, 400, 340, 0, -20),
	}

	for _, tt := range variants {
		cfg := testConfig(t)
		tt.mutate(cfg)
		pred, err := NewPredictor(&cfg.Predictor, &cfg.Perception)
		if err != nil {
			t.Fatalf("%s: NewPredictor: %v", tt.name, err)
		}

		tensor := perception.Encode(self, neighbors, worldW, worldH, &cfg.Perception)
		haze := perception.SelfHaze(tensor, &cfg.Haze)
		ctx := &evalContext{
			self:      self,
			neighbors: neighbors,
			tensor:    tensor,
			precision: perception.PrecisionField(tensor, haze, &cfg.Haze),
			worldW:    worldW,
			worldH:    worldH,
			dt:        cfg.Physics.DT,
			cfg:       cfg,
			pred:      pred,
		}

		costFn := func(x []float64) float64 {
			total, _ := evaluate(geom.Vec{X: x[0], Y: x[1]}, ctx)
			return total
		}
		settings := &fd.Settings{Formula: fd.Central}

		// The cost along every descent iterate must stay finite.
		action := self.Vel
		x := []float64{action.X, action.Y}
		grad := make([]float64, 2)
		for i := 0; i < cfg.Descent.Iterations; i++ {
			if cost := costFn(x); !isFinite(cost) {
				t.Fatalf("%s: cost %g at iteration %d", tt.name, cost, i)
			}
			fd.Gradient(grad, costFn, x, settings)
			g := geom.Vec{X: grad[0], Y: grad[1]}.ClampNorm(cfg.Descent.GradClip)
			action = action.Sub(g.Scale(cfg.Descent.StepSize)).ClampNorm(self.MaxSpeed)
			x[0], x[1] = action.X, action.Y
		}
		if final := costFn(x); !isFinite(final) {
			t.Errorf("%s: final cost %g not finite", tt.name, final)
		}
	}
}

func TestClampAccel(t *testing.T) {
	prev := geom.Vec{X: 10, Y: 0}
	next := geom.Vec{X: 10, Y: 30}

	clamped := clampAccel(next, prev, 5)
	if delta := clamped.Sub(prev).Norm(); math.Abs(delta-5) > 1e-9 {
		t.Errorf("clamped delta = %g, want 5", delta)
	}

	// Within budget passes through.
	if got := clampAccel(geom.Vec{X: 12, Y: 0}, prev, 5); got != (geom.Vec{X: 12, Y: 0}) {
		t.Errorf("clampAccel within budget = %v", got)
	}
	// Non-positive budget disables the clamp.
	if got := clampAccel(next, prev, 0); got != next {
		t.Errorf("clampAccel with zero budget = %v, want %v", got, next)
	}
}
