package control

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/geom"
	"github.com/pthm-cable/haze/perception"
)

// Terms breaks the expected-free-energy cost into its components, mostly for
// diagnostics and tests.
type Terms struct {
	Percept float64 // collision risk from occupied, trusted bins
	Entropy float64 // predicted belief entropy
	Info    float64 // information-gain proxy (rewarded, so subtracted)
	Meta    float64 // goal deviation or exploration-speed deviation

	PredictorFailed bool // prediction-dependent terms degraded to zero
}

// evalContext bundles the fixed inputs of one decision so the cost can be
// treated as a function of the action alone.
type evalContext struct {
	self      perception.AgentState
	neighbors []perception.AgentState
	tensor    perception.Tensor
	prev      perception.Tensor
	precision perception.Field
	preferred *geom.Vec
	envHaze   float64
	worldW    float64
	worldH    float64
	dt        float64
	cfg       *config.Config
	pred      Predictor
}

// evaluate computes G(a) = F_percept + beta*H_future - gamma_info*I_gain
// + lambda*M_meta. Predictor failures never propagate: the prediction-
// dependent terms contribute zero for that evaluation.
func evaluate(action geom.Vec, ctx *evalContext) (float64, Terms) {
	var terms Terms
	cost := &ctx.cfg.Cost

	terms.Percept = perceptRisk(action, ctx)

	pred, err := ctx.pred.Predict(Request{
		Self:      ctx.self,
		Neighbors: ctx.neighbors,
		WorldW:    ctx.worldW,
		WorldH:    ctx.worldH,
		DT:        ctx.dt,
		Previous:  ctx.prev,
		Current:   ctx.tensor,
		Action:    action,
	})
	if err != nil || !validPrediction(pred, ctx.tensor) {
		terms.PredictorFailed = true
	} else {
		hPred := perception.SelfHaze(pred, &ctx.cfg.Haze)
		piPred := perception.PrecisionFieldEnv(pred, hPred, ctx.envHaze, ctx.cfg.HazeField.Gamma, &ctx.cfg.Haze)
		terms.Entropy = perception.BeliefEntropy(piPred)
		terms.Info = stat.Variance(pred.Channel(perception.ChanOccupancy), nil)
	}

	if ctx.preferred != nil {
		terms.Meta = action.Sub(*ctx.preferred).NormSq()
	} else {
		dev := action.Norm() - cost.ExplorationSpeed
		terms.Meta = dev * dev
	}

	total := terms.Percept +
		cost.EntropyWeight*terms.Entropy -
		cost.InfoWeight*terms.Info +
		cost.PragmaticWeight*terms.Meta

	return total, terms
}

// perceptRisk penalizes forward motion toward occupied, trusted bins in the
// nearest radial shells: occupancy * precision * rectified alignment of the
// action with the bin bearing * distance weight.
func perceptRisk(action geom.Vec, ctx *evalContext) float64 {
	t := ctx.tensor
	pcfg := &ctx.cfg.Perception

	maxR := ctx.cfg.Cost.RiskRadialBins
	if maxR > t.Nr {
		maxR = t.Nr
	}

	var risk float64
	for th := 0; th < t.Nt; th++ {
		bearing := ctx.self.Heading + perception.BinBearing(th, pcfg)
		u := geom.Unit(bearing)
		approach := action.Dot(u)
		if approach <= 0 {
			continue
		}
		for r := 0; r < maxR; r++ {
			occ := t.At(perception.ChanOccupancy, r, th)
			if occ == 0 {
				continue
			}
			risk += occ * ctx.precision.At(r, th) * approach / (1 + float64(r))
		}
	}
	return risk * ctx.cfg.Cost.RiskGain
}

// validPrediction checks the caller-boundary contract on predictor output:
// correct shape and all-finite values.
func validPrediction(pred, current perception.Tensor) bool {
	if pred.Empty() || pred.Nr != current.Nr || pred.Nt != current.Nt {
		return false
	}
	return pred.IsFinite()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
