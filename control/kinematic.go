package control

import (
	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/geom"
	"github.com/pthm-cable/haze/perception"
)

// KinematicPredictor extrapolates every neighbor one timestep along its
// current velocity, moves self under the candidate action, and re-runs the
// encoder on the advanced state. The forecast is continuous in the action,
// so the cost built on it can be differentiated numerically.
type KinematicPredictor struct {
	percept *config.PerceptionConfig
}

// NewKinematicPredictor returns a kinematic one-step predictor.
func NewKinematicPredictor(percept *config.PerceptionConfig) *KinematicPredictor {
	return &KinematicPredictor{percept: percept}
}

// Predict implements Predictor.
func (p *KinematicPredictor) Predict(req Request) (perception.Tensor, error) {
	self := req.Self
	self.Pos = geom.Wrap(self.Pos.Add(req.Action.Scale(req.DT)), req.WorldW, req.WorldH)
	self.Vel = req.Action
	if req.Action.Norm() > 1e-6 {
		self.Heading = req.Action.Angle()
	}

	advanced := make([]perception.AgentState, len(req.Neighbors))
	for i, nb := range req.Neighbors {
		if !nb.Static {
			nb.Pos = geom.Wrap(nb.Pos.Add(nb.Vel.Scale(req.DT)), req.WorldW, req.WorldH)
		}
		advanced[i] = nb
	}

	return perception.Encode(self, advanced, req.WorldW, req.WorldH, p.percept), nil
}
