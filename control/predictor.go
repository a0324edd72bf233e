// Package control selects agent actions by bounded gradient descent on an
// expected-free-energy cost over one-step-ahead perceptual predictions.
package control

import (
	"fmt"

	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/geom"
	"github.com/pthm-cable/haze/perception"
)

// Request carries everything a predictor may need for a one-step forecast.
// Kinematic prediction uses the raw neighbor snapshots; sequence models use
// the perceptual history instead.
type Request struct {
	Self      perception.AgentState
	Neighbors []perception.AgentState
	WorldW    float64
	WorldH    float64
	DT        float64

	// Perceptual history, most recent last. Previous may be empty on the
	// first step of an agent's life.
	Previous perception.Tensor
	Current  perception.Tensor

	// Candidate action (a velocity) under evaluation.
	Action geom.Vec
}

// Predictor forecasts the perceptual tensor one step ahead under a candidate
// action. Implementations must be pure: no mutation of the request, a fresh
// tensor per call. The controller depends only on this interface.
type Predictor interface {
	Predict(req Request) (perception.Tensor, error)
}

// NewPredictor builds the configured predictor variant.
func NewPredictor(pcfg *config.PredictorConfig, percept *config.PerceptionConfig) (Predictor, error) {
	switch pcfg.Variant {
	case config.PredictorKinematic:
		return &KinematicPredictor{percept: percept}, nil
	case config.PredictorSequence:
		return NewSequencePredictor(pcfg, percept)
	default:
		return nil, fmt.Errorf("control: unknown predictor variant %q", pcfg.Variant)
	}
}
