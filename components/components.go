// Package components defines ECS components for the simulation.
package components

import "github.com/pthm-cable/haze/perception"

// Position is an entity's world position, always wrapped into
// [0, width) x [0, height).
type Position struct {
	X, Y float64
}

// Velocity is an entity's velocity. Its magnitude never exceeds the body's
// max speed.
type Velocity struct {
	X, Y float64
}

// Rotation holds the heading angle, derived from velocity whenever the
// speed exceeds a small threshold.
type Rotation struct {
	Heading float64 // radians
}

// Body holds an agent's physical properties.
type Body struct {
	Radius        float64 // collision radius
	PersonalSpace float64 // near-field saturation distance for perception
	MaxSpeed      float64 // maximum velocity magnitude
}

// Agent carries identity and the exploration random-walk state.
type Agent struct {
	ID uint32

	// Goalless agents keep a persistent wander heading that sets their
	// exploration direction, retargeted at random every few steps.
	WanderAngle float64
	WanderTimer int
}

// Goal is an optional target position.
type Goal struct {
	X, Y   float64
	Active bool
}

// Perception holds per-agent inference state and decision diagnostics. The
// diagnostic fields are written by the orchestrator from the decision trace
// and consumed by nothing in the algorithm itself.
type Perception struct {
	Tensor    perception.Tensor
	Prev      perception.Tensor
	Precision perception.Field
	Haze      float64
	Visible   []uint32

	LastGradX   float64
	LastGradY   float64
	LastCost    float64
	LastEntropy float64
}

// Obstacle marks a static circular obstacle entity.
type Obstacle struct {
	Radius float64
}
