package main

import (
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/haze/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec

	mins  []float64
	spans []float64
}

// NewParamVector creates the standard set of tunable parameters: the cost
// term weights and the descent schedule.
func NewParamVector() *ParamVector {
	pv := &ParamVector{
		Specs: []ParamSpec{
			{Name: "entropy_weight", Path: "cost.entropy_weight", Min: 0.0, Max: 1.0, Default: 0.1},
			{Name: "info_weight", Path: "cost.info_weight", Min: 0.0, Max: 0.5, Default: 0.05},
			{Name: "pragmatic_weight", Path: "cost.pragmatic_weight", Min: 0.05, Max: 2.0, Default: 0.5},
			{Name: "risk_gain", Path: "cost.risk_gain", Min: 0.2, Max: 5.0, Default: 1.0},
			{Name: "step_size", Path: "descent.step_size", Min: 0.05, Max: 2.0, Default: 0.5},
			{Name: "grad_clip", Path: "descent.grad_clip", Min: 1.0, Max: 50.0, Default: 10.0},
			{Name: "blend", Path: "descent.blend", Min: 0.0, Max: 0.9, Default: 0.3},
		},
	}

	pv.mins = make([]float64, len(pv.Specs))
	pv.spans = make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		pv.mins[i] = spec.Min
		pv.spans[i] = spec.Max - spec.Min
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	out := make([]float64, len(raw))
	floats.SubTo(out, raw, pv.mins)
	floats.DivTo(out, out, pv.spans)
	return out
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	out := make([]float64, len(normalized))
	floats.MulTo(out, normalized, pv.spans)
	floats.AddTo(out, out, pv.mins)
	return out
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Cost.EntropyWeight = clamped[0]
	cfg.Cost.InfoWeight = clamped[1]
	cfg.Cost.PragmaticWeight = clamped[2]
	cfg.Cost.RiskGain = clamped[3]
	cfg.Descent.StepSize = clamped[4]
	cfg.Descent.GradClip = clamped[5]
	cfg.Descent.Blend = clamped[6]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Cost.EntropyWeight,
		cfg.Cost.InfoWeight,
		cfg.Cost.PragmaticWeight,
		cfg.Cost.RiskGain,
		cfg.Descent.StepSize,
		cfg.Descent.GradClip,
		cfg.Descent.Blend,
	}
}
