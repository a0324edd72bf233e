package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/haze/config"
)

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector()

	defaults := pv.DefaultVector()
	norm := pv.Normalize(defaults)
	for i, v := range norm {
		if v < 0 || v > 1 {
			t.Errorf("normalized %s = %g outside [0,1]", pv.Specs[i].Name, v)
		}
	}

	back := pv.Denormalize(norm)
	for i := range defaults {
		if math.Abs(back[i]-defaults[i]) > 1e-9 {
			t.Errorf("%s round trip %g != %g", pv.Specs[i].Name, back[i], defaults[i])
		}
	}
}

func TestParamVectorClamp(t *testing.T) {
	pv := NewParamVector()

	over := make([]float64, pv.Dim())
	for i := range over {
		over[i] = pv.Specs[i].Max + 100
	}
	clamped := pv.Clamp(over)
	for i, v := range clamped {
		if v != pv.Specs[i].Max {
			t.Errorf("%s clamped to %g, want %g", pv.Specs[i].Name, v, pv.Specs[i].Max)
		}
	}
}

func TestApplyToConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}

	pv := NewParamVector()
	vals := pv.DefaultVector()
	vals[0] = 0.42 // entropy_weight

	pv.ApplyToConfig(cfg, vals)
	if cfg.Cost.EntropyWeight != 0.42 {
		t.Errorf("entropy weight = %g, want 0.42", cfg.Cost.EntropyWeight)
	}

	extracted := pv.ExtractFromConfig(cfg)
	if extracted[0] != 0.42 {
		t.Errorf("extracted entropy weight = %g, want 0.42", extracted[0])
	}
}
