package geom

import (
	"math"
	"testing"
)

func TestWrapIntoBounds(t *testing.T) {
	const w, h = 800.0, 600.0

	tests := []struct {
		in   Vec
		want Vec
	}{
		{Vec{0, 0}, Vec{0, 0}},
		{Vec{800, 600}, Vec{0, 0}},
		{Vec{810, 10}, Vec{10, 10}},
		{Vec{-10, -10}, Vec{790, 590}},
		{Vec{1610, -590}, Vec{10, 10}},
	}

	for _, tt := range tests {
		got := Wrap(tt.in, w, h)
		if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
			t.Errorf("Wrap(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if got.X < 0 || got.X >= w || got.Y < 0 || got.Y >= h {
			t.Errorf("Wrap(%v) = %v out of bounds", tt.in, got)
		}
	}
}

func TestWrapIdempotent(t *testing.T) {
	const w, h = 800.0, 600.0
	p := Wrap(Vec{-123.4, 987.6}, w, h)
	q := Wrap(p, w, h)
	if p != q {
		t.Errorf("Wrap not idempotent: %v -> %v", p, q)
	}
}

func TestDeltaShortestPath(t *testing.T) {
	const w, h = 800.0, 600.0

	// Across both seams: going right and up wraps shorter.
	a := Vec{790, 10}
	b := Vec{10, 590}
	d := Delta(a, b, w, h)
	if math.Abs(d.X-20) > 1e-9 || math.Abs(d.Y+20) > 1e-9 {
		t.Errorf("Delta(%v, %v) = %v, want {20 -20}", a, b, d)
	}

	// Interior points are plain subtraction.
	d = Delta(Vec{100, 100}, Vec{150, 80}, w, h)
	if math.Abs(d.X-50) > 1e-9 || math.Abs(d.Y+20) > 1e-9 {
		t.Errorf("interior Delta = %v, want {50 -20}", d)
	}
}

func TestDeltaTranslationInvariance(t *testing.T) {
	const w, h = 800.0, 600.0
	a := Vec{700, 50}
	b := Vec{100, 550}

	d0 := Delta(a, b, w, h)
	d1 := Delta(Wrap(a.Add(Vec{w, 0}), w, h), b, w, h)
	d2 := Delta(a, Wrap(b.Add(Vec{0, h}), w, h), w, h)

	if math.Abs(d0.X-d1.X) > 1e-9 || math.Abs(d0.Y-d1.Y) > 1e-9 {
		t.Errorf("delta changed under +W shift: %v vs %v", d0, d1)
	}
	if math.Abs(d0.X-d2.X) > 1e-9 || math.Abs(d0.Y-d2.Y) > 1e-9 {
		t.Errorf("delta changed under +H shift: %v vs %v", d0, d2)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	const w, h = 800.0, 600.0
	a := Vec{20, 580}
	b := Vec{780, 20}
	if d1, d2 := Distance(a, b, w, h), Distance(b, a, w, h); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("Distance not symmetric: %g vs %g", d1, d2)
	}
}

func TestClampNorm(t *testing.T) {
	v := Vec{3, 4}
	c := v.ClampNorm(2.5)
	if math.Abs(c.Norm()-2.5) > 1e-9 {
		t.Errorf("clamped norm = %g, want 2.5", c.Norm())
	}
	// Direction preserved
	if math.Abs(c.Angle()-v.Angle()) > 1e-9 {
		t.Errorf("clamp changed direction: %g vs %g", c.Angle(), v.Angle())
	}
	// Below the bound is untouched
	if got := v.ClampNorm(10); got != v {
		t.Errorf("ClampNorm(10) = %v, want %v", got, v)
	}
	// Zero vector stays zero
	if got := (Vec{}).ClampNorm(1); got != (Vec{}) {
		t.Errorf("zero clamp = %v", got)
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{2 * math.Pi, 0},
		{-2 * math.Pi, 0},
		{3 * math.Pi, math.Pi},
	}
	for _, tt := range tests {
		got := NormalizeAngle(tt.in)
		if math.Abs(math.Sin(got-tt.want)) > 1e-9 || got > math.Pi || got < -math.Pi {
			t.Errorf("NormalizeAngle(%g) = %g, want %g", tt.in, got, tt.want)
		}
	}
}
