package perception

import (
	"testing"

	"github.com/pthm-cable/haze/config"
)

func testHazeConfig() *config.HazeConfig {
	return &config.HazeConfig{
		Max:                0.9,
		Sensitivity:        8.0,
		OccupancyThreshold: 0.05,
		PrecisionDecay:     2.0,
		Gamma:              2.0,
		Epsilon:            0.001,
	}
}

// uniformOccupancy builds a tensor whose occupancy channel is constant v.
func uniformOccupancy(nr, nt int, v float64) Tensor {
	t := NewTensor(nr, nt)
	for r := 0; r < nr; r++ {
		for th := 0; th < nt; th++ {
			t.Set(ChanOccupancy, r, th, v)
		}
	}
	return t
}

func TestSelfHazeBounds(t *testing.T) {
	hcfg := testHazeConfig()

	empty := NewTensor(6, 9)
	h := SelfHaze(empty, hcfg)
	if h <= 0 || h >= hcfg.Max {
		t.Errorf("haze = %g, want in (0, %g)", h, hcfg.Max)
	}
	// Empty surroundings sit above the sigmoid midpoint.
	if h < hcfg.Max/2 {
		t.Errorf("haze of empty tensor = %g, want above %g", h, hcfg.Max/2)
	}

	dense := uniformOccupancy(6, 9, 1.0)
	if hd := SelfHaze(dense, hcfg); hd <= 0 || hd >= hcfg.Max {
		t.Errorf("dense haze = %g, want in (0, %g)", hd, hcfg.Max)
	}
}

func TestSelfHazeMonotoneInOccupancy(t *testing.T) {
	hcfg := testHazeConfig()

	prev := SelfHaze(uniformOccupancy(6, 9, 0), hcfg)
	for _, occ := range []float64{0.02, 0.05, 0.1, 0.5, 1.0} {
		h := SelfHaze(uniformOccupancy(6, 9, occ), hcfg)
		if h >= prev {
			t.Errorf("haze not strictly decreasing: occ=%g gave %g, previous %g", occ, h, prev)
		}
		prev = h
	}
}

func TestPrecisionRadialDecay(t *testing.T) {
	hcfg := testHazeConfig()
	tensor := NewTensor(6, 9)

	f := PrecisionField(tensor, 0.2, hcfg)
	for r := 1; r < f.Nr; r++ {
		if f.At(r, 0) > f.At(r-1, 0) {
			t.Errorf("precision increased with radius at r=%d: %g > %g", r, f.At(r, 0), f.At(r-1, 0))
		}
	}

	// Identical across angular bins.
	for th := 1; th < f.Nt; th++ {
		if f.At(2, th) != f.At(2, 0) {
			t.Errorf("precision varies across angular bins: %g vs %g", f.At(2, th), f.At(2, 0))
		}
	}
}

func TestPrecisionHazeAttenuation(t *testing.T) {
	hcfg := testHazeConfig()
	tensor := NewTensor(6, 9)

	low := PrecisionField(tensor, 0.1, hcfg)
	high := PrecisionField(tensor, 0.8, hcfg)

	for r := 0; r < low.Nr; r++ {
		if high.At(r, 0) > low.At(r, 0) {
			t.Errorf("higher haze raised precision at r=%d: %g > %g", r, high.At(r, 0), low.At(r, 0))
		}
	}
}

func TestPrecisionFloor(t *testing.T) {
	hcfg := testHazeConfig()
	tensor := NewTensor(6, 9)

	// Near-total haze pushes raw precision below the floor.
	f := PrecisionField(tensor, 0.999, hcfg)
	for r := 0; r < f.Nr; r++ {
		for th := 0; th < f.Nt; th++ {
			if f.At(r, th) < hcfg.Epsilon {
				t.Fatalf("precision %g below floor %g at (%d,%d)", f.At(r, th), hcfg.Epsilon, r, th)
			}
		}
	}
}

func TestEnvironmentalHazeAttenuates(t *testing.T) {
	hcfg := testHazeConfig()
	tensor := NewTensor(6, 9)

	clear := PrecisionFieldEnv(tensor, 0.2, 0, 2.0, hcfg)
	hazy := PrecisionFieldEnv(tensor, 0.2, 0.6, 2.0, hcfg)

	if hazy.At(0, 0) >= clear.At(0, 0) {
		t.Errorf("environmental haze did not attenuate: %g >= %g", hazy.At(0, 0), clear.At(0, 0))
	}
}

func TestEntropyInverseToPrecision(t *testing.T) {
	hcfg := testHazeConfig()
	tensor := NewTensor(6, 9)

	sharp := PrecisionField(tensor, 0.1, hcfg)
	blurred := PrecisionField(tensor, 0.8, hcfg)

	if BeliefEntropy(blurred) <= BeliefEntropy(sharp) {
		t.Errorf("entropy under high haze (%g) should exceed entropy under low haze (%g)",
			BeliefEntropy(blurred), BeliefEntropy(sharp))
	}
}
