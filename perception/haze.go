package perception

import (
	"math"

	"github.com/pthm-cable/haze/config"
)

// entropyEps keeps the entropy log finite; the precision floor already keeps
// every entry positive, so this only matters for hand-built fields.
const entropyEps = 1e-12

// SelfHaze derives the scalar haze from the tensor's mean occupancy:
// low occupancy (the agent believes itself isolated) yields high haze,
// dense surroundings yield low haze. The result lies in [0, Max).
func SelfHaze(t Tensor, hcfg *config.HazeConfig) float64 {
	omega := t.MeanOccupancy()
	return hcfg.Max * sigmoid(-hcfg.Sensitivity*(omega-hcfg.OccupancyThreshold))
}

// PrecisionField builds the per-bin precision matrix for a tensor under the
// given self-haze. Base precision decays exponentially with the normalized
// radial index (nearer bins trusted most) and is identical across angular
// bins; haze attenuates all bins uniformly. Every entry is floored at
// Epsilon.
func PrecisionField(t Tensor, haze float64, hcfg *config.HazeConfig) Field {
	return PrecisionFieldEnv(t, haze, 0, 0, hcfg)
}

// PrecisionFieldEnv is PrecisionField with an additional environmental haze
// factor: the sampled local field value attenuates precision the same way
// self-haze does, with its own exponent.
func PrecisionFieldEnv(t Tensor, haze, envHaze, envGamma float64, hcfg *config.HazeConfig) Field {
	f := NewField(t.Nr, t.Nt)

	selfAtt := math.Pow(1-clampHaze(haze), hcfg.Gamma)
	envAtt := 1.0
	if envHaze > 0 {
		envAtt = math.Pow(1-clampHaze(envHaze), envGamma)
	}

	for r := 0; r < t.Nr; r++ {
		base := 1.0
		if t.Nr > 1 {
			base = math.Exp(-hcfg.PrecisionDecay * float64(r) / float64(t.Nr-1))
		}
		v := base * selfAtt * envAtt
		if v < hcfg.Epsilon {
			v = hcfg.Epsilon
		}
		for th := 0; th < t.Nt; th++ {
			f.Set(r, th, v)
		}
	}

	return f
}

// BeliefEntropy returns the entropy of the belief state implied by a
// precision field: H = -1/2 * sum(log(pi + eps)). Monotone decreasing in
// every precision entry.
func BeliefEntropy(f Field) float64 {
	var h float64
	for r := 0; r < f.Nr; r++ {
		for th := 0; th < f.Nt; th++ {
			h -= 0.5 * math.Log(f.At(r, th)+entropyEps)
		}
	}
	return h
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// clampHaze keeps the attenuation base positive even for out-of-range haze.
func clampHaze(h float64) float64 {
	if h < 0 {
		return 0
	}
	if h > 0.999 {
		return 0.999
	}
	return h
}
