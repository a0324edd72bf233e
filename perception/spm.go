package perception

import (
	"math"

	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/geom"
)

// AgentState is a read-only snapshot of one agent (or static obstacle) used
// by the encoder, the controller, and the predictors. Decision code reads
// only these snapshots, never live simulation state.
type AgentState struct {
	ID            uint32
	Pos           geom.Vec
	Vel           geom.Vec
	Heading       float64
	Radius        float64
	PersonalSpace float64
	MaxSpeed      float64
	Static        bool // obstacles: no own velocity, never decides
}

// splatRadius is the kernel half-width of the Gaussian splat, in bins.
const splatRadius = 2

// distEps guards zero relative distance before normalization.
const distEps = 1e-9

// Encode builds the SPM tensor for self from the given neighbor snapshots
// in a w x h toroidal world.
//
// Radial convention: bin 0 is the personal-space zone; distances beyond
// personal space map logarithmically across bins 1..Nr-1 up to MaxRange.
// Angular convention: the axis spans exactly the configured FOV centered on
// the heading; with a partial FOV the edges are clipped, with a full-circle
// FOV angular indices wrap.
func Encode(self AgentState, neighbors []AgentState, w, h float64, pcfg *config.PerceptionConfig) Tensor {
	t := NewTensor(pcfg.RadialBins, pcfg.AngularBins)

	for i := range neighbors {
		nb := &neighbors[i]
		if nb.ID == self.ID && !nb.Static {
			continue
		}

		dist, bearing, ok := eligible(self, nb, w, h, pcfg)
		if !ok {
			continue
		}

		// Relative velocity decomposed along the radial / tangential unit
		// vectors at the neighbor's world bearing. A static obstacle has
		// zero own velocity, so its relative velocity is -self.Vel.
		worldAngle := bearing + self.Heading
		er := geom.Unit(worldAngle)
		et := geom.Vec{X: -er.Y, Y: er.X}
		vrel := nb.Vel.Sub(self.Vel)
		vr := vrel.Dot(er)
		vt := vrel.Dot(et)

		splat(t, dist, bearing, vr, vt, self.PersonalSpace, pcfg)
	}

	return t
}

// VisibleNeighbors returns the IDs of neighbors that pass the range and
// field-of-view gates, in input order.
func VisibleNeighbors(self AgentState, neighbors []AgentState, w, h float64, pcfg *config.PerceptionConfig) []uint32 {
	var ids []uint32
	for i := range neighbors {
		nb := &neighbors[i]
		if nb.ID == self.ID && !nb.Static {
			continue
		}
		if _, _, ok := eligible(self, nb, w, h, pcfg); ok {
			ids = append(ids, nb.ID)
		}
	}
	return ids
}

// eligible applies the range and FOV gates and returns the toroidal
// distance and the bearing relative to self's heading.
func eligible(self AgentState, nb *AgentState, w, h float64, pcfg *config.PerceptionConfig) (dist, bearing float64, ok bool) {
	d := geom.Delta(self.Pos, nb.Pos, w, h)
	dist = d.Norm()
	if dist < distEps {
		dist = distEps
	}
	if dist > pcfg.MaxRange {
		return 0, 0, false
	}

	bearing = geom.NormalizeAngle(d.Angle() - self.Heading)
	halfFOV := pcfg.FOV / 2
	if !fullCircle(pcfg) && (bearing < -halfFOV || bearing > halfFOV) {
		return 0, 0, false
	}
	return dist, bearing, true
}

func fullCircle(pcfg *config.PerceptionConfig) bool {
	return pcfg.FOV >= 2*math.Pi-1e-9
}

// splat adds one neighbor's contribution to the tensor with a separable
// Gaussian kernel over a continuous (radial, angular) coordinate. The
// weighting is continuous in dist and bearing; there is no hard branch on
// the nearest bin.
func splat(t Tensor, dist, bearing, vr, vt, personalSpace float64, pcfg *config.PerceptionConfig) {
	nr, nt := pcfg.RadialBins, pcfg.AngularBins

	// Continuous radial coordinate: 0 inside personal space, log
	// interpolation over the remaining bins out to MaxRange.
	var rc float64
	if dist > personalSpace {
		logPS := math.Log(personalSpace)
		logDM := math.Log(pcfg.MaxRange)
		scale := float64(nr-2) / (logDM - logPS + 1e-6)
		rc = 1 + scale*(math.Log(dist)-logPS)
	}

	// Continuous angular coordinate: bearing -FOV/2 maps to the center of
	// bin 0, +FOV/2 to the center of bin Nt-1 (partial FOV), or linearly
	// around the circle (full FOV).
	halfFOV := pcfg.FOV / 2
	var tc float64
	if fullCircle(pcfg) {
		tc = (bearing+math.Pi)/(2*math.Pi)*float64(nt) - 0.5
	} else if nt > 1 {
		tc = (bearing + halfFOV) / pcfg.FOV * float64(nt-1)
	}

	rBase := int(math.Round(rc))
	tBase := int(math.Round(tc))
	wrap := fullCircle(pcfg)

	for r := rBase - splatRadius; r <= rBase+splatRadius; r++ {
		if r < 0 || r >= nr {
			continue
		}
		dr := float64(r) - rc
		wr := math.Exp(-(dr * dr) / (2 * pcfg.SigmaR * pcfg.SigmaR))

		for th := tBase - splatRadius; th <= tBase+splatRadius; th++ {
			var thIdx int
			var dt float64
			if wrap {
				thIdx = ((th % nt) + nt) % nt
				dt = float64(th) - tc
				// Wrapped angular difference in bin units.
				half := float64(nt) / 2
				for dt > half {
					dt -= float64(nt)
				}
				for dt < -half {
					dt += float64(nt)
				}
			} else {
				if th < 0 || th >= nt {
					continue
				}
				thIdx = th
				dt = float64(th) - tc
			}

			weight := wr * math.Exp(-(dt*dt)/(2*pcfg.SigmaTheta*pcfg.SigmaTheta))

			t.AddAt(ChanOccupancy, r, thIdx, weight)
			t.AddAt(ChanRadialVel, r, thIdx, weight*vr)
			t.AddAt(ChanTangentialVel, r, thIdx, weight*vt)
		}
	}
}

// BinBearing returns the bearing (relative to the heading) of the center of
// angular bin th under the encoder's angular convention.
func BinBearing(th int, pcfg *config.PerceptionConfig) float64 {
	nt := pcfg.AngularBins
	if fullCircle(pcfg) {
		return (float64(th)+0.5)/float64(nt)*2*math.Pi - math.Pi
	}
	if nt == 1 {
		return 0
	}
	return -pcfg.FOV/2 + float64(th)/float64(nt-1)*pcfg.FOV
}
