// Package geom provides 2D vector math and toroidal world geometry.
package geom

import "math"

// Vec is a 2D vector in world coordinates.
type Vec struct {
	X, Y float64
}

// Add returns v + o.
func (v Vec) Add(o Vec) Vec {
	return Vec{v.X + o.X, v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec) Sub(o Vec) Vec {
	return Vec{v.X - o.X, v.Y - o.Y}
}

// Scale returns v scaled by s.
func (v Vec) Scale(s float64) Vec {
	return Vec{v.X * s, v.Y * s}
}

// Dot returns the dot product of v and o.
func (v Vec) Dot(o Vec) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Norm returns the vector magnitude.
func (v Vec) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// NormSq returns the squared magnitude.
func (v Vec) NormSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Angle returns the vector direction in radians.
func (v Vec) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// Unit returns the unit vector pointing at the given angle.
func Unit(angle float64) Vec {
	return Vec{math.Cos(angle), math.Sin(angle)}
}

// ClampNorm returns v scaled down so its magnitude does not exceed maxNorm.
func (v Vec) ClampNorm(maxNorm float64) Vec {
	n := v.Norm()
	if n <= maxNorm || n == 0 {
		return v
	}
	return v.Scale(maxNorm / n)
}

// IsFinite reports whether both components are finite.
func (v Vec) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// NormalizeAngle wraps an angle to [-Pi, Pi].
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
