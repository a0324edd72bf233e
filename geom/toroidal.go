package geom

import "math"

// Delta returns the shortest displacement from a to b in a toroidal
// world of the given size. Each component is wrapped independently so
// the result always lies in [-w/2, w/2] x [-h/2, h/2].
func Delta(a, b Vec, w, h float64) Vec {
	dx := b.X - a.X
	dy := b.Y - a.Y

	if dx > w/2 {
		dx -= w
	} else if dx < -w/2 {
		dx += w
	}
	if dy > h/2 {
		dy -= h
	} else if dy < -h/2 {
		dy += h
	}

	return Vec{dx, dy}
}

// Distance returns the shortest toroidal distance between a and b.
func Distance(a, b Vec, w, h float64) float64 {
	return Delta(a, b, w, h).Norm()
}

// Wrap maps p into [0, w) x [0, h).
func Wrap(p Vec, w, h float64) Vec {
	x := math.Mod(p.X, w)
	if x < 0 {
		x += w
	}
	y := math.Mod(p.Y, h)
	if y < 0 {
		y += h
	}
	return Vec{x, y}
}
