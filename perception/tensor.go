// Package perception builds and interprets the egocentric saliency polar
// map (SPM): a log-polar tensor encoding nearby agents' occupancy and
// relative motion, plus the haze / precision / entropy quantities derived
// from it.
package perception

import (
	"fmt"
	"math"
)

// Tensor channels.
const (
	ChanOccupancy     = 0
	ChanRadialVel     = 1
	ChanTangentialVel = 2

	// Channels is the number of tensor channels.
	Channels = 3
)

// Tensor is a dense [Channels][Nr][Nt] perceptual tensor. All transforms
// allocate a new tensor rather than mutating in place, since the encoder
// sits inside the controller's differentiated cost path.
type Tensor struct {
	Nr, Nt int
	data   []float64
}

// NewTensor returns a zero tensor with the given radial and angular bins.
func NewTensor(nr, nt int) Tensor {
	return Tensor{Nr: nr, Nt: nt, data: make([]float64, Channels*nr*nt)}
}

// TensorFromSlice builds a tensor from a flat channel-major slice of length
// Channels*nr*nt. The slice is copied.
func TensorFromSlice(nr, nt int, vals []float64) (Tensor, error) {
	want := Channels * nr * nt
	if len(vals) != want {
		return Tensor{}, fmt.Errorf("perception: tensor slice length %d, want %d", len(vals), want)
	}
	t := NewTensor(nr, nt)
	copy(t.data, vals)
	return t, nil
}

// Empty reports whether the tensor has no backing storage (zero value).
func (t Tensor) Empty() bool {
	return t.data == nil
}

func (t Tensor) index(c, r, th int) int {
	return (c*t.Nr+r)*t.Nt + th
}

// At returns the value at channel c, radial bin r, angular bin th.
func (t Tensor) At(c, r, th int) float64 {
	return t.data[t.index(c, r, th)]
}

// Set stores v at channel c, radial bin r, angular bin th.
func (t Tensor) Set(c, r, th int, v float64) {
	t.data[t.index(c, r, th)] = v
}

// AddAt accumulates v at channel c, radial bin r, angular bin th.
func (t Tensor) AddAt(c, r, th int, v float64) {
	t.data[t.index(c, r, th)] += v
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	out := Tensor{Nr: t.Nr, Nt: t.Nt, data: make([]float64, len(t.data))}
	copy(out.data, t.data)
	return out
}

// Flatten returns a copy of the full tensor as a flat channel-major slice.
func (t Tensor) Flatten() []float64 {
	out := make([]float64, len(t.data))
	copy(out, t.data)
	return out
}

// Channel returns a copy of one channel as a flat slice of length Nr*Nt.
func (t Tensor) Channel(c int) []float64 {
	out := make([]float64, t.Nr*t.Nt)
	copy(out, t.data[c*t.Nr*t.Nt:(c+1)*t.Nr*t.Nt])
	return out
}

// MeanOccupancy returns the mean of the occupancy channel over all bins.
func (t Tensor) MeanOccupancy() float64 {
	n := t.Nr * t.Nt
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range t.data[:n] {
		sum += v
	}
	return sum / float64(n)
}

// IsFinite reports whether every entry is finite.
func (t Tensor) IsFinite() bool {
	for _, v := range t.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsZero reports whether every entry is exactly zero.
func (t Tensor) IsZero() bool {
	for _, v := range t.data {
		if v != 0 {
			return false
		}
	}
	return true
}

// Field is an [Nr][Nt] scalar field over the tensor's bins, used for the
// precision matrix.
type Field struct {
	Nr, Nt int
	data   []float64
}

// NewField returns a zero field with the given dimensions.
func NewField(nr, nt int) Field {
	return Field{Nr: nr, Nt: nt, data: make([]float64, nr*nt)}
}

// At returns the value at radial bin r, angular bin th.
func (f Field) At(r, th int) float64 {
	return f.data[r*f.Nt+th]
}

// Set stores v at radial bin r, angular bin th.
func (f Field) Set(r, th int, v float64) {
	f.data[r*f.Nt+th] = v
}

// Values returns the backing values as a flat slice of length Nr*Nt.
// The slice is a copy.
func (f Field) Values() []float64 {
	out := make([]float64, len(f.data))
	copy(out, f.data)
	return out
}
