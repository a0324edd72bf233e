package control

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/haze/config"
	"github.com/pthm-cable/haze/perception"
)

// SequencePredictor is a learned one-step forecaster: a single-layer
// recurrent cell consuming the recent perceptual history with the candidate
// action appended to every frame, followed by a linear readout reshaped to
// tensor form. Training happens offline; this is the inference pass only,
// and it is a pure function of the request.
type SequencePredictor struct {
	percept *config.PerceptionConfig

	inSize     int // tensor size + 2 action components
	hiddenSize int

	wx *mat.Dense    // hidden x input
	wh *mat.Dense    // hidden x hidden
	bh *mat.VecDense // hidden
	wo *mat.Dense    // tensor x hidden
	bo *mat.VecDense // tensor
}

// SequenceWeights is the on-disk weight format, row-major.
type SequenceWeights struct {
	HiddenSize int       `json:"hidden_size"`
	InSize     int       `json:"in_size"`
	OutSize    int       `json:"out_size"`
	Wx         []float64 `json:"wx"`
	Wh         []float64 `json:"wh"`
	Bh         []float64 `json:"bh"`
	Wo         []float64 `json:"wo"`
	Bo         []float64 `json:"bo"`
}

// NewSequencePredictor builds the predictor from config. With a weights path
// it loads trained weights; without one it falls back to a small
// deterministically seeded random initialization, useful for smoke runs and
// tests where only shape and finiteness matter.
func NewSequencePredictor(pcfg *config.PredictorConfig, percept *config.PerceptionConfig) (*SequencePredictor, error) {
	tensorSize := perception.Channels * percept.RadialBins * percept.AngularBins
	inSize := tensorSize + 2

	if pcfg.WeightsPath != "" {
		w, err := loadSequenceWeights(pcfg.WeightsPath)
		if err != nil {
			return nil, err
		}
		if w.InSize != inSize || w.OutSize != tensorSize {
			return nil, fmt.Errorf("control: sequence weights shaped %dx%d, config needs %dx%d",
				w.InSize, w.OutSize, inSize, tensorSize)
		}
		return newSequenceFromWeights(percept, w)
	}

	w := randomSequenceWeights(pcfg.HiddenSize, inSize, tensorSize)
	return newSequenceFromWeights(percept, w)
}

func loadSequenceWeights(path string) (*SequenceWeights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sequence weights: %w", err)
	}
	var w SequenceWeights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing sequence weights: %w", err)
	}
	return &w, nil
}

func randomSequenceWeights(hidden, in, out int) *SequenceWeights {
	rng := rand.New(rand.NewSource(1))
	fill := func(n int, scale float64) []float64 {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = rng.NormFloat64() * scale
		}
		return vals
	}
	return &SequenceWeights{
		HiddenSize: hidden,
		InSize:     in,
		OutSize:    out,
		Wx:         fill(hidden*in, 0.1/math.Sqrt(float64(in))),
		Wh:         fill(hidden*hidden, 0.1/math.Sqrt(float64(hidden))),
		Bh:         make([]float64, hidden),
		Wo:         fill(out*hidden, 0.1/math.Sqrt(float64(hidden))),
		Bo:         make([]float64, out),
	}
}

func newSequenceFromWeights(percept *config.PerceptionConfig, w *SequenceWeights) (*SequencePredictor, error) {
	if len(w.Wx) != w.HiddenSize*w.InSize || len(w.Wh) != w.HiddenSize*w.HiddenSize ||
		len(w.Bh) != w.HiddenSize || len(w.Wo) != w.OutSize*w.HiddenSize || len(w.Bo) != w.OutSize {
		return nil, fmt.Errorf("control: inconsistent sequence weight shapes")
	}
	return &SequencePredictor{
		percept:    percept,
		inSize:     w.InSize,
		hiddenSize: w.HiddenSize,
		wx:         mat.NewDense(w.HiddenSize, w.InSize, w.Wx),
		wh:         mat.NewDense(w.HiddenSize, w.HiddenSize, w.Wh),
		bh:         mat.NewVecDense(w.HiddenSize, w.Bh),
		wo:         mat.NewDense(w.OutSize, w.HiddenSize, w.Wo),
		bo:         mat.NewVecDense(w.OutSize, w.Bo),
	}, nil
}

// Predict implements Predictor.
func (p *SequencePredictor) Predict(req Request) (perception.Tensor, error) {
	if req.Current.Empty() {
		return perception.Tensor{}, fmt.Errorf("control: sequence predictor needs a current tensor")
	}

	frames := make([]perception.Tensor, 0, 2)
	if !req.Previous.Empty() {
		frames = append(frames, req.Previous)
	}
	frames = append(frames, req.Current)

	// Action components are normalized by max speed so the input scale does
	// not depend on world units.
	scale := req.Self.MaxSpeed
	if scale <= 0 {
		scale = 1
	}
	ax := req.Action.X / scale
	ay := req.Action.Y / scale

	h := mat.NewVecDense(p.hiddenSize, nil)
	for _, frame := range frames {
		flat := frame.Flatten()
		if len(flat)+2 != p.inSize {
			return perception.Tensor{}, fmt.Errorf("control: frame size %d does not match weights (in %d)", len(flat), p.inSize)
		}
		x := mat.NewVecDense(p.inSize, append(flat, ax, ay))

		var pre mat.VecDense
		pre.MulVec(p.wx, x)
		var rec mat.VecDense
		rec.MulVec(p.wh, h)
		pre.AddVec(&pre, &rec)
		pre.AddVec(&pre, p.bh)

		for i := 0; i < p.hiddenSize; i++ {
			h.SetVec(i, math.Tanh(pre.AtVec(i)))
		}
	}

	var out mat.VecDense
	out.MulVec(p.wo, h)
	out.AddVec(&out, p.bo)

	vals := make([]float64, out.Len())
	occEnd := p.percept.RadialBins * p.percept.AngularBins
	for i := range vals {
		v := out.AtVec(i)
		// Occupancy cannot be negative; the velocity channels can.
		if i < occEnd && v < 0 {
			v = 0
		}
		vals[i] = v
	}

	return perception.TensorFromSlice(p.percept.RadialBins, p.percept.AngularBins, vals)
}
