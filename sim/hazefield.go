package sim

// hazeFieldCap keeps deposits from saturating a cell completely; precision
// attenuation stays strictly positive.
const hazeFieldCap = 0.95

// HazeField is a stigmergic grid of environmental haze. Agents deposit into
// the cell they occupy each tick and the whole field decays geometrically,
// so persistently crowded regions stay hazy after the crowd moves on.
type HazeField struct {
	cellSize float64
	cols     int
	rows     int
	decay    float64
	vals     []float64
}

// NewHazeField builds a zero field over the world with the given cell size
// and per-tick decay factor.
func NewHazeField(width, height, cellSize, decay float64) *HazeField {
	if cellSize <= 0 {
		cellSize = 20
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &HazeField{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		decay:    decay,
		vals:     make([]float64, cols*rows),
	}
}

func (f *HazeField) index(x, y float64) int {
	col := int(x / f.cellSize)
	row := int(y / f.cellSize)
	if col < 0 {
		col = 0
	} else if col >= f.cols {
		col = f.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= f.rows {
		row = f.rows - 1
	}
	return row*f.cols + col
}

// Sample returns the haze at the cell containing (x, y).
func (f *HazeField) Sample(x, y float64) float64 {
	return f.vals[f.index(x, y)]
}

// Deposit adds amount to the cell containing (x, y), capped below full
// saturation.
func (f *HazeField) Deposit(x, y, amount float64) {
	i := f.index(x, y)
	v := f.vals[i] + amount
	if v > hazeFieldCap {
		v = hazeFieldCap
	}
	f.vals[i] = v
}

// Step decays every cell by the configured factor.
func (f *HazeField) Step() {
	for i := range f.vals {
		f.vals[i] *= f.decay
	}
}

// Mean returns the average haze over all cells.
func (f *HazeField) Mean() float64 {
	if len(f.vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range f.vals {
		sum += v
	}
	return sum / float64(len(f.vals))
}
