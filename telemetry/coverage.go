package telemetry

// Coverage tracks which world cells have ever been visited, as a cheap
// exploration metric for goalless runs.
type Coverage struct {
	cellSize float64
	cols     int
	rows     int
	visited  []bool
	count    int
}

// NewCoverage builds a visit grid over the world with the given cell size.
func NewCoverage(width, height, cellSize float64) *Coverage {
	if cellSize <= 0 {
		cellSize = 20
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &Coverage{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		visited:  make([]bool, cols*rows),
	}
}

// Visit marks the cell containing (x, y).
func (c *Coverage) Visit(x, y float64) {
	col := int(x / c.cellSize)
	row := int(y / c.cellSize)
	if col < 0 || col >= c.cols || row < 0 || row >= c.rows {
		return
	}
	idx := row*c.cols + col
	if !c.visited[idx] {
		c.visited[idx] = true
		c.count++
	}
}

// Fraction returns the visited share of all cells in [0, 1].
func (c *Coverage) Fraction() float64 {
	if len(c.visited) == 0 {
		return 0
	}
	return float64(c.count) / float64(len(c.visited))
}

// Reset clears all visits.
func (c *Coverage) Reset() {
	for i := range c.visited {
		c.visited[i] = false
	}
	c.count = 0
}
