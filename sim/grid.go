package sim

import "github.com/pthm-cable/haze/geom"

// Neighbor holds a nearby snapshot index with precomputed spatial data.
// This avoids recomputing the toroidal delta and distance downstream.
type Neighbor struct {
	Idx    int
	DX, DY float64 // Toroidal delta from query origin
	DistSq float64 // Squared distance (avoid sqrt in hot path)
}

// gridEntry is one inserted point, identified by its snapshot index.
type gridEntry struct {
	idx  int
	x, y float64
}

// SpatialGrid provides O(1) neighbor lookups using a cell-based grid over
// snapshot indices. It is rebuilt every tick and read-only during the
// parallel decision phase.
type SpatialGrid struct {
	cellSize float64
	cols     int
	rows     int
	width    float64
	height   float64
	cells    [][]gridEntry
}

// NewSpatialGrid creates a spatial grid covering the given world size.
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	cells := make([][]gridEntry, cols*rows)
	for i := range cells {
		cells[i] = make([]gridEntry, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		width:    width,
		height:   height,
		cells:    cells,
	}
}

// Clear removes all entries from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds a snapshot index at the given position.
func (g *SpatialGrid) Insert(idx int, x, y float64) {
	cell := g.cellIndex(x, y)
	if cell >= 0 && cell < len(g.cells) {
		g.cells[cell] = append(g.cells[cell], gridEntry{idx: idx, x: x, y: y})
	}
}

// MaxQueryResults caps the number of neighbors returned by spatial queries.
// This prevents density spikes from causing unbounded work.
const MaxQueryResults = 128

// QueryRadiusInto finds entries within radius and appends to dst (up to
// MaxQueryResults). Returns the updated slice. Reuse dst across calls to
// avoid allocations.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, x, y, radius float64, exclude int) []Neighbor {
	cellRadius := int(radius/g.cellSize) + 1

	centerCol := int(x / g.cellSize)
	centerRow := int(y / g.cellSize)

	radiusSq := radius * radius

	for dc := -cellRadius; dc <= cellRadius; dc++ {
		for dr := -cellRadius; dr <= cellRadius; dr++ {
			// Toroidal wrap
			col := ((centerCol+dc)%g.cols + g.cols) % g.cols
			row := ((centerRow+dr)%g.rows + g.rows) % g.rows
			idx := row*g.cols + col

			for _, e := range g.cells[idx] {
				if e.idx == exclude {
					continue
				}

				d := geom.Delta(geom.Vec{X: x, Y: y}, geom.Vec{X: e.x, Y: e.y}, g.width, g.height)
				distSq := d.NormSq()

				if distSq <= radiusSq {
					dst = append(dst, Neighbor{Idx: e.idx, DX: d.X, DY: d.Y, DistSq: distSq})
					// Early exit if we hit the cap
					if len(dst) >= MaxQueryResults {
						return dst
					}
				}
			}
		}
	}

	return dst
}

// cellIndex returns the flat index for a world position.
func (g *SpatialGrid) cellIndex(x, y float64) int {
	col := int(x / g.cellSize)
	row := int(y / g.cellSize)

	// Clamp to valid range
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}

	return row*g.cols + col
}
