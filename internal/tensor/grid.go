// Package tensor provides the dense numeric containers used by the layer
// engine: 2D grids, batches of grids and flat vectors, together with the
// elementwise primitives (add, scale, flip, argmax) and the flatten/reshape
// conversions between them.
//
// All operations allocate their result unless documented as in-place.
// Grids are row-major: g[row][col].
package tensor

import "fmt"

// Grid is a dense two-dimensional array of real values.
type Grid [][]float64

// NewGrid returns a zero-filled grid with the given dimensions.
func NewGrid(rows, cols int) Grid {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("tensor.NewGrid: invalid dimensions %dx%d", rows, cols))
	}
	backing := make([]float64, rows*cols)
	g := make(Grid, rows)
	for r := range g {
		g[r] = backing[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return g
}

// GridFromSlice builds a rows x cols grid from row-major data.
// The data is copied.
func GridFromSlice(rows, cols int, data []float64) (Grid, error) {
	if rows*cols != len(data) {
		return nil, fmt.Errorf("%w: %dx%d grid requires %d values, got %d",
			ErrShapeMismatch, rows, cols, rows*cols, len(data))
	}
	g := NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		copy(g[r], data[r*cols:(r+1)*cols])
	}
	return g, nil
}

// Rows returns the number of rows.
func (g Grid) Rows() int {
	return len(g)
}

// Cols returns the number of columns (0 for an empty grid).
func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Shape returns [rows, cols].
func (g Grid) Shape() Shape {
	return Shape{g.Rows(), g.Cols()}
}

// Clone returns a deep copy of the grid.
func (g Grid) Clone() Grid {
	out := NewGrid(g.Rows(), g.Cols())
	for r := range g {
		copy(out[r], g[r])
	}
	return out
}

// Add returns g + other elementwise.
//
// Panics if the shapes differ.
func (g Grid) Add(other Grid) Grid {
	if !g.Shape().Equal(other.Shape()) {
		panic(fmt.Sprintf("tensor.Grid.Add: shape %v != %v", g.Shape(), other.Shape()))
	}
	out := NewGrid(g.Rows(), g.Cols())
	for r := range g {
		for c := range g[r] {
			out[r][c] = g[r][c] + other[r][c]
		}
	}
	return out
}

// Scale returns g * s elementwise.
func (g Grid) Scale(s float64) Grid {
	out := NewGrid(g.Rows(), g.Cols())
	for r := range g {
		for c := range g[r] {
			out[r][c] = g[r][c] * s
		}
	}
	return out
}

// Accumulate adds src into g in place over their overlapping top-left region.
// Cells of src outside g are dropped; cells of g outside src are untouched.
func (g Grid) Accumulate(src Grid) {
	rows := min(g.Rows(), src.Rows())
	cols := min(g.Cols(), src.Cols())
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g[r][c] += src[r][c]
		}
	}
}

// Crop returns a copy of the top-left rows x cols region of g.
//
// Panics if the region is larger than g.
func (g Grid) Crop(rows, cols int) Grid {
	if rows > g.Rows() || cols > g.Cols() {
		panic(fmt.Sprintf("tensor.Grid.Crop: %dx%d exceeds grid %v", rows, cols, g.Shape()))
	}
	out := NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		copy(out[r], g[r][:cols])
	}
	return out
}

// FlipRows mirrors the grid across its horizontal axis (row i -> rows-1-i).
func (g Grid) FlipRows() Grid {
	rows := g.Rows()
	out := NewGrid(rows, g.Cols())
	for r := range g {
		copy(out[rows-r-1], g[r])
	}
	return out
}

// FlipCols mirrors the grid across its vertical axis (col j -> cols-1-j).
func (g Grid) FlipCols() Grid {
	cols := g.Cols()
	out := NewGrid(g.Rows(), cols)
	for r := range g {
		for c := range g[r] {
			out[r][cols-c-1] = g[r][c]
		}
	}
	return out
}

// Rotate180 flips the grid along both axes.
func (g Grid) Rotate180() Grid {
	return g.FlipCols().FlipRows()
}

// Flatten returns the grid's values in row-major order.
func (g Grid) Flatten() Vector {
	out := make(Vector, 0, g.Rows()*g.Cols())
	for _, row := range g {
		out = append(out, row...)
	}
	return out
}
