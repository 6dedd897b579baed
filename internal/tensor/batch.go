package tensor

import "fmt"

// Batch is an ordered list of equally sized grids (one per channel).
type Batch []Grid

// NewBatch returns channels zero-filled rows x cols grids.
func NewBatch(channels, rows, cols int) Batch {
	b := make(Batch, channels)
	for i := range b {
		b[i] = NewGrid(rows, cols)
	}
	return b
}

// Single wraps one grid as a one-channel batch.
func Single(g Grid) Batch {
	return Batch{g}
}

// Shape returns [channels, rows, cols]. The rows and cols of an empty
// batch are zero.
func (b Batch) Shape() Shape {
	if len(b) == 0 {
		return Shape{0, 0, 0}
	}
	return Shape{len(b), b[0].Rows(), b[0].Cols()}
}

// Clone returns a deep copy of the batch.
func (b Batch) Clone() Batch {
	out := make(Batch, len(b))
	for i, g := range b {
		out[i] = g.Clone()
	}
	return out
}

// Flatten concatenates every grid in row-major order, channel by channel.
func (b Batch) Flatten() Vector {
	shape := b.Shape()
	out := make(Vector, 0, shape.NumElements())
	for _, g := range b {
		for _, row := range g {
			out = append(out, row...)
		}
	}
	return out
}

// Reshape splits v into channels grids of rows x cols, the inverse of
// Batch.Flatten.
//
// Returns ErrShapeMismatch if len(v) != channels*rows*cols.
func Reshape(v Vector, channels, rows, cols int) (Batch, error) {
	if channels < 0 || rows < 0 || cols < 0 || len(v) != channels*rows*cols {
		return nil, fmt.Errorf("%w: cannot reshape %d values into [%d, %d, %d]",
			ErrShapeMismatch, len(v), channels, rows, cols)
	}
	out := make(Batch, channels)
	i := 0
	for ch := 0; ch < channels; ch++ {
		g := NewGrid(rows, cols)
		for r := 0; r < rows; r++ {
			copy(g[r], v[i:i+cols])
			i += cols
		}
		out[ch] = g
	}
	return out, nil
}
