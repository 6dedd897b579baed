package tensor

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when two operands or a reshape target
// disagree on dimensions.
var ErrShapeMismatch = errors.New("tensor: shape mismatch")

// Shape represents the dimensions of a grid ([rows, cols]),
// a batch of grids ([channels, rows, cols]) or a vector ([length]).
type Shape []int

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	if len(s) == 0 {
		return errors.New("empty shape")
	}
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// WindowCount returns how many placements of a window of the given size fit
// along a dimension of length n when stepping by stride.
//
//	count = (n - window) / stride + 1
//
// Integer division truncates: trailing cells that cannot hold a full window
// are never visited. The result is <= 0 when the window does not fit at all.
func WindowCount(n, window, stride int) int {
	if stride <= 0 || window > n {
		return 0
	}
	return (n-window)/stride + 1
}
