package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Vector is a flat sequence of real values.
type Vector []float64

// NewVector returns a zero-filled vector of length n.
func NewVector(n int) Vector {
	return make(Vector, n)
}

// OneHot returns a vector of length n with a single 1 at index hot.
//
// Panics if hot is outside [0, n).
func OneHot(n, hot int) Vector {
	if hot < 0 || hot >= n {
		panic(fmt.Sprintf("tensor.OneHot: index %d out of range [0, %d)", hot, n))
	}
	v := NewVector(n)
	v[hot] = 1
	return v
}

// Clone returns a copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Add returns v + other elementwise.
//
// Panics if the lengths differ.
func (v Vector) Add(other Vector) Vector {
	if len(v) != len(other) {
		panic(fmt.Sprintf("tensor.Vector.Add: length %d != %d", len(v), len(other)))
	}
	return floats.AddTo(make(Vector, len(v)), v, other)
}

// Sub returns v - other elementwise.
//
// Panics if the lengths differ.
func (v Vector) Sub(other Vector) Vector {
	if len(v) != len(other) {
		panic(fmt.Sprintf("tensor.Vector.Sub: length %d != %d", len(v), len(other)))
	}
	return floats.SubTo(make(Vector, len(v)), v, other)
}

// Scale returns v * s elementwise.
func (v Vector) Scale(s float64) Vector {
	return floats.ScaleTo(make(Vector, len(v)), s, v)
}

// SumSquares returns Σ v[i]².
func (v Vector) SumSquares() float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Dot(v, v)
}

// ArgMax returns the index of the largest element. Ties resolve to the
// first occurrence. Returns -1 for an empty vector.
func (v Vector) ArgMax() int {
	if len(v) == 0 {
		return -1
	}
	return floats.MaxIdx(v)
}

// Shape returns [len(v)].
func (v Vector) Shape() Shape {
	return Shape{len(v)}
}
