// Package nn implements the layers of the digit classifier and the
// container that chains them.
//
// This package provides:
//   - Layer interface: forward evaluation, backward propagation and shape
//     introspection shared by every layer
//   - Activation: the value flowing between layers (a batch of grids or a
//     flat vector)
//   - Conv2D: strided convolution with learned square filters
//   - MaxPool2D: window maximum with argmax bookkeeping
//   - Linear: fully connected layer with ReLU activation
//   - Sequential: ordered chain of layers
//
// Layers learn online: each Backward call applies its parameter update
// immediately, using the activation cache left by the preceding Forward
// call. Layers are not safe for concurrent use.
package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("nn: invalid layer configuration")
	ErrShapeMismatch = errors.New("nn: layer shapes do not chain")
	ErrStateDict     = errors.New("nn: invalid state dict")
)

// Layer is the interface implemented by every layer of the network.
//
// Layers accept either shape of Activation. Grid-shaped layers reshape a
// flat vector into their declared [channels, rows, cols] input; the fully
// connected layer flattens grids. A reshape that does not fit is a
// configuration defect and panics.
type Layer interface {
	// Forward evaluates the layer and caches what Backward will need.
	Forward(input Activation) Activation

	// Backward takes dL/dOutput, updates the layer's parameters and returns
	// dL/dInput. It must follow a Forward call on the same sample.
	Backward(grad Activation) Activation

	// InputDims describes the input the layer was built for.
	InputDims() Dims

	// OutputDims describes the output the layer produces.
	OutputDims() Dims

	// StateDict returns the learned parameters by name. The grids are
	// copies.
	StateDict() map[string]tensor.Grid

	// LoadStateDict replaces the learned parameters.
	LoadStateDict(stateDict map[string]tensor.Grid) error

	fmt.Stringer
}

// Dims is the shape descriptor a layer reports to its neighbours.
//
// Flat layers report zero Channels, Rows and Cols; only Elements is
// meaningful for them.
type Dims struct {
	Channels int
	Rows     int
	Cols     int
	Elements int
}

// GridDims describes a batch of channels grids of rows x cols.
func GridDims(channels, rows, cols int) Dims {
	return Dims{Channels: channels, Rows: rows, Cols: cols, Elements: channels * rows * cols}
}

// FlatDims describes a flat vector of n elements.
func FlatDims(n int) Dims {
	return Dims{Elements: n}
}

// IsFlat reports whether the dims describe a flat vector.
func (d Dims) IsFlat() bool {
	return d.Channels == 0 && d.Rows == 0 && d.Cols == 0
}

// Shape returns [channels, rows, cols] for grid dims and [elements] for
// flat dims.
func (d Dims) Shape() tensor.Shape {
	if d.IsFlat() {
		return tensor.Shape{d.Elements}
	}
	return tensor.Shape{d.Channels, d.Rows, d.Cols}
}

// String formats the dims as a shape.
func (d Dims) String() string {
	return fmt.Sprint([]int(d.Shape()))
}

// Activation is the value passed between layers: either a batch of grids or
// a flat vector.
type Activation struct {
	grids  tensor.Batch
	vector tensor.Vector
	flat   bool
}

// Grids wraps a batch of grids.
func Grids(b tensor.Batch) Activation {
	return Activation{grids: b}
}

// Flat wraps a flat vector.
func Flat(v tensor.Vector) Activation {
	return Activation{vector: v, flat: true}
}

// IsFlat reports whether the activation holds a vector.
func (a Activation) IsFlat() bool {
	return a.flat
}

// Batch returns the grids, or nil when the activation is flat.
func (a Activation) Batch() tensor.Batch {
	return a.grids
}

// Vector returns the values as a flat vector, flattening grids in
// channel-major, row-major order.
func (a Activation) Vector() tensor.Vector {
	if a.flat {
		return a.vector
	}
	return a.grids.Flatten()
}

// Len returns the number of values held.
func (a Activation) Len() int {
	if a.flat {
		return len(a.vector)
	}
	return a.grids.Shape().NumElements()
}

// AsGrids returns the activation as a batch with the given dims. A flat
// vector, or grids of another [C, H, W] holding the same number of values,
// is reshaped in channel-major, row-major order.
//
// Panics with tensor.ErrShapeMismatch if the values do not fit dims.
func (a Activation) AsGrids(d Dims) tensor.Batch {
	if !a.flat && a.grids.Shape().Equal(tensor.Shape{d.Channels, d.Rows, d.Cols}) {
		return a.grids
	}
	b, err := tensor.Reshape(a.Vector(), d.Channels, d.Rows, d.Cols)
	if err != nil {
		panic(err)
	}
	return b
}

// AsVector returns the activation flattened, checking its length.
//
// Panics with tensor.ErrShapeMismatch if the length differs from n.
func (a Activation) AsVector(n int) tensor.Vector {
	v := a.Vector()
	if len(v) != n {
		panic(fmt.Errorf("%w: got %d values, want %d", tensor.ErrShapeMismatch, len(v), n))
	}
	return v
}
