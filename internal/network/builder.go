package network

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/lncnn/internal/nn"
)

// Builder assembles a network stage by stage. Each stage's input shape is
// the previous stage's output shape; the first stage takes one
// rows x cols channel.
//
// The first error is kept and returned by Build; later stages are ignored.
//
// Example:
//
//	net, err := network.NewBuilder(28, 28, 255, 1).
//	    AddConvolution(8, 5, 1, 0.1).
//	    AddMaxPool(2, 2).
//	    AddFullyConnected(10, 0.1).
//	    Build()
type Builder struct {
	rows          int
	cols          int
	scalingFactor float64
	rng           *rand.Rand
	layers        []nn.Layer
	err           error
}

// NewBuilder starts a network over rows x cols images. Parameters are drawn
// from a source seeded with seed, so equal seeds build equal networks.
func NewBuilder(rows, cols int, scalingFactor float64, seed int64) *Builder {
	return &Builder{
		rows:          rows,
		cols:          cols,
		scalingFactor: scalingFactor,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// AddConvolution appends a convolution stage.
func (b *Builder) AddConvolution(numFilters, filterSize, stride int, learningRate float64) *Builder {
	if b.err != nil {
		return b
	}
	in, err := b.gridInput("convolution")
	if err != nil {
		b.err = err
		return b
	}
	conv, err := nn.NewConv2D(filterSize, stride, numFilters, in.Channels, in.Rows, in.Cols, learningRate, b.rng)
	return b.add(conv, err)
}

// AddMaxPool appends a max pooling stage.
func (b *Builder) AddMaxPool(window, stride int) *Builder {
	if b.err != nil {
		return b
	}
	in, err := b.gridInput("max pool")
	if err != nil {
		b.err = err
		return b
	}
	pool, err := nn.NewMaxPool2D(stride, window, in.Channels, in.Rows, in.Cols)
	return b.add(pool, err)
}

// AddFullyConnected appends a fully connected stage with outputs units.
func (b *Builder) AddFullyConnected(outputs int, learningRate float64) *Builder {
	if b.err != nil {
		return b
	}
	inputs := b.rows * b.cols
	if len(b.layers) > 0 {
		inputs = b.layers[len(b.layers)-1].OutputDims().Elements
	}
	linear, err := nn.NewLinear(inputs, outputs, learningRate, b.rng)
	return b.add(linear, err)
}

// Build returns the network, or the first error any stage reported.
func (b *Builder) Build() (*Network, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(b.rows, b.cols, b.scalingFactor, b.layers...)
}

func (b *Builder) add(layer nn.Layer, err error) *Builder {
	if err != nil {
		b.err = fmt.Errorf("stage %d: %w", len(b.layers), err)
		return b
	}
	b.layers = append(b.layers, layer)
	return b
}

func (b *Builder) gridInput(stage string) (nn.Dims, error) {
	if len(b.layers) == 0 {
		return nn.GridDims(1, b.rows, b.cols), nil
	}
	prev := b.layers[len(b.layers)-1].OutputDims()
	if prev.IsFlat() {
		return nn.Dims{}, fmt.Errorf("stage %d: %w: %s cannot follow a flat %v output",
			len(b.layers), ErrShapeMismatch, stage, prev)
	}
	return prev, nil
}
