package nn

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/born-ml/lncnn/internal/backend/cpu"
	"github.com/born-ml/lncnn/internal/parallel"
	"github.com/born-ml/lncnn/internal/tensor"
)

// Conv2D is a 2D convolution layer with square learned filters.
//
// Every filter is applied to every input channel independently: there is no
// summation across channels, so C inputs and F filters produce C*F output
// grids. Output i*F+f is input i correlated with filter f.
//
// Input shape: [C, H, W]
// Output shape: [C*F, H_out, W_out]
// where:
//
//	H_out = (H - K) / stride + 1
//	W_out = (W - K) / stride + 1
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	conv, err := nn.NewConv2D(5, 1, 8, 1, 28, 28, 0.01, rng)
//	out := conv.Forward(nn.Grids(tensor.Single(image))) // [8, 24, 24]
type Conv2D struct {
	filterSize   int
	stride       int
	learningRate float64
	in           Dims
	out          Dims

	filters  []tensor.Grid
	parallel parallel.Config

	// Cache from the last Forward call.
	lastInput tensor.Batch
}

// NewConv2D creates a convolution layer with numFilters filters of
// filterSize x filterSize, drawn from N(0, 1) using rng.
//
// Returns an error wrapping ErrInvalidConfig if any size is non-positive, if
// the filter does not fit the input, or if rng is nil.
func NewConv2D(
	filterSize, stride, numFilters int,
	inChannels, inRows, inCols int,
	learningRate float64,
	rng *rand.Rand,
) (*Conv2D, error) {
	if filterSize <= 0 || stride <= 0 || numFilters <= 0 {
		return nil, fmt.Errorf("%w: conv filter size %d, stride %d, filters %d must be positive",
			ErrInvalidConfig, filterSize, stride, numFilters)
	}
	if inChannels <= 0 || inRows <= 0 || inCols <= 0 {
		return nil, fmt.Errorf("%w: conv input [%d, %d, %d] must be positive",
			ErrInvalidConfig, inChannels, inRows, inCols)
	}
	outRows := tensor.WindowCount(inRows, filterSize, stride)
	outCols := tensor.WindowCount(inCols, filterSize, stride)
	if outRows < 1 || outCols < 1 {
		return nil, fmt.Errorf("%w: conv filter %d does not fit input %dx%d",
			ErrInvalidConfig, filterSize, inRows, inCols)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: conv needs a random source", ErrInvalidConfig)
	}

	filters := make([]tensor.Grid, numFilters)
	for f := range filters {
		filters[f] = Randn(filterSize, filterSize, rng)
	}

	return &Conv2D{
		filterSize:   filterSize,
		stride:       stride,
		learningRate: learningRate,
		in:           GridDims(inChannels, inRows, inCols),
		out:          GridDims(inChannels*numFilters, outRows, outCols),
		filters:      filters,
		parallel:     parallel.DefaultConfig(),
	}, nil
}

// Forward correlates every input channel with every filter.
func (c *Conv2D) Forward(input Activation) Activation {
	x := input.AsGrids(c.in)
	c.lastInput = x.Clone()

	numFilters := len(c.filters)
	out := make(tensor.Batch, c.out.Channels)
	parallel.ForPairs(len(x), numFilters, func(i, f int) {
		out[i*numFilters+f] = cpu.Correlate(x[i], c.filters[f], c.stride)
	}, c.parallel)
	return Grids(out)
}

// Backward routes the gradient to the input and updates the filters.
//
// For output gradient G[i*F+f] dilated by the stride into D:
//
//	dFilter[f] = Σ_i Correlate(X[i], D, 1)  cropped to K x K
//	dX[i]      = Σ_f FullCorrelate(D, Rotate180(filter[f]))
//
// Input gradients use the filters as they were during Forward; the update
// filter[f] -= lr * dFilter[f] is applied afterwards.
func (c *Conv2D) Backward(grad Activation) Activation {
	if c.lastInput == nil {
		panic("Conv2D.Backward called before Forward")
	}
	g := grad.AsGrids(c.out)
	numFilters := len(c.filters)

	rotated := make([]tensor.Grid, numFilters)
	for f, filter := range c.filters {
		rotated[f] = filter.Rotate180()
	}

	updates := make([]tensor.Grid, numFilters)
	for f := range updates {
		updates[f] = tensor.NewGrid(c.filterSize, c.filterSize)
	}

	dilated := make(tensor.Batch, len(g))
	parallel.For(len(g), func(k int) {
		dilated[k] = cpu.Dilate(g[k], c.stride)
	}, c.parallel)

	// Each worker owns one filter update or one input gradient, so sums are
	// accumulated in the same order as a sequential run.
	parallel.For(numFilters, func(f int) {
		for i, x := range c.lastInput {
			filterGrad := cpu.Correlate(x, dilated[i*numFilters+f], 1).Crop(c.filterSize, c.filterSize)
			updates[f].Accumulate(filterGrad.Scale(-c.learningRate))
		}
	}, c.parallel)

	inputGrad := tensor.NewBatch(c.in.Channels, c.in.Rows, c.in.Cols)
	parallel.For(len(c.lastInput), func(i int) {
		for f := 0; f < numFilters; f++ {
			// Cells past the last window receive no gradient and stay zero.
			inputGrad[i].Accumulate(cpu.FullCorrelate(dilated[i*numFilters+f], rotated[f]))
		}
	}, c.parallel)

	for f := range c.filters {
		c.filters[f].Accumulate(updates[f])
	}
	return Grids(inputGrad)
}

// InputDims returns [C, H, W].
func (c *Conv2D) InputDims() Dims { return c.in }

// OutputDims returns [C*F, H_out, W_out].
func (c *Conv2D) OutputDims() Dims { return c.out }

// FilterSize returns K.
func (c *Conv2D) FilterSize() int { return c.filterSize }

// Stride returns the convolution stride.
func (c *Conv2D) Stride() int { return c.stride }

// NumFilters returns F.
func (c *Conv2D) NumFilters() int { return len(c.filters) }

// LearningRate returns the step size applied in Backward.
func (c *Conv2D) LearningRate() float64 { return c.learningRate }

// Filters returns copies of the current filters.
func (c *Conv2D) Filters() []tensor.Grid {
	out := make([]tensor.Grid, len(c.filters))
	for f, filter := range c.filters {
		out[f] = filter.Clone()
	}
	return out
}

// StateDict returns the filters keyed "filter.0", "filter.1", ...
func (c *Conv2D) StateDict() map[string]tensor.Grid {
	state := make(map[string]tensor.Grid, len(c.filters))
	for f, filter := range c.filters {
		state[filterKey(f)] = filter.Clone()
	}
	return state
}

// LoadStateDict replaces every filter. All keys must be present with
// K x K shapes.
func (c *Conv2D) LoadStateDict(stateDict map[string]tensor.Grid) error {
	if len(stateDict) != len(c.filters) {
		return fmt.Errorf("%w: conv has %d filters, got %d entries",
			ErrStateDict, len(c.filters), len(stateDict))
	}
	want := tensor.Shape{c.filterSize, c.filterSize}
	loaded := make([]tensor.Grid, len(c.filters))
	for f := range c.filters {
		key := filterKey(f)
		g, ok := stateDict[key]
		if !ok {
			return fmt.Errorf("%w: missing %q", ErrStateDict, key)
		}
		if !g.Shape().Equal(want) {
			return fmt.Errorf("%w: %q has shape %v, want %v", ErrStateDict, key, g.Shape(), want)
		}
		loaded[f] = g.Clone()
	}
	c.filters = loaded
	return nil
}

// String describes the layer and its filters.
func (c *Conv2D) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Conv2D(filters=%d, size=%d, stride=%d, lr=%g) %v -> %v",
		len(c.filters), c.filterSize, c.stride, c.learningRate, c.in, c.out)
	for f, filter := range c.filters {
		fmt.Fprintf(&sb, "\n  filter %d:", f)
		for _, row := range filter {
			sb.WriteString("\n   ")
			for _, v := range row {
				fmt.Fprintf(&sb, " %7.3f", v)
			}
		}
	}
	return sb.String()
}

func filterKey(f int) string {
	return "filter." + strconv.Itoa(f)
}
