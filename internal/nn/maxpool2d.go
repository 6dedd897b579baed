package nn

import (
	"fmt"

	"github.com/born-ml/lncnn/internal/backend/cpu"
	"github.com/born-ml/lncnn/internal/tensor"
)

// MaxPool2D applies max pooling to every channel independently.
//
// The comparison baseline is 0, not -Inf: a window with no positive value
// outputs 0 and records no position, so it routes no gradient back.
//
// Input shape: [C, H, W]
// Output shape: [C, H_out, W_out]
// where:
//
//	H_out = (H - window) / stride + 1
//	W_out = (W - window) / stride + 1
type MaxPool2D struct {
	window int
	stride int
	in     Dims
	out    Dims

	// Selected positions from the last Forward call, one per channel.
	lastIndices []cpu.PoolIndices
}

// NewMaxPool2D creates a max pooling layer.
//
// Returns an error wrapping ErrInvalidConfig if any size is non-positive or
// the window does not fit the input.
func NewMaxPool2D(stride, window, inChannels, inRows, inCols int) (*MaxPool2D, error) {
	if stride <= 0 || window <= 0 {
		return nil, fmt.Errorf("%w: pool stride %d, window %d must be positive",
			ErrInvalidConfig, stride, window)
	}
	if inChannels <= 0 || inRows <= 0 || inCols <= 0 {
		return nil, fmt.Errorf("%w: pool input [%d, %d, %d] must be positive",
			ErrInvalidConfig, inChannels, inRows, inCols)
	}
	outRows := tensor.WindowCount(inRows, window, stride)
	outCols := tensor.WindowCount(inCols, window, stride)
	if outRows < 1 || outCols < 1 {
		return nil, fmt.Errorf("%w: pool window %d does not fit input %dx%d",
			ErrInvalidConfig, window, inRows, inCols)
	}
	return &MaxPool2D{
		window: window,
		stride: stride,
		in:     GridDims(inChannels, inRows, inCols),
		out:    GridDims(inChannels, outRows, outCols),
	}, nil
}

// Forward pools every channel and records the selected positions.
func (m *MaxPool2D) Forward(input Activation) Activation {
	x := input.AsGrids(m.in)

	out := make(tensor.Batch, len(x))
	indices := make([]cpu.PoolIndices, len(x))
	for ch, grid := range x {
		out[ch], indices[ch] = cpu.MaxPool2D(grid, m.window, m.stride)
	}
	m.lastIndices = indices
	return Grids(out)
}

// Backward scatters each output gradient to the position that produced the
// maximum. Max pooling has no parameters to update.
func (m *MaxPool2D) Backward(grad Activation) Activation {
	if m.lastIndices == nil {
		panic("MaxPool2D.Backward called before Forward")
	}
	g := grad.AsGrids(m.out)

	inputGrad := make(tensor.Batch, len(g))
	for ch := range g {
		inputGrad[ch] = cpu.MaxPool2DBackward(g[ch], m.lastIndices[ch], m.in.Rows, m.in.Cols)
	}
	return Grids(inputGrad)
}

// InputDims returns [C, H, W].
func (m *MaxPool2D) InputDims() Dims { return m.in }

// OutputDims returns [C, H_out, W_out].
func (m *MaxPool2D) OutputDims() Dims { return m.out }

// Window returns the pooling window size.
func (m *MaxPool2D) Window() int { return m.window }

// Stride returns the pooling stride.
func (m *MaxPool2D) Stride() int { return m.stride }

// StateDict returns an empty map; max pooling has no parameters.
func (m *MaxPool2D) StateDict() map[string]tensor.Grid {
	return map[string]tensor.Grid{}
}

// LoadStateDict accepts only an empty state.
func (m *MaxPool2D) LoadStateDict(stateDict map[string]tensor.Grid) error {
	if len(stateDict) != 0 {
		return fmt.Errorf("%w: max pool has no parameters, got %d entries", ErrStateDict, len(stateDict))
	}
	return nil
}

func (m *MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2D(window=%d, stride=%d) %v -> %v", m.window, m.stride, m.in, m.out)
}
