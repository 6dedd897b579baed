package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Sequential chains layers: each layer's output is the next layer's input,
// and gradients flow through the same layers in reverse.
//
// Neighbours are adjacent indices. A one-layer chain has no neighbours, so
// Forward and Backward stop at that layer.
//
// Example:
//
//	model, err := nn.NewSequential(conv, pool, linear)
//	out := model.Forward(nn.Grids(tensor.Single(image)))
//	model.Backward(nn.Flat(nn.OutputError(out.Vector(), label)))
type Sequential struct {
	layers []Layer
}

// NewSequential creates a chain from layers, in order.
//
// Returns an error wrapping ErrShapeMismatch if a layer's output element
// count differs from the next layer's input element count, and
// ErrInvalidConfig if no layers are given.
func NewSequential(layers ...Layer) (*Sequential, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: sequential needs at least one layer", ErrInvalidConfig)
	}
	for i := 1; i < len(layers); i++ {
		prev, next := layers[i-1].OutputDims(), layers[i].InputDims()
		if prev.Elements != next.Elements {
			return nil, fmt.Errorf("%w: layer %d outputs %v (%d values) but layer %d expects %v (%d values)",
				ErrShapeMismatch, i-1, prev, prev.Elements, i, next, next.Elements)
		}
	}
	return &Sequential{layers: layers}, nil
}

// Forward applies every layer from head to tail.
func (s *Sequential) Forward(input Activation) Activation {
	output := input
	for _, layer := range s.layers {
		output = layer.Forward(output)
	}
	return output
}

// Backward propagates grad from tail to head, updating every layer, and
// returns the gradient with respect to the chain's input.
func (s *Sequential) Backward(grad Activation) Activation {
	for i := len(s.layers) - 1; i >= 0; i-- {
		grad = s.layers[i].Backward(grad)
	}
	return grad
}

// InputDims returns the head layer's input dims.
func (s *Sequential) InputDims() Dims { return s.layers[0].InputDims() }

// OutputDims returns the tail layer's output dims.
func (s *Sequential) OutputDims() Dims { return s.layers[len(s.layers)-1].OutputDims() }

// Len returns the number of layers.
func (s *Sequential) Len() int {
	return len(s.layers)
}

// Layer returns the layer at index.
//
// Panics if index is out of bounds.
func (s *Sequential) Layer(index int) Layer {
	if index < 0 || index >= len(s.layers) {
		panic("Sequential.Layer: index out of bounds")
	}
	return s.layers[index]
}

// StateDict returns every layer's parameters, prefixed with the layer index
// ("0.filter.0", "2.weight", ...).
func (s *Sequential) StateDict() map[string]tensor.Grid {
	stateDict := make(map[string]tensor.Grid)
	for i, layer := range s.layers {
		for name, g := range layer.StateDict() {
			stateDict[fmt.Sprintf("%d.%s", i, name)] = g
		}
	}
	return stateDict
}

// LoadStateDict loads parameters saved by StateDict. Every layer receives
// its prefixed entries; keys that match no layer are an error.
func (s *Sequential) LoadStateDict(stateDict map[string]tensor.Grid) error {
	used := 0
	for i, layer := range s.layers {
		prefix := fmt.Sprintf("%d.", i)
		layerState := make(map[string]tensor.Grid)
		for key, g := range stateDict {
			if name, ok := strings.CutPrefix(key, prefix); ok && name != "" {
				layerState[name] = g
			}
		}
		if err := layer.LoadStateDict(layerState); err != nil {
			return fmt.Errorf("failed to load layer %d: %w", i, err)
		}
		used += len(layerState)
	}
	if used != len(stateDict) {
		return fmt.Errorf("%w: %d entries match no layer", ErrStateDict, len(stateDict)-used)
	}
	return nil
}

// String lists the layers, one per line.
func (s *Sequential) String() string {
	var sb strings.Builder
	for i, layer := range s.layers {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%d] %s", i, layer)
	}
	return sb.String()
}
