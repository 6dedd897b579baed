package nn

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Linear is a fully connected layer followed by ReLU.
//
// Forward:
//
//	z[j] = Σ_i x[i] * W[i][j]
//	y[j] = ReLU(z[j])
//
// There is no bias term.
//
// Input shape: [in_features] (grids are flattened channel by channel)
// Output shape: [out_features]
// Weight shape: [in_features, out_features]
type Linear struct {
	inFeatures   int
	outFeatures  int
	learningRate float64

	weight tensor.Grid

	// Cache from the last Forward call.
	lastInput tensor.Vector
	lastZ     tensor.Vector
}

// NewLinear creates a fully connected layer with weights drawn from N(0, 1)
// using rng.
//
// Returns an error wrapping ErrInvalidConfig if a size is non-positive or
// rng is nil.
func NewLinear(inFeatures, outFeatures int, learningRate float64, rng *rand.Rand) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("%w: linear sizes %d -> %d must be positive",
			ErrInvalidConfig, inFeatures, outFeatures)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: linear needs a random source", ErrInvalidConfig)
	}
	return &Linear{
		inFeatures:   inFeatures,
		outFeatures:  outFeatures,
		learningRate: learningRate,
		weight:       Randn(inFeatures, outFeatures, rng),
	}, nil
}

// Forward computes ReLU(x · W).
func (l *Linear) Forward(input Activation) Activation {
	x := input.AsVector(l.inFeatures)

	z := tensor.NewVector(l.outFeatures)
	for i, xi := range x {
		row := l.weight[i]
		for j := range z {
			z[j] += xi * row[j]
		}
	}

	y := tensor.NewVector(l.outFeatures)
	for j, zj := range z {
		y[j] = ReLU(zj)
	}

	l.lastInput = x.Clone()
	l.lastZ = z
	return Flat(y)
}

// Backward propagates dL/dy and updates the weights in place.
//
// With d[j] = ReLUDerivative(z[j]):
//
//	dx[i]    = Σ_j g[j] * d[j] * W[i][j]
//	W[i][j] -= lr * g[j] * d[j] * x[i]
//
// Each weight is read for dx before it is updated.
func (l *Linear) Backward(grad Activation) Activation {
	if l.lastInput == nil {
		panic("Linear.Backward called before Forward")
	}
	g := grad.AsVector(l.outFeatures)

	delta := tensor.NewVector(l.outFeatures)
	for j := range delta {
		delta[j] = g[j] * ReLUDerivative(l.lastZ[j])
	}

	dx := tensor.NewVector(l.inFeatures)
	for i, xi := range l.lastInput {
		row := l.weight[i]
		for j, dj := range delta {
			dx[i] += dj * row[j]
			row[j] -= l.learningRate * dj * xi
		}
	}
	return Flat(dx)
}

// InputDims returns a flat [in_features].
func (l *Linear) InputDims() Dims { return FlatDims(l.inFeatures) }

// OutputDims returns a flat [out_features].
func (l *Linear) OutputDims() Dims { return FlatDims(l.outFeatures) }

// LearningRate returns the step size applied in Backward.
func (l *Linear) LearningRate() float64 { return l.learningRate }

// Weight returns a copy of the weight matrix.
func (l *Linear) Weight() tensor.Grid { return l.weight.Clone() }

// StateDict returns the weight matrix keyed "weight".
func (l *Linear) StateDict() map[string]tensor.Grid {
	return map[string]tensor.Grid{"weight": l.weight.Clone()}
}

// LoadStateDict replaces the weight matrix.
func (l *Linear) LoadStateDict(stateDict map[string]tensor.Grid) error {
	w, ok := stateDict["weight"]
	if !ok || len(stateDict) != 1 {
		return fmt.Errorf("%w: linear expects exactly \"weight\", got %d entries", ErrStateDict, len(stateDict))
	}
	want := tensor.Shape{l.inFeatures, l.outFeatures}
	if !w.Shape().Equal(want) {
		return fmt.Errorf("%w: weight has shape %v, want %v", ErrStateDict, w.Shape(), want)
	}
	l.weight = w.Clone()
	return nil
}

func (l *Linear) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Linear(in=%d, out=%d, lr=%g)", l.inFeatures, l.outFeatures, l.learningRate)
	if l.lastZ != nil {
		fmt.Fprintf(&sb, " last z=%.3f", []float64(l.lastZ))
	}
	return sb.String()
}
