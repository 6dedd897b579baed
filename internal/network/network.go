// Package network chains layers into a digit classifier and drives
// inference and online training over labeled images.
package network

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/lncnn/internal/dataset"
	"github.com/born-ml/lncnn/internal/nn"
	"github.com/born-ml/lncnn/internal/tensor"
)

// Common errors.
var (
	ErrShapeMismatch = errors.New("network: layer shapes do not chain")
	ErrInputShape    = errors.New("network: image does not match input shape")
	ErrInvalidLabel  = errors.New("network: label outside output range")
	ErrInvalidConfig = errors.New("network: invalid configuration")
)

// Network is an ordered chain of layers plus the divisor applied to raw
// pixel intensities before they enter the chain.
//
// A Network is not safe for concurrent use: layers keep per-sample caches
// between Forward and Backward.
type Network struct {
	model         *nn.Sequential
	rows          int
	cols          int
	scalingFactor float64
}

// TrainStats summarizes one Train call.
type TrainStats struct {
	Samples int
	Correct int     // Samples classified correctly before their update
	Loss    float64 // Mean squared error before each update
}

// Accuracy returns Correct / Samples, or 0 for no samples.
func (s TrainStats) Accuracy() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Samples)
}

// New creates a network over rows x cols images from layers, in order.
//
// Returns an error wrapping ErrShapeMismatch if the head layer does not take
// a rows x cols image or if adjacent layers do not chain, and
// ErrInvalidConfig for a non-positive scaling factor or no layers.
func New(rows, cols int, scalingFactor float64, layers ...nn.Layer) (*Network, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d must be positive", ErrInvalidConfig, rows, cols)
	}
	if scalingFactor <= 0 {
		return nil, fmt.Errorf("%w: scaling factor %g must be positive", ErrInvalidConfig, scalingFactor)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidConfig)
	}
	if in := layers[0].InputDims(); in.Elements != rows*cols || (!in.IsFlat() && in.Channels != 1) {
		return nil, fmt.Errorf("%w: head layer expects %v, image is [1 %d %d]", ErrShapeMismatch, in, rows, cols)
	}

	model, err := nn.NewSequential(layers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	return &Network{
		model:         model,
		rows:          rows,
		cols:          cols,
		scalingFactor: scalingFactor,
	}, nil
}

// Rows returns the expected image height.
func (n *Network) Rows() int { return n.rows }

// Cols returns the expected image width.
func (n *Network) Cols() int { return n.cols }

// ScalingFactor returns the pixel divisor.
func (n *Network) ScalingFactor() float64 { return n.scalingFactor }

// NumOutputs returns the length of the confidence vector.
func (n *Network) NumOutputs() int { return n.model.OutputDims().Elements }

// Len returns the number of layers.
func (n *Network) Len() int { return n.model.Len() }

// Layer returns the layer at index.
func (n *Network) Layer(index int) nn.Layer { return n.model.Layer(index) }

// Predict returns the confidence vector for an image.
func (n *Network) Predict(pixels tensor.Grid) (tensor.Vector, error) {
	if err := n.checkImage(pixels); err != nil {
		return nil, err
	}
	return n.forward(pixels), nil
}

// Classify returns the predicted class of an image: the index of the
// largest confidence, the first one on ties.
func (n *Network) Classify(pixels tensor.Grid) (int, error) {
	out, err := n.Predict(pixels)
	if err != nil {
		return 0, err
	}
	return out.ArgMax(), nil
}

// Evaluate returns the fraction of images classified correctly, or 0 for
// no images. Every image is checked before any is classified.
func (n *Network) Evaluate(images []dataset.Image) (float64, error) {
	if len(images) == 0 {
		return 0, nil
	}
	if err := n.checkImages(images); err != nil {
		return 0, err
	}

	correct := 0
	for _, img := range images {
		if n.forward(img.Pixels).ArgMax() == img.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(images)), nil
}

// Train runs one forward and backward pass per image, in order, updating
// the parameters after each image. Every image is checked before training
// starts, so a bad batch leaves the network untouched.
func (n *Network) Train(images []dataset.Image) (TrainStats, error) {
	if err := n.checkImages(images); err != nil {
		return TrainStats{}, err
	}

	stats := TrainStats{Samples: len(images)}
	var lossSum float64
	for _, img := range images {
		loss, correct := n.trainSample(img)
		lossSum += loss
		if correct {
			stats.Correct++
		}
	}
	if stats.Samples > 0 {
		stats.Loss = lossSum / float64(stats.Samples)
	}
	return stats, nil
}

func (n *Network) trainSample(img dataset.Image) (loss float64, correct bool) {
	out := n.forward(img.Pixels)
	grad := nn.OutputError(out, img.Label)
	n.model.Backward(nn.Flat(grad))
	return grad.SumSquares(), out.ArgMax() == img.Label
}

func (n *Network) forward(pixels tensor.Grid) tensor.Vector {
	scaled := pixels.Scale(1 / n.scalingFactor)
	return n.model.Forward(nn.Grids(tensor.Single(scaled))).Vector()
}

func (n *Network) checkImage(pixels tensor.Grid) error {
	if pixels.Rows() != n.rows || pixels.Cols() != n.cols {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrInputShape, pixels.Rows(), pixels.Cols(), n.rows, n.cols)
	}
	for r, row := range pixels {
		if len(row) != n.cols {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrInputShape, r, len(row), n.cols)
		}
	}
	return nil
}

func (n *Network) checkImages(images []dataset.Image) error {
	outputs := n.NumOutputs()
	for i, img := range images {
		if err := n.checkImage(img.Pixels); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
		if img.Label < 0 || img.Label >= outputs {
			return fmt.Errorf("image %d: %w: label %d, outputs %d", i, ErrInvalidLabel, img.Label, outputs)
		}
	}
	return nil
}

// String prints the input shape, the scaling factor and every layer.
func (n *Network) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Network(input=[1 %d %d], scaling=%g, layers=%d)\n", n.rows, n.cols, n.scalingFactor, n.model.Len())
	sb.WriteString(n.model.String())
	return sb.String()
}
