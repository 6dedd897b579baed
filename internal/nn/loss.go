package nn

import (
	"fmt"

	"github.com/born-ml/lncnn/internal/tensor"
)

// OutputError returns dL/dOutput for the squared-error objective against a
// one-hot target: output - onehot(label).
//
// Panics if label is outside [0, len(output)).
func OutputError(output tensor.Vector, label int) tensor.Vector {
	if label < 0 || label >= len(output) {
		panic(fmt.Sprintf("OutputError: label %d out of range [0, %d)", label, len(output)))
	}
	return output.Sub(tensor.OneHot(len(output), label))
}

// SquaredError returns Σ (output - onehot(label))².
func SquaredError(output tensor.Vector, label int) float64 {
	return OutputError(output, label).SumSquares()
}
