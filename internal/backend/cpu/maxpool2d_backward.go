package cpu

import (
	"fmt"

	"github.com/born-ml/lncnn/internal/tensor"
)

// MaxPool2DBackward routes a pooled gradient back to the input positions
// recorded by MaxPool2D.
//
// Gradient shape: [H_out, W_out] (same as the pooled output)
// Result shape:   [inputRows, inputCols]
//
// Positions selected by more than one window (overlapping pooling)
// accumulate their gradients. Windows recorded as NoIndex route nothing.
func MaxPool2DBackward(grad tensor.Grid, indices PoolIndices, inputRows, inputCols int) tensor.Grid {
	if grad.Rows() != len(indices.Rows) || (grad.Rows() > 0 && grad.Cols() != len(indices.Rows[0])) {
		panic(fmt.Sprintf("maxpool2d backward: gradient %v does not match recorded indices", grad.Shape()))
	}

	inputGrad := tensor.NewGrid(inputRows, inputCols)
	for outH, row := range grad {
		for outW, g := range row {
			h, w := indices.At(outH, outW)
			if h == NoIndex || w == NoIndex {
				continue
			}
			inputGrad[h][w] += g
		}
	}
	return inputGrad
}
