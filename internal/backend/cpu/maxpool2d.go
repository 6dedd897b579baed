package cpu

import (
	"fmt"

	"github.com/born-ml/lncnn/internal/tensor"
)

// NoIndex marks a pooling window in which no element beat the zero
// baseline, so no input position was selected.
const NoIndex = -1

// PoolIndices records, for every pooled output cell, the absolute input
// coordinates of the selected maximum (NoIndex when none was selected).
type PoolIndices struct {
	Rows [][]int
	Cols [][]int
}

// At returns the recorded input coordinates for output cell (h, w).
func (p PoolIndices) At(h, w int) (row, col int) {
	return p.Rows[h][w], p.Cols[h][w]
}

func newPoolIndices(rows, cols int) PoolIndices {
	idx := PoolIndices{
		Rows: make([][]int, rows),
		Cols: make([][]int, rows),
	}
	for h := 0; h < rows; h++ {
		idx.Rows[h] = make([]int, cols)
		idx.Cols[h] = make([]int, cols)
	}
	return idx
}

// MaxPool2D takes the maximum of every window x window region of input,
// stepping by stride, and records where each maximum came from.
//
// Input shape:  [H, W]
// Output shape: [H_out, W_out]
//
// Where:
//
//	H_out = (H - window) / stride + 1
//	W_out = (W - window) / stride + 1
//
// The running maximum starts at 0 and is replaced only by strictly greater
// values. A window whose entries are all <= 0 therefore outputs 0 and
// records NoIndex; the first of several equal maxima wins.
func MaxPool2D(input tensor.Grid, window, stride int) (tensor.Grid, PoolIndices) {
	if window <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid window %d", window))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}

	H, W := input.Rows(), input.Cols()
	HOut := tensor.WindowCount(H, window, stride)
	WOut := tensor.WindowCount(W, window, stride)
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("maxpool2d: window %d does not fit input %dx%d", window, H, W))
	}

	output := tensor.NewGrid(HOut, WOut)
	indices := newPoolIndices(HOut, WOut)

	for outH := 0; outH < HOut; outH++ {
		for outW := 0; outW < WOut; outW++ {
			hStart := outH * stride
			wStart := outW * stride

			maxVal := 0.0
			maxRow, maxCol := NoIndex, NoIndex
			for h := hStart; h < hStart+window; h++ {
				for w := wStart; w < wStart+window; w++ {
					if input[h][w] > maxVal {
						maxVal = input[h][w]
						maxRow, maxCol = h, w
					}
				}
			}

			output[outH][outW] = maxVal
			indices.Rows[outH][outW] = maxRow
			indices.Cols[outH][outW] = maxCol
		}
	}

	return output, indices
}
