package cpu

import (
	"fmt"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Correlate slides kernel over input with the given stride and returns the
// valid cross-correlation (no kernel flip, no padding).
//
// Input shape:  [H, W]
// Kernel shape: [K_h, K_w]
// Output shape: [H_out, W_out]
//
// Where:
//
//	H_out = (H - K_h) / stride + 1
//	W_out = (W - K_w) / stride + 1
//
// output[i][j] = Σ kernel[kh][kw] * input[i*stride+kh][j*stride+kw]
//
// Trailing input rows/cols that cannot host a full kernel placement are
// never visited.
func Correlate(input, kernel tensor.Grid, stride int) tensor.Grid {
	if stride <= 0 {
		panic(fmt.Sprintf("correlate: invalid stride %d", stride))
	}

	H, W := input.Rows(), input.Cols()
	KH, KW := kernel.Rows(), kernel.Cols()

	HOut := tensor.WindowCount(H, KH, stride)
	WOut := tensor.WindowCount(W, KW, stride)
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("correlate: kernel %dx%d does not fit input %dx%d", KH, KW, H, W))
	}

	output := tensor.NewGrid(HOut, WOut)
	for outH := 0; outH < HOut; outH++ {
		for outW := 0; outW < WOut; outW++ {
			output[outH][outW] = applyKernel(input, kernel, outH*stride, outW*stride)
		}
	}
	return output
}

// applyKernel returns Σ kernel[kh][kw] * input[top+kh][left+kw] over the
// cells that fall inside input. Cells outside contribute zero, which is
// what makes the same routine serve both valid and full correlation.
func applyKernel(input, kernel tensor.Grid, top, left int) float64 {
	H, W := input.Rows(), input.Cols()

	var sum float64
	for kh, kernelRow := range kernel {
		h := top + kh
		if h < 0 || h >= H {
			continue
		}
		inputRow := input[h]
		for kw, k := range kernelRow {
			w := left + kw
			if w < 0 || w >= W {
				continue
			}
			sum += k * inputRow[w]
		}
	}
	return sum
}
