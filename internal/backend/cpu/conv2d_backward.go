package cpu

import (
	"fmt"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Dilate spaces a gradient grid out by inserting stride-1 zero rows and
// columns between neighbouring entries, so that a gradient computed at a
// sub-sampled resolution lines up with the unstrided input.
//
// Input shape:  [H, W]
// Output shape: [(H-1)*stride + 1, (W-1)*stride + 1]
//
// With stride 1 the grid is returned unchanged (same backing storage).
func Dilate(grad tensor.Grid, stride int) tensor.Grid {
	if stride <= 0 {
		panic(fmt.Sprintf("dilate: invalid stride %d", stride))
	}
	if stride == 1 || grad.Rows() == 0 {
		return grad
	}

	H, W := grad.Rows(), grad.Cols()
	output := tensor.NewGrid((H-1)*stride+1, (W-1)*stride+1)
	for h := 0; h < H; h++ {
		for w := 0; w < W; w++ {
			output[h*stride][w*stride] = grad[h][w]
		}
	}
	return output
}

// FullCorrelate cross-correlates kernel over input at every placement where
// the two overlap by at least one cell. Kernel cells that hang over the
// input boundary read implicit zeros.
//
// Input shape:  [H, W]
// Kernel shape: [K_h, K_w]
// Output shape: [H + K_h - 1, W + K_w - 1]
//
// output[i][j] = Σ kernel[kh][kw] * input[i-(K_h-1)+kh][j-(K_w-1)+kw]
//
// Called with a 180°-rotated filter this is the transposed (full)
// convolution that routes output gradients back to a convolution's input:
//
//	dX[i][j] = Σ dY[i-kh][j-kw] * filter[kh][kw]
func FullCorrelate(input, kernel tensor.Grid) tensor.Grid {
	H, W := input.Rows(), input.Cols()
	KH, KW := kernel.Rows(), kernel.Cols()
	if H == 0 || W == 0 || KH == 0 || KW == 0 {
		panic(fmt.Sprintf("full correlate: empty operand input=%dx%d kernel=%dx%d", H, W, KH, KW))
	}

	HOut := H + KH - 1
	WOut := W + KW - 1

	output := tensor.NewGrid(HOut, WOut)
	for outH := 0; outH < HOut; outH++ {
		for outW := 0; outW < WOut; outW++ {
			// Negative anchors place the kernel partly above/left of the input.
			output[outH][outW] = applyKernel(input, kernel, outH-KH+1, outW-KW+1)
		}
	}
	return output
}
