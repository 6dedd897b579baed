package cpu

import (
	"testing"

	"github.com/born-ml/lncnn/internal/tensor"
)

// TestMaxPool2D_BasicForward tests basic max pooling correctness.
func TestMaxPool2D_BasicForward(t *testing.T) {
	input := sequentialGrid(4, 4)

	output, indices := MaxPool2D(input, 2, 2)

	// [[1,2,3,4],      -> [[6,8],
	//  [5,6,7,8],         [14,16]]
	//  [9,10,11,12],
	//  [13,14,15,16]]
	assertGrid(t, tensor.Grid{{6, 8}, {14, 16}}, output)

	want := [][2]int{{1, 1}, {1, 3}, {3, 1}, {3, 3}}
	for i, w := range want {
		h, c := indices.At(i/2, i%2)
		if h != w[0] || c != w[1] {
			t.Errorf("index %d: expected (%d,%d), got (%d,%d)", i, w[0], w[1], h, c)
		}
	}
}

// TestMaxPool2D_NonPositiveWindow tests the zero baseline: a window with no
// positive entry outputs 0 and selects nothing.
func TestMaxPool2D_NonPositiveWindow(t *testing.T) {
	input := tensor.Grid{
		{-1, -2, 3, 1},
		{-4, 0, 2, 5},
	}

	output, indices := MaxPool2D(input, 2, 2)
	assertGrid(t, tensor.Grid{{0, 5}}, output)

	if h, w := indices.At(0, 0); h != NoIndex || w != NoIndex {
		t.Errorf("expected no selection for all non-positive window, got (%d,%d)", h, w)
	}
	if h, w := indices.At(0, 1); h != 1 || w != 3 {
		t.Errorf("expected (1,3), got (%d,%d)", h, w)
	}
}

// TestMaxPool2D_TieKeepsFirst tests that equal maxima keep the first position.
func TestMaxPool2D_TieKeepsFirst(t *testing.T) {
	input := tensor.Grid{{2, 2}, {2, 2}}
	_, indices := MaxPool2D(input, 2, 2)
	if h, w := indices.At(0, 0); h != 0 || w != 0 {
		t.Errorf("expected (0,0), got (%d,%d)", h, w)
	}
}

// TestMaxPool2D_WithStride tests overlapping windows and truncation.
func TestMaxPool2D_WithStride(t *testing.T) {
	input := sequentialGrid(5, 5)

	// 3x3 window, stride 1 -> (5 - 3) / 1 + 1 = 3
	output, _ := MaxPool2D(input, 3, 1)
	if !output.Shape().Equal(tensor.Shape{3, 3}) {
		t.Fatalf("expected 3x3, got %v", output.Shape())
	}
	if output[0][0] != 13 {
		t.Errorf("first output: expected 13, got %.1f", output[0][0])
	}

	// 2x2 window, stride 2 on 5x5 -> 2x2, last row/col dropped.
	output, _ = MaxPool2D(input, 2, 2)
	assertGrid(t, tensor.Grid{{7, 9}, {17, 19}}, output)
}

// TestMaxPool2DBackward_Scatter tests that gradient reaches only the
// recorded maxima.
func TestMaxPool2DBackward_Scatter(t *testing.T) {
	input := sequentialGrid(4, 4)
	_, indices := MaxPool2D(input, 2, 2)

	grad := tensor.Grid{{1, 1}, {1, 1}}
	inputGrad := MaxPool2DBackward(grad, indices, 4, 4)

	expected := tensor.Grid{
		{0, 0, 0, 0},
		{0, 1, 0, 1},
		{0, 0, 0, 0},
		{0, 1, 0, 1},
	}
	assertGrid(t, expected, inputGrad)
}

// TestMaxPool2DBackward_Overlap tests accumulation when windows share a maximum.
func TestMaxPool2DBackward_Overlap(t *testing.T) {
	input := tensor.Grid{
		{1, 1, 1},
		{1, 9, 1},
		{1, 1, 1},
	}
	output, indices := MaxPool2D(input, 2, 1)
	assertGrid(t, tensor.Grid{{9, 9}, {9, 9}}, output)

	inputGrad := MaxPool2DBackward(tensor.Grid{{1, 2}, {3, 4}}, indices, 3, 3)
	expected := tensor.Grid{
		{0, 0, 0},
		{0, 10, 0},
		{0, 0, 0},
	}
	assertGrid(t, expected, inputGrad)
}

// TestMaxPool2DBackward_SkipsUnselected tests that NoIndex windows route nothing.
func TestMaxPool2DBackward_SkipsUnselected(t *testing.T) {
	input := tensor.Grid{{-1, -1}, {-1, -1}}
	_, indices := MaxPool2D(input, 2, 2)

	inputGrad := MaxPool2DBackward(tensor.Grid{{5}}, indices, 2, 2)
	assertGrid(t, tensor.NewGrid(2, 2), inputGrad)
}
