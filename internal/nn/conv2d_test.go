package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lncnn/internal/parallel"
	"github.com/born-ml/lncnn/internal/tensor"
)

func newRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// rampGrid fills a grid with distinct, mixed-sign values.
func rampGrid(rows, cols int, offset float64) tensor.Grid {
	g := tensor.NewGrid(rows, cols)
	for r := range g {
		for c := range g[r] {
			g[r][c] = float64((r*cols+c)%7) - 3 + offset
		}
	}
	return g
}

func assertGridInDelta(t *testing.T, expected, actual tensor.Grid, delta float64) {
	t.Helper()
	require.Equal(t, expected.Shape(), actual.Shape())
	for r := range expected {
		for c := range expected[r] {
			assert.InDelta(t, expected[r][c], actual[r][c], delta, "cell (%d,%d)", r, c)
		}
	}
}

// TestConv2D_OutputDims tests the 28x28 input, filter 5, stride 1 case.
func TestConv2D_OutputDims(t *testing.T) {
	conv, err := NewConv2D(5, 1, 8, 1, 28, 28, 0.01, newRNG(1))
	require.NoError(t, err)

	assert.Equal(t, GridDims(1, 28, 28), conv.InputDims())
	assert.Equal(t, GridDims(8, 24, 24), conv.OutputDims())

	out := conv.Forward(Grids(tensor.Single(tensor.NewGrid(28, 28))))
	assert.Equal(t, tensor.Shape{8, 24, 24}, out.Batch().Shape())
}

// TestConv2D_StridedDims tests output dims with a stride that leaves a remainder.
func TestConv2D_StridedDims(t *testing.T) {
	conv, err := NewConv2D(3, 2, 2, 3, 8, 7, 0.01, newRNG(1))
	require.NoError(t, err)

	// (8-3)/2+1 = 3, (7-3)/2+1 = 3, 3 inputs * 2 filters = 6 channels
	assert.Equal(t, GridDims(6, 3, 3), conv.OutputDims())
	assert.Equal(t, 54, conv.OutputDims().Elements)
}

func TestNewConv2D_InvalidConfig(t *testing.T) {
	tests := []struct {
		name                  string
		size, stride, filters int
		channels, rows, cols  int
		rng                   *rand.Rand
	}{
		{"zero filter size", 0, 1, 1, 1, 5, 5, newRNG(1)},
		{"zero stride", 3, 0, 1, 1, 5, 5, newRNG(1)},
		{"zero filters", 3, 1, 0, 1, 5, 5, newRNG(1)},
		{"zero channels", 3, 1, 1, 0, 5, 5, newRNG(1)},
		{"filter larger than input", 6, 1, 1, 1, 5, 5, newRNG(1)},
		{"nil rng", 3, 1, 1, 1, 5, 5, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConv2D(tt.size, tt.stride, tt.filters, tt.channels, tt.rows, tt.cols, 0.1, tt.rng)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

// TestConv2D_SeededInit tests that equal seeds give equal filters.
func TestConv2D_SeededInit(t *testing.T) {
	a, err := NewConv2D(3, 1, 4, 1, 10, 10, 0.1, newRNG(42))
	require.NoError(t, err)
	b, err := NewConv2D(3, 1, 4, 1, 10, 10, 0.1, newRNG(42))
	require.NoError(t, err)
	c, err := NewConv2D(3, 1, 4, 1, 10, 10, 0.1, newRNG(43))
	require.NoError(t, err)

	assert.Equal(t, a.Filters(), b.Filters())
	assert.NotEqual(t, a.Filters(), c.Filters())
}

// TestConv2D_ForwardOrdering tests that output i*F+f is input i with filter f.
func TestConv2D_ForwardOrdering(t *testing.T) {
	conv, err := NewConv2D(2, 1, 2, 2, 3, 3, 0.1, newRNG(1))
	require.NoError(t, err)
	require.NoError(t, conv.LoadStateDict(map[string]tensor.Grid{
		"filter.0": {{1, 0}, {0, 0}}, // picks top-left
		"filter.1": {{0, 0}, {0, 1}}, // picks bottom-right
	}))

	in0 := tensor.Grid{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	in1 := in0.Scale(10)
	out := conv.Forward(Grids(tensor.Batch{in0, in1})).Batch()

	require.Len(t, out, 4)
	assert.Equal(t, tensor.Grid{{1, 2}, {4, 5}}, out[0])
	assert.Equal(t, tensor.Grid{{5, 6}, {8, 9}}, out[1])
	assert.Equal(t, tensor.Grid{{10, 20}, {40, 50}}, out[2])
	assert.Equal(t, tensor.Grid{{50, 60}, {80, 90}}, out[3])
}

// TestConv2D_ForwardFlatInput tests that a flat vector is reshaped to the
// declared input.
func TestConv2D_ForwardFlatInput(t *testing.T) {
	conv, err := NewConv2D(2, 1, 1, 1, 3, 3, 0.1, newRNG(1))
	require.NoError(t, err)

	grid := tensor.Grid{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	fromGrid := conv.Forward(Grids(tensor.Single(grid))).Batch()
	fromFlat := conv.Forward(Flat(grid.Flatten())).Batch()
	assert.Equal(t, fromGrid, fromFlat)

	assert.Panics(t, func() {
		conv.Forward(Flat(tensor.NewVector(8)))
	})
}

// convObjective evaluates L = Σ grad ⊙ Forward(x), whose derivative with
// respect to x is exactly what Backward should return.
func convObjective(conv *Conv2D, x tensor.Batch, grad tensor.Batch) float64 {
	out := conv.Forward(Grids(x)).Batch()
	var sum float64
	for ch := range out {
		for r := range out[ch] {
			for c := range out[ch][r] {
				sum += out[ch][r][c] * grad[ch][r][c]
			}
		}
	}
	return sum
}

// TestConv2D_BackwardInputGradient compares Backward's input gradient with
// finite differences. The objective is linear in x, so unit steps are exact.
func TestConv2D_BackwardInputGradient(t *testing.T) {
	const seed = 7
	// 6x6 with filter 3 and stride 2: the last row and column are never
	// visited and must receive zero gradient.
	trained, err := NewConv2D(3, 2, 2, 2, 6, 6, 0.5, newRNG(seed))
	require.NoError(t, err)
	reference, err := NewConv2D(3, 2, 2, 2, 6, 6, 0, newRNG(seed))
	require.NoError(t, err)

	x := tensor.Batch{rampGrid(6, 6, 0), rampGrid(6, 6, 0.5)}
	grad := tensor.Batch{
		rampGrid(2, 2, 1), rampGrid(2, 2, -1),
		rampGrid(2, 2, 2), rampGrid(2, 2, 0.25),
	}

	trained.Forward(Grids(x.Clone()))
	got := trained.Backward(Grids(grad)).Batch()
	require.Equal(t, tensor.Shape{2, 6, 6}, got.Shape())

	base := convObjective(reference, x, grad)
	for ch := range x {
		want := tensor.NewGrid(6, 6)
		for r := 0; r < 6; r++ {
			for c := 0; c < 6; c++ {
				bumped := x.Clone()
				bumped[ch][r][c]++
				want[r][c] = convObjective(reference, bumped, grad) - base
			}
		}
		assertGridInDelta(t, want, got[ch], 1e-9)
		for i := 0; i < 6; i++ {
			assert.Zero(t, got[ch][5][i])
			assert.Zero(t, got[ch][i][5])
		}
	}
}

// TestConv2D_BackwardFilterUpdate checks filter[f] -= lr * Σ_i dFilter.
func TestConv2D_BackwardFilterUpdate(t *testing.T) {
	const (
		lr     = 0.1
		stride = 2
		k      = 2
	)
	conv, err := NewConv2D(k, stride, 2, 2, 5, 5, lr, newRNG(3))
	require.NoError(t, err)
	before := conv.Filters()

	x := tensor.Batch{rampGrid(5, 5, 0), rampGrid(5, 5, 1)}
	conv.Forward(Grids(x))
	grad := tensor.NewBatch(4, 2, 2)
	for ch := range grad {
		grad[ch] = rampGrid(2, 2, float64(ch))
	}
	conv.Backward(Grids(grad))

	after := conv.Filters()
	for f := range before {
		want := before[f].Clone()
		for i := range x {
			g := grad[i*2+f]
			for kh := 0; kh < k; kh++ {
				for kw := 0; kw < k; kw++ {
					var d float64
					for oh := range g {
						for ow := range g[oh] {
							d += g[oh][ow] * x[i][oh*stride+kh][ow*stride+kw]
						}
					}
					want[kh][kw] -= lr * d
				}
			}
		}
		assertGridInDelta(t, want, after[f], 1e-9)
	}
}

// TestConv2D_BackwardIgnoresReusedInput checks that overwriting the input
// buffer between Forward and Backward leaves the filter update unchanged.
func TestConv2D_BackwardIgnoresReusedInput(t *testing.T) {
	newConv := func() *Conv2D {
		conv, err := NewConv2D(2, 1, 2, 1, 4, 4, 0.1, newRNG(8))
		require.NoError(t, err)
		return conv
	}
	kept, reused := newConv(), newConv()
	grad := tensor.Batch{rampGrid(3, 3, 0), rampGrid(3, 3, 1)}

	x := tensor.Batch{rampGrid(4, 4, 0)}
	kept.Forward(Grids(x.Clone()))
	reused.Forward(Grids(x))
	for r := range x[0] {
		for c := range x[0][r] {
			x[0][r][c] = 100
		}
	}

	assert.Equal(t, kept.Backward(Grids(grad.Clone())).Batch(), reused.Backward(Grids(grad.Clone())).Batch())
	assert.Equal(t, kept.Filters(), reused.Filters())
}

// TestConv2D_ParallelMatchesSequential checks that fanning the grid ops out
// over workers changes neither outputs nor filter updates.
func TestConv2D_ParallelMatchesSequential(t *testing.T) {
	newConv := func(cfg parallel.Config) *Conv2D {
		conv, err := NewConv2D(3, 2, 4, 3, 9, 9, 0.2, newRNG(11))
		require.NoError(t, err)
		conv.parallel = cfg
		return conv
	}
	seq := newConv(parallel.Sequential())
	par := newConv(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})

	x := tensor.Batch{rampGrid(9, 9, 0), rampGrid(9, 9, 0.5), rampGrid(9, 9, -1)}
	grad := make(tensor.Batch, 12)
	for k := range grad {
		grad[k] = rampGrid(4, 4, float64(k)/4)
	}

	assert.Equal(t, seq.Forward(Grids(x)).Batch(), par.Forward(Grids(x)).Batch())
	assert.Equal(t, seq.Backward(Grids(grad)).Batch(), par.Backward(Grids(grad)).Batch())
	assert.Equal(t, seq.Filters(), par.Filters())
}

func TestConv2D_BackwardBeforeForward(t *testing.T) {
	conv, err := NewConv2D(2, 1, 1, 1, 3, 3, 0.1, newRNG(1))
	require.NoError(t, err)
	assert.Panics(t, func() {
		conv.Backward(Grids(tensor.NewBatch(1, 2, 2)))
	})
}

func TestConv2D_StateDict(t *testing.T) {
	conv, err := NewConv2D(3, 1, 2, 1, 5, 5, 0.1, newRNG(1))
	require.NoError(t, err)

	state := conv.StateDict()
	require.Len(t, state, 2)
	assert.Contains(t, state, "filter.0")
	assert.Contains(t, state, "filter.1")

	// Returned grids are copies.
	state["filter.0"][0][0] = 1000
	assert.NotEqual(t, 1000.0, conv.Filters()[0][0][0])

	other, err := NewConv2D(3, 1, 2, 1, 5, 5, 0.1, newRNG(99))
	require.NoError(t, err)
	require.NoError(t, other.LoadStateDict(state))
	assert.Equal(t, 1000.0, other.Filters()[0][0][0])

	err = other.LoadStateDict(map[string]tensor.Grid{"filter.0": tensor.NewGrid(3, 3)})
	assert.ErrorIs(t, err, ErrStateDict)

	err = other.LoadStateDict(map[string]tensor.Grid{
		"filter.0": tensor.NewGrid(3, 3),
		"filter.1": tensor.NewGrid(2, 2),
	})
	assert.ErrorIs(t, err, ErrStateDict)
}

func TestConv2D_String(t *testing.T) {
	conv, err := NewConv2D(2, 1, 1, 1, 3, 3, 0.1, newRNG(1))
	require.NoError(t, err)
	s := conv.String()
	assert.Contains(t, s, "Conv2D(filters=1, size=2, stride=1")
	assert.Contains(t, s, "[1 3 3] -> [1 2 2]")
	assert.Contains(t, s, "filter 0:")
}
