package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lncnn/internal/tensor"
)

func newLinearWithWeight(t *testing.T, w tensor.Grid, lr float64) *Linear {
	t.Helper()
	l, err := NewLinear(w.Rows(), w.Cols(), lr, newRNG(1))
	require.NoError(t, err)
	require.NoError(t, l.LoadStateDict(map[string]tensor.Grid{"weight": w}))
	return l
}

// TestLinear_SingleWeightUpdate: weight 0.5, input 2, error 1, lr 0.1
// gives 0.5 - 0.1*1*1*2 = 0.3.
func TestLinear_SingleWeightUpdate(t *testing.T) {
	l := newLinearWithWeight(t, tensor.Grid{{0.5}}, 0.1)

	out := l.Forward(Flat(tensor.Vector{2.0})).Vector()
	require.Equal(t, tensor.Vector{1.0}, out)

	dx := l.Backward(Flat(tensor.Vector{1.0})).Vector()

	assert.InDelta(t, 0.3, l.Weight()[0][0], 1e-12)
	// dx uses the weight before the update.
	assert.InDelta(t, 0.5, dx[0], 1e-12)
}

// TestLinear_LeakyBackward tests the 0.01 derivative for an inactive unit.
func TestLinear_LeakyBackward(t *testing.T) {
	l := newLinearWithWeight(t, tensor.Grid{{-1.0}}, 0.1)

	out := l.Forward(Flat(tensor.Vector{2.0})).Vector()
	assert.Equal(t, tensor.Vector{0}, out)

	dx := l.Backward(Flat(tensor.Vector{1.0})).Vector()
	assert.InDelta(t, -1.0-0.1*1*0.01*2, l.Weight()[0][0], 1e-12)
	assert.InDelta(t, -0.01, dx[0], 1e-12)
}

func TestLinear_ForwardMatrix(t *testing.T) {
	// 3 inputs, 2 outputs.
	l := newLinearWithWeight(t, tensor.Grid{
		{1, -1},
		{2, 0},
		{0, 3},
	}, 0.1)

	out := l.Forward(Flat(tensor.Vector{1, 1, 1})).Vector()
	assert.Equal(t, tensor.Vector{3, 2}, out)

	out = l.Forward(Flat(tensor.Vector{0, 0, -1})).Vector()
	assert.Equal(t, tensor.Vector{0, 0}, out)
}

func TestLinear_BackwardMatrix(t *testing.T) {
	w := tensor.Grid{
		{1, -1},
		{2, 0.5},
	}
	const lr = 0.5
	l := newLinearWithWeight(t, w, lr)

	x := tensor.Vector{1, -2}
	// z = [1*1 + -2*2, 1*-1 + -2*0.5] = [-3, -2] -> both inactive
	l.Forward(Flat(x))
	g := tensor.Vector{1, 2}
	dx := l.Backward(Flat(g)).Vector()

	d := []float64{g[0] * LeakySlope, g[1] * LeakySlope}
	assert.InDelta(t, d[0]*w[0][0]+d[1]*w[0][1], dx[0], 1e-12)
	assert.InDelta(t, d[0]*w[1][0]+d[1]*w[1][1], dx[1], 1e-12)

	updated := l.Weight()
	for i := range w {
		for j := range w[i] {
			assert.InDelta(t, w[i][j]-lr*d[j]*x[i], updated[i][j], 1e-12)
		}
	}
}

// TestLinear_GridInput tests that grids are flattened channel by channel.
func TestLinear_GridInput(t *testing.T) {
	l := newLinearWithWeight(t, tensor.Grid{{1}, {10}, {100}, {1000}}, 0.1)

	out := l.Forward(Grids(tensor.Batch{{{1, 2}}, {{3, 4}}})).Vector()
	assert.Equal(t, tensor.Vector{4321}, out)

	assert.Panics(t, func() {
		l.Forward(Flat(tensor.Vector{1, 2, 3}))
	})
}

func TestNewLinear_InvalidConfig(t *testing.T) {
	_, err := NewLinear(0, 10, 0.1, newRNG(1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewLinear(10, 0, 0.1, newRNG(1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewLinear(10, 10, 0.1, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLinear_Dims(t *testing.T) {
	l, err := NewLinear(72, 10, 0.1, newRNG(1))
	require.NoError(t, err)
	assert.Equal(t, FlatDims(72), l.InputDims())
	assert.Equal(t, FlatDims(10), l.OutputDims())
	assert.True(t, l.OutputDims().IsFlat())
	assert.Equal(t, tensor.Shape{72, 10}, l.Weight().Shape())
}

func TestLinear_LoadStateDict(t *testing.T) {
	l, err := NewLinear(2, 3, 0.1, newRNG(1))
	require.NoError(t, err)

	assert.ErrorIs(t, l.LoadStateDict(map[string]tensor.Grid{"weight": tensor.NewGrid(3, 2)}), ErrStateDict)
	assert.ErrorIs(t, l.LoadStateDict(map[string]tensor.Grid{"bias": tensor.NewGrid(2, 3)}), ErrStateDict)
	assert.NoError(t, l.LoadStateDict(map[string]tensor.Grid{"weight": tensor.NewGrid(2, 3)}))
	assert.Equal(t, tensor.NewGrid(2, 3), l.Weight())
}
