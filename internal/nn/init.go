package nn

import (
	"math/rand"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Randn returns a rows x cols grid with values drawn from the standard
// normal distribution N(0, 1) using rng.
//
// Drawing from an explicit source keeps initialization reproducible: two
// layers built with sources seeded alike start from identical parameters.
func Randn(rows, cols int, rng *rand.Rand) tensor.Grid {
	g := tensor.NewGrid(rows, cols)
	for r := range g {
		for c := range g[r] {
			g[r][c] = rng.NormFloat64()
		}
	}
	return g
}
