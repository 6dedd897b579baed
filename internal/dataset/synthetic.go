package dataset

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Synthetic generates n labeled images for smoke runs without a dataset
// file. Class c is a bright horizontal band whose position depends on c,
// with seeded noise added to every pixel. Intensities stay within 0-255.
func Synthetic(n, rows, cols, classes int, seed int64) ([]Image, error) {
	if err := checkDims(rows, cols); err != nil {
		return nil, err
	}
	if n < 0 || classes <= 0 {
		return nil, fmt.Errorf("%w: %d samples of %d classes", ErrFormat, n, classes)
	}

	rng := rand.New(rand.NewSource(seed))
	band := max(rows/(classes+1), 1)

	images := make([]Image, n)
	for i := range images {
		label := i % classes
		start := label * rows / classes
		pixels := tensor.NewGrid(rows, cols)
		for r := range pixels {
			for c := range pixels[r] {
				v := rng.Float64() * 40
				if r >= start && r < start+band {
					v += 200
				}
				pixels[r][c] = min(v, 255)
			}
		}
		images[i] = Image{Pixels: pixels, Label: label}
	}
	return images, nil
}
