package dataset

import (
	"fmt"
	"math/rand"
)

// Shuffle permutes images in place.
func Shuffle(images []Image, rng *rand.Rand) {
	rng.Shuffle(len(images), func(i, j int) {
		images[i], images[j] = images[j], images[i]
	})
}

// Split splits images into training and validation sets. The last
// validationRatio fraction of images becomes the validation set. The
// returned slices share images' backing array.
func Split(images []Image, validationRatio float64) (train, validation []Image, err error) {
	if validationRatio < 0 || validationRatio >= 1 {
		return nil, nil, fmt.Errorf("%w: validation ratio %g not in [0, 1)", ErrFormat, validationRatio)
	}
	splitIdx := int(float64(len(images)) * (1 - validationRatio))
	return images[:splitIdx], images[splitIdx:], nil
}
