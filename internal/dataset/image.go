// Package dataset loads labeled digit images.
//
// Pixel intensities are kept as stored (0-255 for MNIST); scaling is the
// network's job.
package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Common errors.
var (
	ErrFormat    = errors.New("dataset: malformed input")
	ErrNoSamples = errors.New("dataset: no samples")
)

// Image is a labeled grayscale image.
type Image struct {
	Pixels tensor.Grid
	Label  int
}

// Rows returns the image height.
func (img Image) Rows() int { return img.Pixels.Rows() }

// Cols returns the image width.
func (img Image) Cols() int { return img.Pixels.Cols() }

// String dumps the label on the first line followed by one line of
// comma-separated pixel values per row.
func (img Image) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(img.Label))
	sb.WriteString(",\n")
	for _, row := range img.Pixels {
		for _, v := range row {
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			sb.WriteString(", ")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Labels returns the label of every image, in order.
func Labels(images []Image) []int {
	labels := make([]int, len(images))
	for i, img := range images {
		labels[i] = img.Label
	}
	return labels
}

func checkDims(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: image size %dx%d must be positive", ErrFormat, rows, cols)
	}
	return nil
}
