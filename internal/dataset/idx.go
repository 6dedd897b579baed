package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/lncnn/internal/tensor"
)

// IDX magic numbers.
const (
	idxImagesMagic = 2051 // 0x00000803
	idxLabelsMagic = 2049 // 0x00000801
)

// Official MNIST file names inside a data directory.
const (
	TrainImagesFile = "train-images-idx3-ubyte"
	TrainLabelsFile = "train-labels-idx1-ubyte"
	TestImagesFile  = "t10k-images-idx3-ubyte"
	TestLabelsFile  = "t10k-labels-idx1-ubyte"
)

// LoadIDX loads up to maxSamples images (0 = load all) from a pair of
// official MNIST IDX files.
func LoadIDX(imagesPath, labelsPath string, maxSamples int) ([]Image, error) {
	imagesFile, err := os.Open(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open images: %w", err)
	}
	defer imagesFile.Close()

	labelsFile, err := os.Open(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer labelsFile.Close()

	return ReadIDX(imagesFile, labelsFile, maxSamples)
}

// ReadIDX reads images and labels from IDX streams.
//
// IDX format for images (big endian):
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255)
//
// IDX format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes
func ReadIDX(images, labels io.Reader, maxSamples int) ([]Image, error) {
	numImages, rows, cols, err := readIDXImagesHeader(images)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	numLabels, err := readIDXLabelsHeader(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	if numImages != numLabels {
		return nil, fmt.Errorf("%w: image count (%d) != label count (%d)", ErrFormat, numImages, numLabels)
	}

	n := numImages
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}

	labelBytes := make([]byte, n)
	if _, err := io.ReadFull(labels, labelBytes); err != nil {
		return nil, fmt.Errorf("%w: failed to read labels: %w", ErrFormat, err)
	}

	out := make([]Image, n)
	raw := make([]byte, rows*cols)
	for i := range out {
		if _, err := io.ReadFull(images, raw); err != nil {
			return nil, fmt.Errorf("%w: failed to read image %d: %w", ErrFormat, i, err)
		}
		pixels := tensor.NewGrid(rows, cols)
		for j, b := range raw {
			pixels[j/cols][j%cols] = float64(b)
		}
		out[i] = Image{Pixels: pixels, Label: int(labelBytes[i])}
	}
	return out, nil
}

func readIDXImagesHeader(r io.Reader) (count, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: failed to read header: %w", ErrFormat, err)
	}
	if header[0] != idxImagesMagic {
		return 0, 0, 0, fmt.Errorf("%w: invalid magic number: got %d, want %d", ErrFormat, header[0], idxImagesMagic)
	}
	if header[2] == 0 || header[3] == 0 {
		return 0, 0, 0, fmt.Errorf("%w: empty image size %dx%d", ErrFormat, header[2], header[3])
	}
	return int(header[1]), int(header[2]), int(header[3]), nil
}

func readIDXLabelsHeader(r io.Reader) (int, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return 0, fmt.Errorf("%w: failed to read header: %w", ErrFormat, err)
	}
	if header[0] != idxLabelsMagic {
		return 0, fmt.Errorf("%w: invalid magic number: got %d, want %d", ErrFormat, header[0], idxLabelsMagic)
	}
	return int(header[1]), nil
}

// WriteIDX writes images and labels as IDX streams. Pixels are clamped to
// 0-255 and labels must fit in a byte.
func WriteIDX(images, labels io.Writer, data []Image) error {
	if len(data) == 0 {
		return ErrNoSamples
	}
	rows, cols := data[0].Rows(), data[0].Cols()

	header := [4]uint32{idxImagesMagic, uint32(len(data)), uint32(rows), uint32(cols)}
	if err := binary.Write(images, binary.BigEndian, header); err != nil {
		return err
	}
	if err := binary.Write(labels, binary.BigEndian, [2]uint32{idxLabelsMagic, uint32(len(data))}); err != nil {
		return err
	}

	raw := make([]byte, rows*cols)
	labelBytes := make([]byte, len(data))
	for i, img := range data {
		if img.Rows() != rows || img.Cols() != cols {
			return fmt.Errorf("%w: image %d is %dx%d, want %dx%d", ErrFormat, i, img.Rows(), img.Cols(), rows, cols)
		}
		if img.Label < 0 || img.Label > 255 {
			return fmt.Errorf("%w: image %d label %d does not fit a byte", ErrFormat, i, img.Label)
		}
		labelBytes[i] = byte(img.Label)
		for j := range raw {
			raw[j] = byte(min(max(img.Pixels[j/cols][j%cols], 0), 255))
		}
		if _, err := images.Write(raw); err != nil {
			return err
		}
	}
	_, err := labels.Write(labelBytes)
	return err
}
