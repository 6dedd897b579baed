package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/lncnn/internal/tensor"
)

// ReadCSV reads images from r, one per record:
//
//	label,pixel0,pixel1,...,pixel(rows*cols-1)
//	5,0,0,12,...,0
//
// An optional header line is skipped when its first field is not an
// integer. Errors report the 1-based line number.
func ReadCSV(r io.Reader, rows, cols int) ([]Image, error) {
	return readCSV(r, rows, cols, 0)
}

// LoadCSV reads up to maxSamples images from a CSV file (0 = load all).
func LoadCSV(path string, rows, cols, maxSamples int) ([]Image, error) {
	//nolint:gosec // G304: path comes from the user
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	images, err := readCSV(file, rows, cols, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return images, nil
}

func readCSV(r io.Reader, rows, cols, maxSamples int) ([]Image, error) {
	if err := checkDims(rows, cols); err != nil {
		return nil, err
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	want := rows*cols + 1
	var images []Image
	for first := true; maxSamples <= 0 || len(images) < maxSamples; first = false {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		line, _ := reader.FieldPos(0)

		label, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			if first {
				continue // header
			}
			return nil, fmt.Errorf("%w: line %d: invalid label %q", ErrFormat, line, record[0])
		}
		if len(record) != want {
			return nil, fmt.Errorf("%w: line %d: got %d fields, want %d", ErrFormat, line, len(record), want)
		}

		pixels := tensor.NewGrid(rows, cols)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid pixel %d: %q", ErrFormat, line, i, field)
			}
			pixels[i/cols][i%cols] = v
		}
		images = append(images, Image{Pixels: pixels, Label: label})
	}
	return images, nil
}

// WriteCSV writes images in the format ReadCSV reads, without a header.
func WriteCSV(w io.Writer, images []Image) error {
	writer := csv.NewWriter(w)
	for _, img := range images {
		record := make([]string, 0, 1+img.Rows()*img.Cols())
		record = append(record, strconv.Itoa(img.Label))
		for _, row := range img.Pixels {
			for _, v := range row {
				record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
