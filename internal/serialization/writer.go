package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Write writes stateDict to w in snapshot format.
//
// Grids are stored in name order so that equal state dicts produce equal
// data sections. The header's Grids, Checksum and FormatVersion fields are
// filled in; the caller provides ModelType, Model, Metadata and
// CheckpointMeta. A zero CreatedAt is set to the current time.
func Write(w io.Writer, stateDict map[string]tensor.Grid, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	header.Grids = make([]GridMeta, 0, len(names))

	var currentOffset int64
	for _, name := range names {
		g := stateDict[name]
		meta := GridMeta{
			Name:   name,
			Shape:  []int(g.Shape()),
			Offset: currentOffset,
			Size:   int64(g.Rows()) * int64(g.Cols()) * BytesPerValue,
		}
		if err := ValidateGridName(name); err != nil {
			return err
		}
		if err := ValidateGridShape(meta); err != nil {
			return err
		}
		header.Grids = append(header.Grids, meta)
		currentOffset += meta.Size
	}

	data := encodeGrids(stateDict, names, currentOffset)
	header.Checksum = FormatChecksum(ComputeChecksum(data))

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerJSON))
	}

	if _, err := io.WriteString(w, MagicBytes); err != nil {
		return fmt.Errorf("failed to write magic bytes: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("failed to write version: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write grid data: %w", err)
	}
	return nil
}

// WriteFile writes a snapshot to path, replacing any existing file.
func WriteFile(path string, stateDict map[string]tensor.Grid, header Header) (err error) {
	//nolint:gosec // G304: path comes from the user, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := Write(bw, stateDict, header); err != nil {
		return err
	}
	return bw.Flush()
}

func encodeGrids(stateDict map[string]tensor.Grid, names []string, size int64) []byte {
	data := make([]byte, 0, size)
	for _, name := range names {
		for _, row := range stateDict[name] {
			for _, v := range row {
				data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
			}
		}
	}
	return data
}
