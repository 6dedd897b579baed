package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize  = 16 * 1024 * 1024 // 16MB
	MaxDataSize    = 1 << 30          // 1GB
	MaxGridCount   = 100_000
	MaxGridNameLen = 256
)

// ValidateGridOffsets checks for overlapping grid regions and out-of-bounds
// access.
func ValidateGridOffsets(grids []GridMeta, dataSize int64) error {
	if len(grids) > MaxGridCount {
		return &ValidationError{
			Err:     ErrTooManyGrids,
			Details: fmt.Sprintf("got %d, max %d", len(grids), MaxGridCount),
		}
	}

	sorted := make([]GridMeta, len(grids))
	copy(sorted, grids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, g := range sorted {
		if g.Offset < 0 || g.Size < 0 {
			return &ValidationError{
				Err:     ErrNegativeOffset,
				Grid:    g.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", g.Offset, g.Size),
			}
		}

		if g.Size > dataSize || g.Offset > dataSize-g.Size {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Grid:    g.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", g.Offset, g.Size, dataSize),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if g.Offset+g.Size > next.Offset {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Grid:    g.Name,
					Grid2:   next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						g.Offset, g.Offset+g.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateGridName rejects empty, oversized and control-character names.
func ValidateGridName(name string) error {
	if name == "" {
		return &ValidationError{Err: ErrInvalidGridName, Details: "empty name"}
	}
	if len(name) > MaxGridNameLen {
		return &ValidationError{
			Err:     ErrGridNameTooLong,
			Grid:    name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxGridNameLen),
		}
	}
	if strings.ContainsFunc(name, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return &ValidationError{
			Err:     ErrInvalidGridName,
			Grid:    name,
			Details: "contains control character",
		}
	}
	return nil
}

// ValidateGridShape checks that a grid is [rows, cols] with positive sizes
// and that its byte size matches.
func ValidateGridShape(g GridMeta) error {
	if len(g.Shape) != 2 || g.Shape[0] <= 0 || g.Shape[1] <= 0 {
		return &ValidationError{
			Err:     ErrInvalidShape,
			Grid:    g.Name,
			Details: fmt.Sprintf("shape %v is not [rows, cols]", g.Shape),
		}
	}
	if int64(g.Shape[0]) > MaxDataSize/BytesPerValue/int64(g.Shape[1]) {
		return &ValidationError{
			Err:     ErrInvalidShape,
			Grid:    g.Name,
			Details: fmt.Sprintf("shape %v exceeds max data size %d", g.Shape, MaxDataSize),
		}
	}
	if want := int64(g.Shape[0]) * int64(g.Shape[1]) * BytesPerValue; g.Size != want {
		return &ValidationError{
			Err:     ErrInvalidShape,
			Grid:    g.Name,
			Details: fmt.Sprintf("size %d does not match shape %v (%d bytes)", g.Size, g.Shape, want),
		}
	}
	return nil
}

// ValidateHeader performs full header validation against the data section
// size.
func ValidateHeader(h *Header, dataSize int64) error {
	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: header declares %d", ErrUnsupportedVersion, h.FormatVersion)
	}
	if len(h.Grids) > MaxGridCount {
		return &ValidationError{
			Err:     ErrTooManyGrids,
			Details: fmt.Sprintf("got %d, max %d", len(h.Grids), MaxGridCount),
		}
	}

	seen := make(map[string]bool, len(h.Grids))
	for _, g := range h.Grids {
		if err := ValidateGridName(g.Name); err != nil {
			return err
		}
		if seen[g.Name] {
			return &ValidationError{Err: ErrInvalidGridName, Grid: g.Name, Details: "duplicate name"}
		}
		seen[g.Name] = true
		if err := ValidateGridShape(g); err != nil {
			return err
		}
	}

	return ValidateGridOffsets(h.Grids, dataSize)
}
