package serialization

import (
	"encoding/json"
	"time"
)

// Format constants.
const (
	MagicBytes      = "LNCN"
	FormatVersion   = 1
	FixedHeaderSize = 4 + 4 + 8 // magic + version + header size
	BytesPerValue   = 8         // float64
)

// Header represents the JSON header of a snapshot.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	ModelType      string            `json:"model_type"`
	CreatedAt      time.Time         `json:"created_at"`
	Model          json.RawMessage   `json:"model,omitempty"` // Caller-defined architecture description
	Grids          []GridMeta        `json:"grids"`
	Checksum       string            `json:"checksum"` // Hex SHA-256 of the data section
	Metadata       map[string]string `json:"metadata,omitempty"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state recorded alongside the parameters.
type CheckpointMeta struct {
	Epoch    int     `json:"epoch"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// GridMeta describes one grid in the data section.
type GridMeta struct {
	Name   string `json:"name"`   // e.g. "0.filter.3"
	Shape  []int  `json:"shape"`  // [rows, cols]
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// DataSize returns the total size of the data section described by the
// header.
func (h *Header) DataSize() int64 {
	var size int64
	for _, g := range h.Grids {
		size += g.Size
	}
	return size
}
