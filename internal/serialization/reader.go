package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/lncnn/internal/tensor"
)

// Read reads a snapshot from r and returns its grids and header.
//
// The header is validated before any grid data is read, and the data
// section is verified against the stored checksum. The data section may
// not exceed MaxDataSize.
func Read(r io.Reader) (map[string]tensor.Grid, Header, error) {
	return read(r, -1)
}

// read reads a snapshot of streamSize bytes, or of unknown size when
// streamSize is negative.
func read(r io.Reader, streamSize int64) (map[string]tensor.Grid, Header, error) {
	magic := make([]byte, len(MagicBytes))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return nil, Header{}, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, string(magic), MagicBytes)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read version: %w", err)
	}
	if version != FormatVersion {
		return nil, Header{}, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, Header{}, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	available := int64(MaxDataSize)
	if streamSize >= 0 {
		remaining := streamSize - FixedHeaderSize - int64(headerSize)
		if remaining < 0 {
			return nil, Header{}, fmt.Errorf("%w: header of %d bytes exceeds file of %d bytes",
				ErrOutOfBounds, headerSize, streamSize)
		}
		available = min(available, remaining)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, Header{}, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	// Bound the grids by the bytes that can actually follow the header,
	// then require them to tile the data section they describe.
	if err := ValidateHeader(&header, available); err != nil {
		return nil, Header{}, fmt.Errorf("validation failed: %w", err)
	}
	dataSize := header.DataSize()
	if err := ValidateGridOffsets(header.Grids, dataSize); err != nil {
		return nil, Header{}, fmt.Errorf("validation failed: %w", err)
	}
	stored, err := ParseChecksum(header.Checksum)
	if err != nil {
		return nil, Header{}, err
	}

	// Grow with the bytes actually present rather than trusting dataSize.
	data, err := io.ReadAll(io.LimitReader(r, dataSize))
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to read grid data: %w", err)
	}
	if int64(len(data)) != dataSize {
		return nil, Header{}, fmt.Errorf("failed to read grid data: %w (got %d of %d bytes)",
			io.ErrUnexpectedEOF, len(data), dataSize)
	}
	if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
		return nil, Header{}, err
	}

	stateDict := make(map[string]tensor.Grid, len(header.Grids))
	for _, meta := range header.Grids {
		stateDict[meta.Name] = decodeGrid(data[meta.Offset:meta.Offset+meta.Size], meta.Shape[0], meta.Shape[1])
	}
	return stateDict, header, nil
}

// ReadFile reads a snapshot from path.
func ReadFile(path string) (map[string]tensor.Grid, Header, error) {
	//nolint:gosec // G304: path comes from the user, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return read(bufio.NewReader(file), info.Size())
}

func decodeGrid(data []byte, rows, cols int) tensor.Grid {
	g := tensor.NewGrid(rows, cols)
	i := 0
	for r := range g {
		for c := range g[r] {
			g[r][c] = math.Float64frombits(binary.LittleEndian.Uint64(data[i:]))
			i += BytesPerValue
		}
	}
	return g
}
