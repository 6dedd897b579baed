package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("grid offsets overlap")
	ErrOutOfBounds        = errors.New("grid extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyGrids       = errors.New("too many grids in file")
	ErrGridNameTooLong    = errors.New("grid name too long")
	ErrInvalidGridName    = errors.New("invalid grid name")
	ErrInvalidShape       = errors.New("invalid grid shape")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
)

// ValidationError provides detailed information about validation failures.
// It unwraps to the matching sentinel error.
type ValidationError struct {
	Err     error  // Sentinel (e.g. ErrOffsetOverlap)
	Grid    string // Primary grid name involved
	Grid2   string // Secondary grid name (for overlap errors)
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Grid2 != "" {
		return fmt.Sprintf("%v: grids %q and %q: %s", e.Err, e.Grid, e.Grid2, e.Details)
	}
	if e.Grid != "" {
		return fmt.Sprintf("%v: grid %q: %s", e.Err, e.Grid, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
