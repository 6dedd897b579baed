// Package serialization provides the .lncn snapshot format for saving and
// loading network parameters.
//
//	Format Structure:
//	  [4 bytes: Magic "LNCN"]
//	  [4 bytes: Version (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata]
//	  [Grid data: float64 LE, row-major, in header order]
//
// The header lists every grid with its name, shape and byte range in the
// data section, a SHA-256 checksum of the data section, and an opaque model
// description that the caller uses to rebuild the network before loading
// the grids into it.
//
// Example usage:
//
//	// Save
//	err := serialization.WriteFile("model.lncn", net.StateDict(), serialization.Header{
//	    ModelType: "network",
//	    Model:     description,
//	})
//
//	// Load
//	stateDict, header, err := serialization.ReadFile("model.lncn")
package serialization
