// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hdf5 implements a read-only subset of the HDF5 file format, large
// enough to open the scan containers produced by ultrasound acquisition rigs:
// superblock versions 0, 2 and 3, object header versions 1 and 2, old-style
// (symbol table) and new-style (link message) groups, and compact, contiguous
// and chunked dataset layouts with deflate, shuffle and Fletcher32 filters.
//
// The package does not write files and does not implement attributes,
// variable-length types, or the fractal heap structures of HDF5 1.8+ dense
// storage. Anything outside the subset surfaces as a wrapped parse error.
package hdf5

import (
	"encoding/binary"
	"errors"
)

// Signature is the 8-byte magic at the start of every HDF5 file.
const Signature = "\x89HDF\r\n\x1a\n"

// undefAddr marks unallocated addresses in the file format.
const undefAddr = ^uint64(0)

var (
	// ErrSignature reports that a file does not begin with the HDF5 magic.
	ErrSignature = errors.New("invalid HDF5 signature")

	// ErrNotFound reports that a path does not name a dataset or group.
	ErrNotFound = errors.New("object not found")
)

// Object is a named node in the file hierarchy, either *Group or *Dataset.
type Object interface {
	Name() string
}

// DataClass is the HDF5 datatype class of a dataset's elements.
type DataClass uint8

// Datatype classes from the HDF5 specification.
const (
	ClassFixed     DataClass = 0
	ClassFloat     DataClass = 1
	ClassTime      DataClass = 2
	ClassString    DataClass = 3
	ClassBitfield  DataClass = 4
	ClassOpaque    DataClass = 5
	ClassCompound  DataClass = 6
	ClassReference DataClass = 7
	ClassEnum      DataClass = 8
	ClassVarLen    DataClass = 9
	ClassArray     DataClass = 10
)

// String returns the conventional name of the class.
func (c DataClass) String() string {
	switch c {
	case ClassFixed:
		return "fixed"
	case ClassFloat:
		return "float"
	case ClassTime:
		return "time"
	case ClassString:
		return "string"
	case ClassBitfield:
		return "bitfield"
	case ClassOpaque:
		return "opaque"
	case ClassCompound:
		return "compound"
	case ClassReference:
		return "reference"
	case ClassEnum:
		return "enum"
	case ClassVarLen:
		return "vlen"
	case ClassArray:
		return "array"
	default:
		return "unknown"
	}
}

// readUint decodes a 1, 2, 4 or 8 byte unsigned integer. Shorter inputs are
// zero-padded, matching how the format treats truncated trailing fields.
func readUint(data []byte, size int, order binary.ByteOrder) uint64 {
	if size > len(data) {
		size = len(data)
	}
	switch size {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(order.Uint16(data[:2]))
	case 4:
		return uint64(order.Uint32(data[:4]))
	case 8:
		return order.Uint64(data[:8])
	default:
		var buf [8]byte
		copy(buf[:], data[:size])
		return order.Uint64(buf[:])
	}
}
