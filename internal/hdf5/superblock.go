// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hdf5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// superblock holds the file-level metadata needed to resolve addresses.
type superblock struct {
	version    uint8
	offsetSize uint8
	lengthSize uint8
	rootAddr   uint64
	order      binary.ByteOrder
}

// readSuperblock parses the superblock at offset 0. Versions 0, 2 and 3 are
// supported; acquisition rigs write version 0, newer tooling writes 2 or 3.
func readSuperblock(r io.ReaderAt) (*superblock, error) {
	buf := make([]byte, 128)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	if n < 48 {
		return nil, fmt.Errorf("file too small for a superblock: %w", ErrSignature)
	}
	if string(buf[:8]) != Signature {
		return nil, ErrSignature
	}

	sb := &superblock{version: buf[8]}
	switch sb.version {
	case 0:
		// v0 layout: version fields and sizes up to byte 23, then base,
		// free-space, end-of-file and driver-info addresses, then the root
		// group symbol table entry.
		sb.offsetSize = buf[13]
		sb.lengthSize = buf[14]
		sb.order = binary.LittleEndian
	case 2, 3:
		if buf[9]&0x01 != 0 {
			sb.order = binary.BigEndian
		} else {
			sb.order = binary.LittleEndian
		}
		// Byte 10 is either a direct offset size (1/2/4/8) with an implied
		// 8-byte length size, or packed nibble codes 0..3 for both.
		switch b := buf[10]; b {
		case 1, 2, 4, 8:
			sb.offsetSize = b
			sb.lengthSize = 8
		default:
			var ok bool
			if sb.offsetSize, ok = sizeFromCode(b & 0x0F); !ok {
				return nil, fmt.Errorf("invalid offset size code %d", b&0x0F)
			}
			if sb.lengthSize, ok = sizeFromCode((b >> 4) & 0x0F); !ok {
				return nil, fmt.Errorf("invalid length size code %d", (b>>4)&0x0F)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported superblock version %d", sb.version)
	}

	if sb.offsetSize == 0 {
		sb.offsetSize = 8
	}
	if sb.lengthSize == 0 {
		sb.lengthSize = 8
	}
	if !validFieldSize(sb.offsetSize) || !validFieldSize(sb.lengthSize) {
		return nil, fmt.Errorf("invalid superblock sizes offset=%d length=%d", sb.offsetSize, sb.lengthSize)
	}

	if sb.version == 0 {
		// Root group symbol table entry follows the four file addresses.
		// Its second field is the root object header address.
		entry := 24 + 4*int(sb.offsetSize)
		pos := entry + int(sb.offsetSize)
		if pos+int(sb.offsetSize) > len(buf) {
			return nil, errors.New("superblock truncated at root entry")
		}
		sb.rootAddr = readUint(buf[pos:], int(sb.offsetSize), sb.order)
	} else {
		// v2/v3: base, extension, end-of-file, then root address.
		pos := 12 + 3*int(sb.offsetSize)
		if pos+int(sb.offsetSize) > len(buf) {
			return nil, errors.New("superblock truncated at root address")
		}
		sb.rootAddr = readUint(buf[pos:], int(sb.offsetSize), sb.order)
	}
	if sb.rootAddr == 0 || sb.rootAddr == undefAddr {
		return nil, errors.New("superblock has no root group address")
	}
	return sb, nil
}

func sizeFromCode(code uint8) (uint8, bool) {
	switch code {
	case 0:
		return 1, true
	case 1:
		return 2, true
	case 2:
		return 4, true
	case 3:
		return 8, true
	default:
		return 0, false
	}
}

func validFieldSize(s uint8) bool {
	return s == 1 || s == 2 || s == 4 || s == 8
}
