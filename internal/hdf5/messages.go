// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hdf5

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// dataspace describes the extent of a dataset.
type dataspace struct {
	dims    []uint64
	maxDims []uint64
}

// parseDataspace decodes a dataspace message, versions 1 and 2. Scalar
// dataspaces are treated as one-element arrays. Dimension fields are nominally
// 4 bytes in version 1, but files written against v0 superblocks use 8; the
// width is detected from the message length.
func parseDataspace(data []byte) (*dataspace, error) {
	if len(data) < 3 {
		return nil, errors.New("dataspace message too short")
	}
	version := data[0]
	rank := int(data[1])
	flags := data[2]
	hasMax := flags&0x01 != 0

	if version != 1 && version != 2 {
		return nil, fmt.Errorf("unsupported dataspace version %d", version)
	}
	if rank == 0 {
		return &dataspace{dims: []uint64{1}}, nil
	}

	offset := 4
	if version == 1 {
		offset = 8
	}
	fields := rank
	if hasMax {
		fields *= 2
	}
	dimSize := 4
	if len(data) >= offset+fields*8 {
		dimSize = 8
	} else if len(data) < offset+fields*4 {
		return nil, fmt.Errorf("dataspace message truncated: %d bytes for rank %d", len(data), rank)
	}

	ds := &dataspace{dims: make([]uint64, rank)}
	for i := 0; i < rank; i++ {
		ds.dims[i] = readUint(data[offset:], dimSize, binary.LittleEndian)
		offset += dimSize
	}
	if hasMax {
		ds.maxDims = make([]uint64, rank)
		for i := 0; i < rank; i++ {
			ds.maxDims[i] = readUint(data[offset:], dimSize, binary.LittleEndian)
			offset += dimSize
		}
	}
	return ds, nil
}

// elements returns the product of the dimensions.
func (ds *dataspace) elements() uint64 {
	total := uint64(1)
	for _, d := range ds.dims {
		total *= d
	}
	return total
}

// datatype describes the element type of a dataset.
type datatype struct {
	class   DataClass
	size    int
	signed  bool
	order   binary.ByteOrder
	version uint8
}

// parseDatatype decodes a datatype message. The first word packs class,
// version and a class-specific bitfield; for fixed and float types bit 0 of
// the bitfield selects byte order and, for fixed types, bit 3 signedness.
func parseDatatype(data []byte) (*datatype, error) {
	if len(data) < 8 {
		return nil, errors.New("datatype message too short")
	}
	packed := binary.LittleEndian.Uint32(data[0:4])
	dt := &datatype{
		class:   DataClass(packed & 0x0F),
		version: uint8((packed >> 4) & 0x0F),
		size:    int(binary.LittleEndian.Uint32(data[4:8])),
		order:   binary.LittleEndian,
	}
	bits := packed >> 8
	if bits&0x01 != 0 {
		dt.order = binary.BigEndian
	}
	dt.signed = dt.class == ClassFixed && bits&0x08 != 0
	if dt.size <= 0 {
		return nil, fmt.Errorf("datatype has invalid size %d", dt.size)
	}
	return dt, nil
}

type layoutClass uint8

const (
	layoutCompact    layoutClass = 0
	layoutContiguous layoutClass = 1
	layoutChunked    layoutClass = 2
)

func (c layoutClass) String() string {
	switch c {
	case layoutCompact:
		return "compact"
	case layoutContiguous:
		return "contiguous"
	case layoutChunked:
		return "chunked"
	default:
		return "unknown"
	}
}

// dataLayout describes where a dataset's raw bytes live.
type dataLayout struct {
	class   layoutClass
	addr    uint64
	size    uint64
	compact []byte

	// chunkDims carries the extra trailing element-size dimension the
	// format stores for chunked layouts.
	chunkDims []uint64
}

// parseDataLayout decodes a data layout message, versions 3 and 4. Earlier
// layout versions predate HDF5 1.6 and never occur in scan containers.
func parseDataLayout(data []byte, sb *superblock) (*dataLayout, error) {
	if len(data) < 2 {
		return nil, errors.New("data layout message too short")
	}
	version := data[0]
	if version < 3 || version > 4 {
		return nil, fmt.Errorf("unsupported data layout version %d", version)
	}

	dl := &dataLayout{class: layoutClass(data[1])}
	switch dl.class {
	case layoutCompact:
		if len(data) < 4 {
			return nil, errors.New("compact layout message too short")
		}
		size := binary.LittleEndian.Uint16(data[2:4])
		if len(data) < 4+int(size) {
			return nil, errors.New("compact layout data truncated")
		}
		dl.compact = append([]byte(nil), data[4:4+size]...)
		dl.size = uint64(size)

	case layoutContiguous:
		need := 2 + int(sb.offsetSize) + int(sb.lengthSize)
		if len(data) < need {
			return nil, errors.New("contiguous layout message too short")
		}
		dl.addr = readUint(data[2:], int(sb.offsetSize), sb.order)
		dl.size = readUint(data[2+sb.offsetSize:], int(sb.lengthSize), sb.order)

	case layoutChunked:
		// v4 re-encodes chunked storage (flags, variable dim width);
		// nothing in scope writes it.
		if version != 3 {
			return nil, fmt.Errorf("unsupported chunked layout version %d", version)
		}
		if len(data) < 3 {
			return nil, errors.New("chunked layout message too short")
		}
		rank := int(data[2])
		offset := 3
		if offset+int(sb.offsetSize) > len(data) {
			return nil, errors.New("chunked layout address truncated")
		}
		dl.addr = readUint(data[offset:], int(sb.offsetSize), sb.order)
		offset += int(sb.offsetSize)
		dl.chunkDims = make([]uint64, rank)
		for i := 0; i < rank; i++ {
			if offset+4 > len(data) {
				return nil, fmt.Errorf("chunked layout dimension %d truncated", i)
			}
			dl.chunkDims[i] = uint64(binary.LittleEndian.Uint32(data[offset : offset+4]))
			offset += 4
		}

	default:
		return nil, fmt.Errorf("unsupported layout class %d", dl.class)
	}
	return dl, nil
}

// symbolTableInfo is the payload of a symbol table message: the addresses of
// the group's name b-tree and local heap.
type symbolTableInfo struct {
	btreeAddr uint64
	heapAddr  uint64
}

func parseSymbolTableMessage(data []byte, sb *superblock) (*symbolTableInfo, error) {
	if len(data) < 2*int(sb.offsetSize) {
		return nil, errors.New("symbol table message too short")
	}
	return &symbolTableInfo{
		btreeAddr: readUint(data, int(sb.offsetSize), sb.order),
		heapAddr:  readUint(data[sb.offsetSize:], int(sb.offsetSize), sb.order),
	}, nil
}

// linkMessage is a new-style group link. Only hard links carry an object
// address; soft and external link targets are ignored by this reader.
type linkMessage struct {
	name     string
	linkType uint8
	addr     uint64
}

const (
	linkTypeHard = 0
	linkTypeSoft = 1
)

func parseLinkMessage(data []byte, sb *superblock) (*linkMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("link message too short")
	}
	if data[0] != 1 {
		return nil, fmt.Errorf("unsupported link message version %d", data[0])
	}
	flags := data[1]
	cur := 2

	lm := &linkMessage{linkType: linkTypeHard}
	if flags&0x08 != 0 {
		if cur >= len(data) {
			return nil, errors.New("link message truncated at type")
		}
		lm.linkType = data[cur]
		cur++
	}
	if flags&0x04 != 0 {
		cur += 8 // creation order
	}
	if flags&0x10 != 0 {
		cur++ // character set
	}

	nameLenSize := 1 << (flags & 0x03)
	if cur+nameLenSize > len(data) {
		return nil, errors.New("link message truncated at name length")
	}
	nameLen := int(readUint(data[cur:], nameLenSize, binary.LittleEndian))
	cur += nameLenSize
	if cur+nameLen > len(data) {
		return nil, errors.New("link message truncated at name")
	}
	lm.name = string(data[cur : cur+nameLen])
	cur += nameLen

	if lm.linkType == linkTypeHard {
		if cur+int(sb.offsetSize) > len(data) {
			return nil, errors.New("link message truncated at address")
		}
		lm.addr = readUint(data[cur:], int(sb.offsetSize), sb.order)
	}
	return lm, nil
}
