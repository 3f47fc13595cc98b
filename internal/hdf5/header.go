// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hdf5

import (
	"errors"
	"fmt"
	"io"
)

// Header message types from the HDF5 specification.
const (
	msgNil            uint16 = 0
	msgDataspace      uint16 = 1
	msgLinkInfo       uint16 = 2
	msgDatatype       uint16 = 3
	msgFillValueOld   uint16 = 4
	msgFillValue      uint16 = 5
	msgLink           uint16 = 6
	msgDataLayout     uint16 = 8
	msgFilterPipeline uint16 = 11
	msgAttribute      uint16 = 12
	msgName           uint16 = 13
	msgAttributeInfo  uint16 = 15
	msgContinuation   uint16 = 16
	msgSymbolTable    uint16 = 17
)

// maxHeaderBlocks bounds the continuation chain so that a corrupted file
// cannot send the parser in circles.
const maxHeaderBlocks = 64

type headerMessage struct {
	kind uint16
	data []byte
}

type objectHeader struct {
	version  uint8
	messages []headerMessage
}

type objectKind int

const (
	objUnknown objectKind = iota
	objGroup
	objDataset
)

// kind classifies the header by its messages. A dataspace message marks a
// dataset; any of the three group storage messages marks a group.
func (h *objectHeader) kind() objectKind {
	for _, m := range h.messages {
		switch m.kind {
		case msgSymbolTable, msgLinkInfo, msgLink:
			return objGroup
		case msgDataspace:
			return objDataset
		}
	}
	return objUnknown
}

// find returns the first message of the given type, or nil.
func (h *objectHeader) find(kind uint16) []byte {
	for _, m := range h.messages {
		if m.kind == kind {
			return m.data
		}
	}
	return nil
}

func (h *objectHeader) findAll(kind uint16) [][]byte {
	var out [][]byte
	for _, m := range h.messages {
		if m.kind == kind {
			out = append(out, m.data)
		}
	}
	return out
}

type headerBlock struct {
	start uint64
	end   uint64
}

// readObjectHeader parses the object header at addr, following continuation
// messages into their blocks. Version 1 headers carry no signature and are
// recognized by their version/reserved prefix; version 2 headers start with
// "OHDR".
func readObjectHeader(r io.ReaderAt, addr uint64, sb *superblock) (*objectHeader, error) {
	prefix := make([]byte, 12)
	if _, err := r.ReadAt(prefix, int64(addr)); err != nil {
		return nil, fmt.Errorf("reading object header at 0x%x: %w", addr, err)
	}

	switch {
	case string(prefix[0:4]) == "OHDR":
		return readHeaderV2(r, addr, prefix[4], prefix[5], sb)
	case prefix[0] == 1 && prefix[1] == 0:
		return readHeaderV1(r, addr, prefix, sb)
	default:
		return nil, fmt.Errorf("no object header at 0x%x", addr)
	}
}

// readHeaderV1 parses a version 1 header. The prefix holds the message count
// and the total size of message data; messages sit after the padded 16-byte
// prefix and spill into headerless continuation blocks.
func readHeaderV1(r io.ReaderAt, addr uint64, prefix []byte, sb *superblock) (*objectHeader, error) {
	numMessages := sb.order.Uint16(prefix[2:4])
	headerSize := sb.order.Uint32(prefix[8:12])

	hdr := &objectHeader{version: 1}
	remaining := int(numMessages)
	blocks := []headerBlock{{start: addr + 16, end: addr + 16 + uint64(headerSize)}}
	seen := 0

	for len(blocks) > 0 && remaining > 0 {
		if seen++; seen > maxHeaderBlocks {
			return nil, errors.New("object header continuation chain too long")
		}
		b := blocks[0]
		blocks = blocks[1:]
		conts, err := readV1Block(r, b, &remaining, hdr, sb)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, conts...)
	}
	return hdr, nil
}

func readV1Block(r io.ReaderAt, b headerBlock, remaining *int, hdr *objectHeader, sb *superblock) ([]headerBlock, error) {
	var conts []headerBlock
	cur := b.start
	for cur+8 <= b.end && *remaining > 0 {
		head := make([]byte, 8)
		if _, err := r.ReadAt(head, int64(cur)); err != nil {
			return nil, fmt.Errorf("reading message header at 0x%x: %w", cur, err)
		}
		kind := sb.order.Uint16(head[0:2])
		size := sb.order.Uint16(head[2:4])
		*remaining--

		if size > 0 {
			if cur+8+uint64(size) > b.end {
				break
			}
			data := make([]byte, size)
			if _, err := r.ReadAt(data, int64(cur+8)); err != nil {
				return nil, fmt.Errorf("reading message body at 0x%x: %w", cur+8, err)
			}
			switch kind {
			case msgContinuation:
				cb, err := parseContinuation(data, sb)
				if err != nil {
					return nil, err
				}
				conts = append(conts, cb)
			case msgNil:
				// padding
			default:
				hdr.messages = append(hdr.messages, headerMessage{kind: kind, data: data})
			}
		}

		// v1 messages are padded to 8-byte boundaries.
		total := 8 + uint64(size)
		if total%8 != 0 {
			total += 8 - total%8
		}
		cur += total
	}
	return conts, nil
}

// parseContinuation decodes a continuation message body: block address
// (offset-sized) followed by block length (length-sized).
func parseContinuation(data []byte, sb *superblock) (headerBlock, error) {
	need := int(sb.offsetSize) + int(sb.lengthSize)
	if len(data) < need {
		return headerBlock{}, fmt.Errorf("continuation message too short: %d bytes", len(data))
	}
	addr := readUint(data, int(sb.offsetSize), sb.order)
	size := readUint(data[sb.offsetSize:], int(sb.lengthSize), sb.order)
	if size == 0 || addr == undefAddr {
		return headerBlock{}, errors.New("continuation block unallocated")
	}
	return headerBlock{start: addr, end: addr + size}, nil
}

// readHeaderV2 parses a version 2 ("OHDR") header. Optional time and phase
// change fields are sized by the flags byte, as is the chunk-size field.
func readHeaderV2(r io.ReaderAt, addr uint64, version, flags uint8, sb *superblock) (*objectHeader, error) {
	if version != 2 {
		return nil, fmt.Errorf("unsupported object header version %d", version)
	}

	cur := addr + 6
	if flags&0x20 != 0 {
		cur += 16 // four 4-byte timestamps
	}
	if flags&0x10 != 0 {
		cur += 4 // attribute phase change limits
	}
	szBytes := 1 << (flags & 0x03)
	szBuf := make([]byte, szBytes)
	if _, err := r.ReadAt(szBuf, int64(cur)); err != nil {
		return nil, fmt.Errorf("reading header chunk size at 0x%x: %w", cur, err)
	}
	chunkSize := readUint(szBuf, szBytes, sb.order)
	cur += uint64(szBytes)

	// Tracked attribute creation order adds a 2-byte field to every
	// message header.
	headSize := uint64(4)
	if flags&0x04 != 0 {
		headSize = 6
	}

	hdr := &objectHeader{version: 2}
	blocks := []headerBlock{{start: cur, end: cur + chunkSize}}
	seen := 0

	for len(blocks) > 0 {
		if seen++; seen > maxHeaderBlocks {
			return nil, errors.New("object header continuation chain too long")
		}
		b := blocks[0]
		blocks = blocks[1:]
		conts, err := readV2Block(r, b, headSize, hdr, sb)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, conts...)
	}
	return hdr, nil
}

func readV2Block(r io.ReaderAt, b headerBlock, headSize uint64, hdr *objectHeader, sb *superblock) ([]headerBlock, error) {
	var conts []headerBlock
	cur := b.start
	for cur+headSize <= b.end {
		head := make([]byte, 4)
		if _, err := r.ReadAt(head, int64(cur)); err != nil {
			return nil, fmt.Errorf("reading message header at 0x%x: %w", cur, err)
		}
		kind := uint16(head[0])
		size := sb.order.Uint16(head[1:3])

		if size > 0 {
			if cur+headSize+uint64(size) > b.end {
				break
			}
			data := make([]byte, size)
			if _, err := r.ReadAt(data, int64(cur+headSize)); err != nil {
				return nil, fmt.Errorf("reading message body at 0x%x: %w", cur+headSize, err)
			}
			switch kind {
			case msgContinuation:
				cb, err := parseContinuation(data, sb)
				if err != nil {
					return nil, err
				}
				// v2 continuation blocks open with an "OCHK" signature and
				// close with a 4-byte checksum.
				sig := make([]byte, 4)
				if _, err := r.ReadAt(sig, int64(cb.start)); err != nil {
					return nil, fmt.Errorf("reading continuation block at 0x%x: %w", cb.start, err)
				}
				if string(sig) != "OCHK" {
					return nil, fmt.Errorf("bad continuation block signature at 0x%x", cb.start)
				}
				cb.start += 4
				cb.end -= 4
				conts = append(conts, cb)
			case msgNil:
				// padding
			default:
				hdr.messages = append(hdr.messages, headerMessage{kind: kind, data: data})
			}
		}
		cur += headSize + uint64(size)
	}
	return conts, nil
}
