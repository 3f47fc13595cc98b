package hdf5

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Filter identifiers from the HDF5 registry.
const (
	filterDeflate    uint16 = 1
	filterShuffle    uint16 = 2
	filterFletcher32 uint16 = 3
)

type pipelineFilter struct {
	id         uint16
	flags      uint16
	clientData []uint32
}

// filterPipeline is the ordered list of filters applied to chunk data when it
// was written. Reading applies them in reverse.
type filterPipeline struct {
	filters []pipelineFilter
}

// parseFilterPipeline decodes a filter pipeline message, versions 1 and 2.
// Version 1 pads filter names and client data to 8-byte boundaries.
func parseFilterPipeline(data []byte) (*filterPipeline, error) {
	if len(data) < 2 {
		return nil, errors.New("filter pipeline message too short")
	}
	version := data[0]
	count := int(data[1])
	if version < 1 || version > 2 {
		return nil, fmt.Errorf("unsupported filter pipeline version %d", version)
	}

	offset := 2
	if version == 1 {
		offset += 6 // reserved
	}

	fp := &filterPipeline{filters: make([]pipelineFilter, 0, count)}
	for i := 0; i < count; i++ {
		if offset+6 > len(data) {
			return nil, fmt.Errorf("filter pipeline truncated at filter %d", i)
		}
		var f pipelineFilter
		f.id = binary.LittleEndian.Uint16(data[offset : offset+2])
		offset += 2

		var nameLen int
		if version == 1 {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("filter pipeline truncated at filter %d", i)
			}
			nameLen = int(binary.LittleEndian.Uint16(data[offset : offset+2]))
			offset += 2
		}
		if offset+4 > len(data) {
			return nil, fmt.Errorf("filter pipeline truncated at filter %d", i)
		}
		f.flags = binary.LittleEndian.Uint16(data[offset : offset+2])
		offset += 2
		numClient := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
		offset += 2

		if version == 1 && nameLen > 0 {
			padded := nameLen
			if padded%8 != 0 {
				padded += 8 - padded%8
			}
			if offset+padded > len(data) {
				return nil, fmt.Errorf("filter name truncated at filter %d", i)
			}
			offset += padded
		}

		if numClient > 0 {
			need := numClient * 4
			if offset+need > len(data) {
				return nil, fmt.Errorf("filter client data truncated at filter %d", i)
			}
			f.clientData = make([]uint32, numClient)
			for j := 0; j < numClient; j++ {
				f.clientData[j] = binary.LittleEndian.Uint32(data[offset : offset+4])
				offset += 4
			}
			if version == 1 && need%8 != 0 {
				offset += 8 - need%8
			}
		}
		fp.filters = append(fp.filters, f)
	}
	return fp, nil
}

// apply runs the pipeline in reverse over chunk bytes read from disk.
// Filters flagged optional are skipped when they fail.
func (fp *filterPipeline) apply(data []byte) ([]byte, error) {
	if fp == nil || len(fp.filters) == 0 {
		return data, nil
	}
	out := data
	for i := len(fp.filters) - 1; i >= 0; i-- {
		f := fp.filters[i]
		decoded, err := decodeFilter(f, out)
		if err != nil {
			if f.flags&0x0001 != 0 {
				continue
			}
			return nil, fmt.Errorf("filter %d: %w", f.id, err)
		}
		out = decoded
	}
	return out, nil
}

func decodeFilter(f pipelineFilter, data []byte) ([]byte, error) {
	switch f.id {
	case filterDeflate:
		return inflate(data)
	case filterShuffle:
		return unshuffle(data, f.clientData)
	case filterFletcher32:
		// Trailing 4-byte checksum, stripped without verification.
		if len(data) < 4 {
			return nil, errors.New("data too short for Fletcher32 checksum")
		}
		return data[:len(data)-4], nil
	default:
		return nil, fmt.Errorf("unsupported filter id %d", f.id)
	}
}

// inflate decompresses a zlib stream. HDF5's "deflate" filter stores zlib
// framing, not gzip.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflating chunk: %w", err)
	}
	return out, nil
}

// unshuffle reverses the byte-transposition shuffle filter. On disk the
// stream holds all first bytes, then all second bytes, and so on.
func unshuffle(data []byte, clientData []uint32) ([]byte, error) {
	if len(clientData) == 0 {
		return nil, errors.New("shuffle filter missing element size")
	}
	elemSize := int(clientData[0])
	if elemSize <= 0 || elemSize > len(data) {
		return nil, fmt.Errorf("invalid shuffle element size %d", elemSize)
	}
	if len(data)%elemSize != 0 {
		return nil, errors.New("shuffled data not a multiple of element size")
	}
	n := len(data) / elemSize
	out := make([]byte, len(data))
	for elem := 0; elem < n; elem++ {
		for b := 0; b < elemSize; b++ {
			out[elem*elemSize+b] = data[b*n+elem]
		}
	}
	return out, nil
}
