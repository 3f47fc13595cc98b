// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hdf5

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// maxDatasetBytes caps how much raw data a single Read may materialize.
// Cine loops from acquisition rigs stay well under this.
const maxDatasetBytes = 1 << 31

// Dataset is a leaf node holding an N-dimensional array.
type Dataset struct {
	file    *File
	name    string
	space   *dataspace
	dtype   *datatype
	layout  *dataLayout
	filters *filterPipeline
}

func newDataset(f *File, hdr *objectHeader, name string) (*Dataset, error) {
	d := &Dataset{file: f, name: name}

	spaceData := hdr.find(msgDataspace)
	typeData := hdr.find(msgDatatype)
	layoutData := hdr.find(msgDataLayout)
	if spaceData == nil || typeData == nil || layoutData == nil {
		return nil, fmt.Errorf("dataset %q missing required header messages", name)
	}

	var err error
	if d.space, err = parseDataspace(spaceData); err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	if d.dtype, err = parseDatatype(typeData); err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	if d.layout, err = parseDataLayout(layoutData, f.sb); err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	if pipeData := hdr.find(msgFilterPipeline); pipeData != nil {
		if d.filters, err = parseFilterPipeline(pipeData); err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
	}
	return d, nil
}

// Name returns the dataset's link name.
func (d *Dataset) Name() string { return d.name }

// Dims returns a copy of the dataset's dimensions, slowest-varying first.
func (d *Dataset) Dims() []uint64 {
	return append([]uint64(nil), d.space.dims...)
}

// Class returns the element datatype class.
func (d *Dataset) Class() DataClass { return d.dtype.class }

// ElemSize returns the element size in bytes.
func (d *Dataset) ElemSize() int { return d.dtype.size }

// Signed reports whether a fixed-point dataset holds signed values.
func (d *Dataset) Signed() bool { return d.dtype.signed }

// Layout names the storage layout: compact, contiguous or chunked.
func (d *Dataset) Layout() string { return d.layout.class.String() }

// Read materializes the dataset into memory.
func (d *Dataset) Read() (*Array, error) {
	total := d.space.elements()
	elemSize := uint64(d.dtype.size)
	if total > 0 && elemSize > maxDatasetBytes/total {
		return nil, fmt.Errorf("dataset %q too large: %d elements of %d bytes", d.name, total, elemSize)
	}
	byteLen := total * elemSize

	var raw []byte
	switch d.layout.class {
	case layoutCompact:
		if uint64(len(d.layout.compact)) < byteLen {
			return nil, fmt.Errorf("dataset %q compact data truncated", d.name)
		}
		raw = append([]byte(nil), d.layout.compact[:byteLen]...)

	case layoutContiguous:
		raw = make([]byte, byteLen)
		if d.layout.addr != undefAddr && byteLen > 0 {
			if _, err := d.file.f.ReadAt(raw, int64(d.layout.addr)); err != nil {
				return nil, fmt.Errorf("dataset %q: reading contiguous data: %w", d.name, err)
			}
		}

	case layoutChunked:
		var err error
		raw, err = d.readChunked(byteLen)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", d.name, err)
		}

	default:
		return nil, fmt.Errorf("dataset %q has unsupported layout", d.name)
	}

	return &Array{
		Dims:     d.Dims(),
		Class:    d.dtype.class,
		ElemSize: d.dtype.size,
		Signed:   d.dtype.signed,
		Data:     raw,
		order:    d.dtype.order,
	}, nil
}

// chunkRef locates one stored chunk: its scaled grid coordinate, stored byte
// count and file address.
type chunkRef struct {
	scaled []uint64
	nbytes uint32
	addr   uint64
}

// readChunked assembles a chunked dataset from its v1 b-tree index. Chunk
// dimensions on disk carry a trailing element-size dimension which is
// trimmed before placing chunks in the output array.
func (d *Dataset) readChunked(byteLen uint64) ([]byte, error) {
	chunkDims := d.layout.chunkDims
	if len(chunkDims) == 0 {
		return nil, errors.New("chunked layout without chunk dimensions")
	}
	raw := make([]byte, byteLen)
	if d.layout.addr == undefAddr {
		return raw, nil
	}

	chunks, err := collectChunks(d.file.f, d.layout.addr, d.file.sb, chunkDims, 0)
	if err != nil {
		return nil, err
	}

	dataDims := d.space.dims
	if len(chunkDims) < len(dataDims) {
		return nil, errors.New("chunk rank below dataset rank")
	}
	placeDims := chunkDims[:len(dataDims)]

	for _, c := range chunks {
		if uint64(c.nbytes) > maxDatasetBytes {
			return nil, fmt.Errorf("chunk at 0x%x unreasonably large: %d bytes", c.addr, c.nbytes)
		}
		data := make([]byte, c.nbytes)
		if _, err := d.file.f.ReadAt(data, int64(c.addr)); err != nil {
			return nil, fmt.Errorf("reading chunk at 0x%x: %w", c.addr, err)
		}
		if data, err = d.filters.apply(data); err != nil {
			return nil, fmt.Errorf("chunk at 0x%x: %w", c.addr, err)
		}
		coords := c.scaled[:len(dataDims)]
		if err := placeChunk(data, raw, coords, placeDims, dataDims, uint64(d.dtype.size)); err != nil {
			return nil, fmt.Errorf("chunk %v: %w", coords, err)
		}
	}
	return raw, nil
}

// collectChunks walks a type-1 ("raw data chunk") v1 b-tree and returns every
// chunk reference. Keys store coordinates as byte offsets; they are scaled by
// the chunk dimensions here. Internal nodes recurse.
func collectChunks(r io.ReaderAt, addr uint64, sb *superblock, chunkDims []uint64, depth int) ([]chunkRef, error) {
	if depth > maxGroupDepth {
		return nil, errors.New("chunk b-tree too deep")
	}

	rank := len(chunkDims)
	headerSize := 8 + 2*int(sb.offsetSize)
	header := make([]byte, headerSize)
	if _, err := r.ReadAt(header, int64(addr)); err != nil {
		return nil, fmt.Errorf("reading chunk b-tree node at 0x%x: %w", addr, err)
	}
	if string(header[0:4]) != "TREE" {
		return nil, fmt.Errorf("bad b-tree signature at 0x%x", addr)
	}
	if header[4] != 1 {
		return nil, fmt.Errorf("b-tree node at 0x%x has type %d, want chunk type 1", addr, header[4])
	}
	level := header[5]
	used := int(sb.order.Uint16(header[6:8]))
	if used == 0 {
		return nil, nil
	}

	// Each key is nbytes(4) + filter mask(4) + rank 8-byte coordinates.
	// Keys and children alternate, with one trailing key.
	keySize := 8 + rank*8
	body := make([]byte, used*(keySize+int(sb.offsetSize))+keySize)
	if _, err := r.ReadAt(body, int64(addr)+int64(headerSize)); err != nil {
		return nil, fmt.Errorf("reading chunk b-tree entries at 0x%x: %w", addr, err)
	}

	var out []chunkRef
	pos := 0
	for i := 0; i < used; i++ {
		nbytes := sb.order.Uint32(body[pos : pos+4])
		pos += 8 // nbytes + filter mask
		scaled := make([]uint64, rank)
		for j := 0; j < rank; j++ {
			byteOffset := sb.order.Uint64(body[pos : pos+8])
			pos += 8
			if chunkDims[j] == 0 {
				return nil, fmt.Errorf("chunk dimension %d is zero", j)
			}
			scaled[j] = byteOffset / chunkDims[j]
		}
		childAddr := readUint(body[pos:], int(sb.offsetSize), sb.order)
		pos += int(sb.offsetSize)

		if level == 0 {
			out = append(out, chunkRef{scaled: scaled, nbytes: nbytes, addr: childAddr})
			continue
		}
		sub, err := collectChunks(r, childAddr, sb, chunkDims, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// placeChunk copies one decoded chunk into the full array, clamping at the
// dataset boundary for partial edge chunks. Rows along the fastest-varying
// dimension are copied contiguously.
func placeChunk(chunk, full []byte, coords, chunkDims, dataDims []uint64, elemSize uint64) error {
	rank := len(coords)
	if rank == 0 || rank != len(chunkDims) || rank != len(dataDims) {
		return errors.New("chunk rank mismatch")
	}

	chunkStrides := make([]uint64, rank)
	dataStrides := make([]uint64, rank)
	chunkStrides[rank-1] = 1
	dataStrides[rank-1] = 1
	for i := rank - 2; i >= 0; i-- {
		chunkStrides[i] = chunkStrides[i+1] * chunkDims[i+1]
		dataStrides[i] = dataStrides[i+1] * dataDims[i+1]
	}

	copyDims := make([]uint64, rank)
	base := uint64(0)
	for i := 0; i < rank; i++ {
		start := coords[i] * chunkDims[i]
		if start >= dataDims[i] {
			return fmt.Errorf("chunk coordinate %v outside dataset", coords)
		}
		copyDims[i] = chunkDims[i]
		if start+copyDims[i] > dataDims[i] {
			copyDims[i] = dataDims[i] - start
		}
		base += start * dataStrides[i]
	}

	idx := make([]uint64, rank)
	return placeRows(chunk, full, idx, 0, copyDims, chunkStrides, dataStrides, base, elemSize)
}

func placeRows(chunk, full []byte, idx []uint64, dim int, copyDims, chunkStrides, dataStrides []uint64, base, elemSize uint64) error {
	rank := len(idx)
	if dim == rank-1 {
		var chunkOff, dataOff uint64
		for i := 0; i < rank-1; i++ {
			chunkOff += idx[i] * chunkStrides[i]
			dataOff += idx[i] * dataStrides[i]
		}
		chunkOff *= elemSize
		dataOff = (dataOff + base) * elemSize
		rowBytes := copyDims[dim] * elemSize

		if chunkOff+rowBytes > uint64(len(chunk)) {
			return fmt.Errorf("chunk data truncated: need %d bytes at %d", rowBytes, chunkOff)
		}
		if dataOff+rowBytes > uint64(len(full)) {
			return fmt.Errorf("chunk overruns dataset: %d bytes at %d", rowBytes, dataOff)
		}
		copy(full[dataOff:dataOff+rowBytes], chunk[chunkOff:chunkOff+rowBytes])
		return nil
	}
	for idx[dim] = 0; idx[dim] < copyDims[dim]; idx[dim]++ {
		if err := placeRows(chunk, full, idx, dim+1, copyDims, chunkStrides, dataStrides, base, elemSize); err != nil {
			return err
		}
	}
	return nil
}

// Array is a dataset read into memory: raw element bytes plus the shape and
// type needed to decode them.
type Array struct {
	Dims     []uint64
	Class    DataClass
	ElemSize int
	Signed   bool
	Data     []byte

	order binary.ByteOrder
}

// Len returns the number of elements.
func (a *Array) Len() int {
	if a.ElemSize == 0 {
		return 0
	}
	return len(a.Data) / a.ElemSize
}

// Bytes returns the raw element bytes in row-major order.
func (a *Array) Bytes() []byte { return a.Data }

// Ints decodes a fixed-point array to int64 values.
func (a *Array) Ints() ([]int64, error) {
	if a.Class != ClassFixed {
		return nil, fmt.Errorf("cannot decode %s data as integers", a.Class)
	}
	n := a.Len()
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		u := readUint(a.Data[i*a.ElemSize:], a.ElemSize, a.order)
		if a.Signed {
			out[i] = signExtend(u, a.ElemSize)
		} else {
			out[i] = int64(u)
		}
	}
	return out, nil
}

// Floats decodes a numeric array to float64 values. Fixed-point elements of
// any width and 32/64-bit floats are supported.
func (a *Array) Floats() ([]float64, error) {
	n := a.Len()
	out := make([]float64, n)
	switch {
	case a.Class == ClassFloat && a.ElemSize == 8:
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(a.order.Uint64(a.Data[i*8:]))
		}
	case a.Class == ClassFloat && a.ElemSize == 4:
		for i := 0; i < n; i++ {
			out[i] = float64(math.Float32frombits(a.order.Uint32(a.Data[i*4:])))
		}
	case a.Class == ClassFixed:
		for i := 0; i < n; i++ {
			u := readUint(a.Data[i*a.ElemSize:], a.ElemSize, a.order)
			if a.Signed {
				out[i] = float64(signExtend(u, a.ElemSize))
			} else {
				out[i] = float64(u)
			}
		}
	default:
		return nil, fmt.Errorf("cannot decode %s data of %d bytes as floats", a.Class, a.ElemSize)
	}
	return out, nil
}

func signExtend(u uint64, size int) int64 {
	switch size {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}
