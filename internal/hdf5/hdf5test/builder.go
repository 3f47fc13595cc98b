// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hdf5test builds small, well-formed HDF5 files in memory for tests.
// Files use a version 0 superblock, version 1 object headers and old-style
// symbol table groups, matching what acquisition rigs write.
package hdf5test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/pdiddy/sonoexport/internal/hdf5"
)

const undef = ^uint64(0)

// Filter identifiers accepted by Chunked dataset specs.
const (
	FilterDeflate uint16 = 1
	FilterShuffle uint16 = 2
)

type dsSpec struct {
	dims      []uint64
	class     uint32
	elemSize  int
	signed    bool
	data      []byte
	chunkDims []uint64
	filters   []uint16
}

type node struct {
	name     string
	order    []string
	children map[string]*node
	ds       *dsSpec
}

func newNode(name string) *node {
	return &node{name: name, children: make(map[string]*node)}
}

// Builder accumulates groups and datasets and serializes them as one file.
type Builder struct {
	root *node
}

// New returns an empty builder holding just a root group.
func New() *Builder {
	return &Builder{root: newNode("/")}
}

func (b *Builder) ensure(path string) *node {
	cur := b.root
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		next, ok := cur.children[part]
		if !ok {
			next = newNode(part)
			cur.children[part] = next
			cur.order = append(cur.order, part)
		}
		cur = next
	}
	return cur
}

// Group adds an empty group at the given slash-separated path.
func (b *Builder) Group(path string) *Builder {
	b.ensure(path)
	return b
}

func (b *Builder) dataset(path string, spec *dsSpec) *Builder {
	n := b.ensure(path)
	n.ds = spec
	return b
}

// Uint8 adds a contiguous unsigned 8-bit dataset.
func (b *Builder) Uint8(path string, dims []uint64, data []byte) *Builder {
	return b.dataset(path, &dsSpec{dims: dims, class: 0, elemSize: 1, data: append([]byte(nil), data...)})
}

// Uint16 adds a contiguous unsigned 16-bit dataset.
func (b *Builder) Uint16(path string, dims []uint64, vals []uint16) *Builder {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	return b.dataset(path, &dsSpec{dims: dims, class: 0, elemSize: 2, data: data})
}

// Int32 adds a contiguous signed 32-bit dataset.
func (b *Builder) Int32(path string, dims []uint64, vals []int32) *Builder {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[4*i:], uint32(v))
	}
	return b.dataset(path, &dsSpec{dims: dims, class: 0, elemSize: 4, signed: true, data: data})
}

// Float32 adds a contiguous 32-bit float dataset.
func (b *Builder) Float32(path string, dims []uint64, vals []float32) *Builder {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return b.dataset(path, &dsSpec{dims: dims, class: 1, elemSize: 4, data: data})
}

// ChunkedUint16 adds a chunked unsigned 16-bit dataset. Filters are applied
// in the given order when chunks are stored, as a writer would.
func (b *Builder) ChunkedUint16(path string, dims, chunkDims []uint64, vals []uint16, filters ...uint16) *Builder {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	return b.dataset(path, &dsSpec{
		dims: dims, class: 0, elemSize: 2, data: data,
		chunkDims: append([]uint64(nil), chunkDims...),
		filters:   filters,
	})
}

// Bytes serializes the tree to a complete file image.
func (b *Builder) Bytes() []byte {
	e := &emitter{buf: make([]byte, 96)} // superblock v0 with root entry
	rootAddr := e.object(b.root)
	e.superblock(rootAddr)
	return e.buf
}

// WriteFile serializes the tree into dir under the given name.
func (b *Builder) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for fixture: %v", err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

type emitter struct {
	buf []byte
}

// next returns the 8-aligned address where the next append lands.
func (e *emitter) next() uint64 {
	for len(e.buf)%8 != 0 {
		e.buf = append(e.buf, 0)
	}
	return uint64(len(e.buf))
}

func (e *emitter) append(data []byte) uint64 {
	addr := e.next()
	e.buf = append(e.buf, data...)
	return addr
}

func (e *emitter) superblock(rootAddr uint64) {
	copy(e.buf[0:8], hdf5.Signature)
	e.buf[13] = 8 // offset size
	e.buf[14] = 8 // length size
	binary.LittleEndian.PutUint16(e.buf[16:18], 4)  // leaf node k
	binary.LittleEndian.PutUint16(e.buf[18:20], 16) // internal node k
	binary.LittleEndian.PutUint64(e.buf[32:40], undef)
	binary.LittleEndian.PutUint64(e.buf[40:48], uint64(len(e.buf)))
	binary.LittleEndian.PutUint64(e.buf[48:56], undef)
	binary.LittleEndian.PutUint64(e.buf[64:72], rootAddr)
}

// object emits a node and everything below it, returning the object header
// address.
func (e *emitter) object(n *node) uint64 {
	if n.ds != nil {
		return e.datasetObject(n.ds)
	}

	names := append([]string(nil), n.order...)
	sort.Strings(names)
	type childRef struct {
		name string
		addr uint64
	}
	refs := make([]childRef, 0, len(names))
	for _, name := range names {
		refs = append(refs, childRef{name: name, addr: e.object(n.children[name])})
	}

	// Local heap: a NUL at offset 0, then names at 8-aligned offsets.
	var seg []byte
	seg = append(seg, 0)
	offsets := make([]uint64, len(refs))
	for i, ref := range refs {
		for len(seg)%8 != 0 {
			seg = append(seg, 0)
		}
		offsets[i] = uint64(len(seg))
		seg = append(seg, []byte(ref.name)...)
		seg = append(seg, 0)
	}
	for len(seg)%8 != 0 {
		seg = append(seg, 0)
	}
	heapAddr := e.next()
	heap := make([]byte, 32, 32+len(seg))
	copy(heap[0:4], "HEAP")
	binary.LittleEndian.PutUint64(heap[8:16], uint64(len(seg)))
	binary.LittleEndian.PutUint64(heap[16:24], 1) // no free list
	binary.LittleEndian.PutUint64(heap[24:32], heapAddr+32)
	heap = append(heap, seg...)
	e.append(heap)

	// Symbol table node with one entry per child.
	snod := make([]byte, 8+40*len(refs))
	copy(snod[0:4], "SNOD")
	snod[4] = 1
	binary.LittleEndian.PutUint16(snod[6:8], uint16(len(refs)))
	for i, ref := range refs {
		off := 8 + 40*i
		binary.LittleEndian.PutUint64(snod[off:], offsets[i])
		binary.LittleEndian.PutUint64(snod[off+8:], ref.addr)
	}
	snodAddr := e.append(snod)

	// Single-leaf name b-tree pointing at the symbol table node.
	btree := make([]byte, 8+2*8+3*8)
	copy(btree[0:4], "TREE")
	btree[4] = 0
	btree[5] = 0
	if len(refs) > 0 {
		binary.LittleEndian.PutUint16(btree[6:8], 1)
	}
	binary.LittleEndian.PutUint64(btree[8:16], undef)
	binary.LittleEndian.PutUint64(btree[16:24], undef)
	binary.LittleEndian.PutUint64(btree[32:40], snodAddr)
	btreeAddr := e.append(btree)

	stab := make([]byte, 16)
	binary.LittleEndian.PutUint64(stab[0:8], btreeAddr)
	binary.LittleEndian.PutUint64(stab[8:16], heapAddr)
	return e.append(v1Header(message{17, stab}))
}

func (e *emitter) datasetObject(ds *dsSpec) uint64 {
	var layout []byte
	switch {
	case ds.chunkDims == nil:
		dataAddr := e.append(ds.data)
		layout = contiguousLayout(dataAddr, uint64(len(ds.data)))
	default:
		btreeAddr := e.chunks(ds)
		layout = chunkedLayout(btreeAddr, ds.chunkDims, ds.elemSize)
	}

	msgs := []message{
		{1, dataspaceMsg(ds.dims)},
		{3, datatypeMsg(ds.class, ds.elemSize, ds.signed)},
		{8, layout},
	}
	if len(ds.filters) > 0 {
		msgs = append(msgs, message{11, filterMsg(ds.filters, ds.elemSize)})
	}
	return e.append(v1Header(msgs...))
}

// chunks stores every chunk of a chunked dataset and its index b-tree,
// returning the b-tree address. Edge chunks are stored full-size.
func (e *emitter) chunks(ds *dsSpec) uint64 {
	rank := len(ds.dims)
	grid := make([]uint64, rank)
	cells := uint64(1)
	for i := range grid {
		grid[i] = (ds.dims[i] + ds.chunkDims[i] - 1) / ds.chunkDims[i]
		cells *= grid[i]
	}

	type chunkOut struct {
		offsets []uint64 // byte offsets, including trailing element dim
		nbytes  uint32
		addr    uint64
	}
	var stored []chunkOut

	coord := make([]uint64, rank)
	for cell := uint64(0); cell < cells; cell++ {
		block := extractChunk(ds.data, ds.dims, ds.chunkDims, coord, ds.elemSize)
		for _, id := range ds.filters {
			block = applyForward(id, block, ds.elemSize)
		}
		addr := e.append(block)

		offsets := make([]uint64, rank+1)
		for i := 0; i < rank; i++ {
			offsets[i] = coord[i] * ds.chunkDims[i]
		}
		stored = append(stored, chunkOut{offsets: offsets, nbytes: uint32(len(block)), addr: addr})

		for i := rank - 1; i >= 0; i-- {
			coord[i]++
			if coord[i] < grid[i] {
				break
			}
			coord[i] = 0
		}
	}

	keySize := 8 + (rank+1)*8
	btree := make([]byte, 8+2*8+len(stored)*(keySize+8)+keySize)
	copy(btree[0:4], "TREE")
	btree[4] = 1
	btree[5] = 0
	binary.LittleEndian.PutUint16(btree[6:8], uint16(len(stored)))
	binary.LittleEndian.PutUint64(btree[8:16], undef)
	binary.LittleEndian.PutUint64(btree[16:24], undef)
	pos := 24
	for _, c := range stored {
		binary.LittleEndian.PutUint32(btree[pos:], c.nbytes)
		pos += 8 // nbytes + filter mask
		for _, off := range c.offsets {
			binary.LittleEndian.PutUint64(btree[pos:], off)
			pos += 8
		}
		binary.LittleEndian.PutUint64(btree[pos:], c.addr)
		pos += 8
	}
	// Trailing sentinel key: one past the last chunk in every dimension.
	pos += 8
	for i := 0; i < rank; i++ {
		binary.LittleEndian.PutUint64(btree[pos:], grid[i]*ds.chunkDims[i])
		pos += 8
	}
	return e.append(btree)
}

// extractChunk copies one full-size chunk block out of row-major data,
// zero-filling past the dataset boundary.
func extractChunk(full []byte, dims, chunkDims, coord []uint64, elemSize int) []byte {
	rank := len(dims)
	srcStrides := make([]uint64, rank)
	dstStrides := make([]uint64, rank)
	srcStrides[rank-1] = 1
	dstStrides[rank-1] = 1
	for i := rank - 2; i >= 0; i-- {
		srcStrides[i] = srcStrides[i+1] * dims[i+1]
		dstStrides[i] = dstStrides[i+1] * chunkDims[i+1]
	}
	total := uint64(1)
	for _, d := range chunkDims {
		total *= d
	}
	out := make([]byte, total*uint64(elemSize))

	var rec func(dim int, srcIdx, dstIdx uint64)
	rec = func(dim int, srcIdx, dstIdx uint64) {
		start := coord[dim] * chunkDims[dim]
		if dim == rank-1 {
			if start >= dims[dim] {
				return
			}
			n := chunkDims[dim]
			if start+n > dims[dim] {
				n = dims[dim] - start
			}
			src := (srcIdx + start) * uint64(elemSize)
			dst := dstIdx * uint64(elemSize)
			copy(out[dst:dst+n*uint64(elemSize)], full[src:src+n*uint64(elemSize)])
			return
		}
		for i := uint64(0); i < chunkDims[dim]; i++ {
			if start+i >= dims[dim] {
				break
			}
			rec(dim+1, srcIdx+(start+i)*srcStrides[dim], dstIdx+i*dstStrides[dim])
		}
	}
	rec(0, 0, 0)
	return out
}

func applyForward(id uint16, data []byte, elemSize int) []byte {
	switch id {
	case FilterShuffle:
		n := len(data) / elemSize
		out := make([]byte, len(data))
		for elem := 0; elem < n; elem++ {
			for b := 0; b < elemSize; b++ {
				out[b*n+elem] = data[elem*elemSize+b]
			}
		}
		return out
	case FilterDeflate:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		zw.Write(data)
		zw.Close()
		return buf.Bytes()
	default:
		return data
	}
}

type message struct {
	kind uint16
	data []byte
}

// v1Header assembles a version 1 object header. Message bodies here are
// always pre-padded to 8-byte multiples, so no alignment gaps are needed.
func v1Header(msgs ...message) []byte {
	size := 0
	for _, m := range msgs {
		size += 8 + len(m.data)
	}
	out := make([]byte, 16, 16+size)
	out[0] = 1
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(msgs)))
	binary.LittleEndian.PutUint32(out[4:8], 1)
	binary.LittleEndian.PutUint32(out[8:12], uint32(size))
	for _, m := range msgs {
		head := make([]byte, 8)
		binary.LittleEndian.PutUint16(head[0:2], m.kind)
		binary.LittleEndian.PutUint16(head[2:4], uint16(len(m.data)))
		out = append(out, head...)
		out = append(out, m.data...)
	}
	return out
}

func dataspaceMsg(dims []uint64) []byte {
	out := make([]byte, 8+8*len(dims))
	out[0] = 1
	out[1] = uint8(len(dims))
	for i, d := range dims {
		binary.LittleEndian.PutUint64(out[8+8*i:], d)
	}
	return out
}

func datatypeMsg(class uint32, elemSize int, signed bool) []byte {
	var bits uint32
	if signed {
		bits |= 0x08
	}
	var out []byte
	if class == 1 {
		// float: bit offset, precision, exponent and mantissa fields, bias
		out = make([]byte, 24)
		binary.LittleEndian.PutUint16(out[10:12], uint16(8*elemSize))
		out[12] = 23
		out[13] = 8
		out[15] = 23
		binary.LittleEndian.PutUint32(out[16:20], 127)
		bits |= 0x20 // implied mantissa bit
	} else {
		// fixed: bit offset and precision
		out = make([]byte, 16)
		binary.LittleEndian.PutUint16(out[10:12], uint16(8*elemSize))
	}
	binary.LittleEndian.PutUint32(out[0:4], class|1<<4|bits<<8)
	binary.LittleEndian.PutUint32(out[4:8], uint32(elemSize))
	return out
}

func contiguousLayout(addr, size uint64) []byte {
	out := make([]byte, 24)
	out[0] = 3
	out[1] = 1
	binary.LittleEndian.PutUint64(out[2:10], addr)
	binary.LittleEndian.PutUint64(out[10:18], size)
	return out
}

func chunkedLayout(btreeAddr uint64, chunkDims []uint64, elemSize int) []byte {
	rank := len(chunkDims) + 1
	size := 3 + 8 + 4*rank
	for size%8 != 0 {
		size++
	}
	out := make([]byte, size)
	out[0] = 3
	out[1] = 2
	out[2] = uint8(rank)
	binary.LittleEndian.PutUint64(out[3:11], btreeAddr)
	pos := 11
	for _, d := range chunkDims {
		binary.LittleEndian.PutUint32(out[pos:], uint32(d))
		pos += 4
	}
	binary.LittleEndian.PutUint32(out[pos:], uint32(elemSize))
	return out
}

func filterMsg(ids []uint16, elemSize int) []byte {
	out := make([]byte, 8, 8+16*len(ids))
	out[0] = 1
	out[1] = uint8(len(ids))
	for _, id := range ids {
		f := make([]byte, 16)
		binary.LittleEndian.PutUint16(f[0:2], id)
		binary.LittleEndian.PutUint16(f[6:8], 1) // one client value
		client := uint32(6)                      // deflate level
		if id == FilterShuffle {
			client = uint32(elemSize)
		}
		binary.LittleEndian.PutUint32(f[8:12], client)
		out = append(out, f...)
	}
	return out
}
