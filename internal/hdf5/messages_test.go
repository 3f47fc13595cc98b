// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hdf5

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leSuperblock() *superblock {
	return &superblock{offsetSize: 8, lengthSize: 8, order: binary.LittleEndian}
}

func TestReadSuperblockV0(t *testing.T) {
	buf := make([]byte, 96)
	copy(buf[0:8], Signature)
	buf[8] = 0  // superblock version
	buf[13] = 8 // offset size
	buf[14] = 8 // length size
	binary.LittleEndian.PutUint64(buf[40:48], 96)     // end of file
	binary.LittleEndian.PutUint64(buf[64:72], 0x0400) // root object header

	sb, err := readSuperblock(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), sb.version)
	assert.Equal(t, uint8(8), sb.offsetSize)
	assert.Equal(t, uint8(8), sb.lengthSize)
	assert.Equal(t, uint64(0x0400), sb.rootAddr)
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), sb.order)
}

func TestReadSuperblockV2(t *testing.T) {
	buf := make([]byte, 48)
	copy(buf[0:8], Signature)
	buf[8] = 2  // superblock version
	buf[9] = 0  // flags, bit 0 clear = little endian
	buf[10] = 8 // direct offset size
	binary.LittleEndian.PutUint64(buf[12:20], 0)          // base address
	binary.LittleEndian.PutUint64(buf[20:28], ^uint64(0)) // extension
	binary.LittleEndian.PutUint64(buf[28:36], 4096)       // end of file
	binary.LittleEndian.PutUint64(buf[36:44], 48)         // root group

	sb, err := readSuperblock(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, uint8(2), sb.version)
	assert.Equal(t, uint8(8), sb.offsetSize)
	assert.Equal(t, uint8(8), sb.lengthSize)
	assert.Equal(t, uint64(48), sb.rootAddr)
}

func TestReadSuperblockPackedSizes(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf[0:8], Signature)
	buf[8] = 3
	buf[10] = 0x33 // packed nibbles: offset code 3, length code 3 -> 8 and 8
	binary.LittleEndian.PutUint64(buf[36:44], 64)

	sb, err := readSuperblock(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, uint8(8), sb.offsetSize)
	assert.Equal(t, uint8(8), sb.lengthSize)
}

func TestReadSuperblockRejectsBadMagic(t *testing.T) {
	buf := make([]byte, 96)
	copy(buf[0:8], "notahdf5")
	_, err := readSuperblock(bytes.NewReader(buf))
	assert.ErrorIs(t, err, ErrSignature)
}

func TestReadSuperblockRejectsShortFile(t *testing.T) {
	_, err := readSuperblock(bytes.NewReader([]byte("\x89HDF\r\n\x1a\n")))
	assert.ErrorIs(t, err, ErrSignature)
}

func TestParseDataspace(t *testing.T) {
	t.Run("v1 with 8-byte dimensions", func(t *testing.T) {
		data := make([]byte, 8+16)
		data[0] = 1 // version
		data[1] = 2 // rank
		binary.LittleEndian.PutUint64(data[8:16], 480)
		binary.LittleEndian.PutUint64(data[16:24], 640)

		ds, err := parseDataspace(data)
		require.NoError(t, err)
		assert.Equal(t, []uint64{480, 640}, ds.dims)
		assert.Equal(t, uint64(480*640), ds.elements())
	})

	t.Run("v2 with 4-byte dimensions", func(t *testing.T) {
		data := make([]byte, 4+8)
		data[0] = 2 // version
		data[1] = 2 // rank
		data[3] = 1 // dataspace type: simple
		binary.LittleEndian.PutUint32(data[4:8], 3)
		binary.LittleEndian.PutUint32(data[8:12], 5)

		ds, err := parseDataspace(data)
		require.NoError(t, err)
		assert.Equal(t, []uint64{3, 5}, ds.dims)
	})

	t.Run("scalar", func(t *testing.T) {
		data := make([]byte, 8)
		data[0] = 1
		ds, err := parseDataspace(data)
		require.NoError(t, err)
		assert.Equal(t, []uint64{1}, ds.dims)
	})

	t.Run("max dimensions present", func(t *testing.T) {
		data := make([]byte, 8+16)
		data[0] = 1
		data[1] = 1
		data[2] = 0x01 // max dims flag
		binary.LittleEndian.PutUint64(data[8:16], 12)
		binary.LittleEndian.PutUint64(data[16:24], ^uint64(0))

		ds, err := parseDataspace(data)
		require.NoError(t, err)
		assert.Equal(t, []uint64{12}, ds.dims)
		assert.Equal(t, []uint64{^uint64(0)}, ds.maxDims)
	})

	t.Run("truncated", func(t *testing.T) {
		data := []byte{1, 4, 0, 0, 0, 0, 0, 0, 1, 2}
		_, err := parseDataspace(data)
		assert.Error(t, err)
	})

	t.Run("unsupported version", func(t *testing.T) {
		_, err := parseDataspace([]byte{3, 1, 0, 0})
		assert.Error(t, err)
	})
}

func TestParseDatatype(t *testing.T) {
	t.Run("unsigned 16-bit fixed", func(t *testing.T) {
		data := make([]byte, 16)
		binary.LittleEndian.PutUint32(data[0:4], 0|1<<4) // class 0, version 1
		binary.LittleEndian.PutUint32(data[4:8], 2)

		dt, err := parseDatatype(data)
		require.NoError(t, err)
		assert.Equal(t, ClassFixed, dt.class)
		assert.Equal(t, 2, dt.size)
		assert.False(t, dt.signed)
		assert.Equal(t, binary.ByteOrder(binary.LittleEndian), dt.order)
	})

	t.Run("signed 32-bit fixed", func(t *testing.T) {
		data := make([]byte, 16)
		binary.LittleEndian.PutUint32(data[0:4], 0|1<<4|0x08<<8)
		binary.LittleEndian.PutUint32(data[4:8], 4)

		dt, err := parseDatatype(data)
		require.NoError(t, err)
		assert.True(t, dt.signed)
		assert.Equal(t, 4, dt.size)
	})

	t.Run("big endian float", func(t *testing.T) {
		data := make([]byte, 24)
		binary.LittleEndian.PutUint32(data[0:4], 1|1<<4|0x01<<8)
		binary.LittleEndian.PutUint32(data[4:8], 4)

		dt, err := parseDatatype(data)
		require.NoError(t, err)
		assert.Equal(t, ClassFloat, dt.class)
		assert.Equal(t, binary.ByteOrder(binary.BigEndian), dt.order)
	})

	t.Run("zero size rejected", func(t *testing.T) {
		data := make([]byte, 8)
		binary.LittleEndian.PutUint32(data[0:4], 0|1<<4)
		_, err := parseDatatype(data)
		assert.Error(t, err)
	})
}

func TestParseDataLayout(t *testing.T) {
	sb := leSuperblock()

	t.Run("contiguous v3", func(t *testing.T) {
		data := make([]byte, 18)
		data[0] = 3 // version
		data[1] = 1 // contiguous
		binary.LittleEndian.PutUint64(data[2:10], 0x2000)
		binary.LittleEndian.PutUint64(data[10:18], 614400)

		dl, err := parseDataLayout(data, sb)
		require.NoError(t, err)
		assert.Equal(t, layoutContiguous, dl.class)
		assert.Equal(t, uint64(0x2000), dl.addr)
		assert.Equal(t, uint64(614400), dl.size)
	})

	t.Run("chunked v3", func(t *testing.T) {
		data := make([]byte, 3+8+12)
		data[0] = 3
		data[1] = 2 // chunked
		data[2] = 3 // rank including element-size dimension
		binary.LittleEndian.PutUint64(data[3:11], 0x3000)
		binary.LittleEndian.PutUint32(data[11:15], 64)
		binary.LittleEndian.PutUint32(data[15:19], 64)
		binary.LittleEndian.PutUint32(data[19:23], 2)

		dl, err := parseDataLayout(data, sb)
		require.NoError(t, err)
		assert.Equal(t, layoutChunked, dl.class)
		assert.Equal(t, uint64(0x3000), dl.addr)
		assert.Equal(t, []uint64{64, 64, 2}, dl.chunkDims)
	})

	t.Run("compact v3", func(t *testing.T) {
		payload := []byte{9, 8, 7, 6}
		data := make([]byte, 4+len(payload))
		data[0] = 3
		data[1] = 0 // compact
		binary.LittleEndian.PutUint16(data[2:4], uint16(len(payload)))
		copy(data[4:], payload)

		dl, err := parseDataLayout(data, sb)
		require.NoError(t, err)
		assert.Equal(t, layoutCompact, dl.class)
		assert.Equal(t, payload, dl.compact)
	})

	t.Run("pre-1.6 layout rejected", func(t *testing.T) {
		_, err := parseDataLayout([]byte{2, 1, 0}, sb)
		assert.Error(t, err)
	})
}

func TestParseFilterPipeline(t *testing.T) {
	// version 1: 2 filters, 6 reserved bytes, each filter padded to 8.
	data := make([]byte, 8+16+16)
	data[0] = 1 // version
	data[1] = 2 // filter count
	// shuffle, element size 2
	binary.LittleEndian.PutUint16(data[8:10], 2)   // filter id
	binary.LittleEndian.PutUint16(data[14:16], 1)  // client data count
	binary.LittleEndian.PutUint32(data[16:20], 2)  // element size
	// deflate, level 6
	binary.LittleEndian.PutUint16(data[24:26], 1)  // filter id
	binary.LittleEndian.PutUint16(data[30:32], 1)  // client data count
	binary.LittleEndian.PutUint32(data[32:36], 6)  // level

	fp, err := parseFilterPipeline(data)
	require.NoError(t, err)
	require.Len(t, fp.filters, 2)
	assert.Equal(t, filterShuffle, fp.filters[0].id)
	assert.Equal(t, []uint32{2}, fp.filters[0].clientData)
	assert.Equal(t, filterDeflate, fp.filters[1].id)
}

func TestFilterPipelineApply(t *testing.T) {
	raw := []byte{0x01, 0x10, 0x02, 0x20, 0x03, 0x30, 0x04, 0x40}

	t.Run("deflate then shuffle reversed", func(t *testing.T) {
		// forward: shuffle into byte planes, then compress
		shuffled := make([]byte, len(raw))
		n := len(raw) / 2
		for elem := 0; elem < n; elem++ {
			for b := 0; b < 2; b++ {
				shuffled[b*n+elem] = raw[elem*2+b]
			}
		}
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(shuffled)
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		fp := &filterPipeline{filters: []pipelineFilter{
			{id: filterShuffle, clientData: []uint32{2}},
			{id: filterDeflate},
		}}
		out, err := fp.apply(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, raw, out)
	})

	t.Run("fletcher strips checksum", func(t *testing.T) {
		fp := &filterPipeline{filters: []pipelineFilter{{id: filterFletcher32}}}
		out, err := fp.apply(append(append([]byte(nil), raw...), 0xDE, 0xAD, 0xBE, 0xEF))
		require.NoError(t, err)
		assert.Equal(t, raw, out)
	})

	t.Run("optional unknown filter skipped", func(t *testing.T) {
		fp := &filterPipeline{filters: []pipelineFilter{{id: 999, flags: 0x0001}}}
		out, err := fp.apply(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, out)
	})

	t.Run("required unknown filter fails", func(t *testing.T) {
		fp := &filterPipeline{filters: []pipelineFilter{{id: 999}}}
		_, err := fp.apply(raw)
		assert.Error(t, err)
	})
}

func TestParseLinkMessage(t *testing.T) {
	sb := leSuperblock()

	t.Run("hard link", func(t *testing.T) {
		name := "RawDataUnit"
		data := []byte{1, 0x08, 0} // version, type flag set, hard link
		data = append(data, byte(len(name)))
		data = append(data, name...)
		addr := make([]byte, 8)
		binary.LittleEndian.PutUint64(addr, 0x1234)
		data = append(data, addr...)

		lm, err := parseLinkMessage(data, sb)
		require.NoError(t, err)
		assert.Equal(t, name, lm.name)
		assert.Equal(t, uint8(linkTypeHard), lm.linkType)
		assert.Equal(t, uint64(0x1234), lm.addr)
	})

	t.Run("soft link carries no address", func(t *testing.T) {
		data := []byte{1, 0x08, 1, 1, 'x'}
		lm, err := parseLinkMessage(data, sb)
		require.NoError(t, err)
		assert.Equal(t, uint8(linkTypeSoft), lm.linkType)
		assert.Equal(t, uint64(0), lm.addr)
	})

	t.Run("two-byte name length", func(t *testing.T) {
		data := []byte{1, 0x01} // name length stored as uint16
		data = append(data, 2, 0)
		data = append(data, 'a', 'b')
		addr := make([]byte, 8)
		binary.LittleEndian.PutUint64(addr, 77)
		data = append(data, addr...)

		lm, err := parseLinkMessage(data, sb)
		require.NoError(t, err)
		assert.Equal(t, "ab", lm.name)
		assert.Equal(t, uint64(77), lm.addr)
	})
}

func TestParseSymbolTableMessage(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data[0:8], 0x500)
	binary.LittleEndian.PutUint64(data[8:16], 0x600)

	stab, err := parseSymbolTableMessage(data, leSuperblock())
	require.NoError(t, err)
	assert.Equal(t, uint64(0x500), stab.btreeAddr)
	assert.Equal(t, uint64(0x600), stab.heapAddr)
}

// TestHeaderContinuation builds a v1 object header whose second message
// lives in a continuation block.
func TestHeaderContinuation(t *testing.T) {
	img := make([]byte, 512)

	dspace := make([]byte, 16)
	dspace[0] = 1
	dspace[1] = 1
	binary.LittleEndian.PutUint64(dspace[8:16], 7)

	dtype := make([]byte, 16)
	binary.LittleEndian.PutUint32(dtype[0:4], 0|1<<4)
	binary.LittleEndian.PutUint32(dtype[4:8], 2)

	// main block at 0: prefix, then datatype message and a continuation
	// pointing at 256 where the dataspace message lives. The prefix counts
	// three messages and 48 bytes of message data in the main block.
	img[0] = 1
	binary.LittleEndian.PutUint16(img[2:4], 3)
	binary.LittleEndian.PutUint32(img[8:12], 48)

	pos := 16
	binary.LittleEndian.PutUint16(img[pos:], msgDatatype)
	binary.LittleEndian.PutUint16(img[pos+2:], 16)
	copy(img[pos+8:], dtype)
	pos += 24

	binary.LittleEndian.PutUint16(img[pos:], msgContinuation)
	binary.LittleEndian.PutUint16(img[pos+2:], 16)
	binary.LittleEndian.PutUint64(img[pos+8:], 256) // continuation address
	binary.LittleEndian.PutUint64(img[pos+16:], 24) // continuation size

	pos = 256
	binary.LittleEndian.PutUint16(img[pos:], msgDataspace)
	binary.LittleEndian.PutUint16(img[pos+2:], 16)
	copy(img[pos+8:], dspace)

	hdr, err := readObjectHeader(bytes.NewReader(img), 0, leSuperblock())
	require.NoError(t, err)
	require.Len(t, hdr.messages, 2)
	assert.Equal(t, objDataset, hdr.kind())

	ds, err := parseDataspace(hdr.find(msgDataspace))
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, ds.dims)
}

// TestHeaderV2 exercises the "OHDR" format with timestamps present.
func TestHeaderV2(t *testing.T) {
	var img []byte
	img = append(img, "OHDR"...)
	// version 2, flags: timestamps stored, 2-byte chunk size field.
	img = append(img, 2, 0x20|0x01)
	img = append(img, make([]byte, 16)...)

	dtype := make([]byte, 16)
	binary.LittleEndian.PutUint32(dtype[0:4], 0|1<<4)
	binary.LittleEndian.PutUint32(dtype[4:8], 1)

	dspace := make([]byte, 16)
	dspace[0] = 1
	dspace[1] = 1
	binary.LittleEndian.PutUint64(dspace[8:16], 3)

	chunk := make([]byte, 2)
	binary.LittleEndian.PutUint16(chunk, uint16(2*(4+16)))
	img = append(img, chunk...)

	msg := make([]byte, 4)
	msg[0] = uint8(msgDatatype)
	binary.LittleEndian.PutUint16(msg[1:3], 16)
	img = append(img, msg...)
	img = append(img, dtype...)

	msg2 := make([]byte, 4)
	msg2[0] = uint8(msgDataspace)
	binary.LittleEndian.PutUint16(msg2[1:3], 16)
	img = append(img, msg2...)
	img = append(img, dspace...)

	hdr, err := readObjectHeader(bytes.NewReader(img), 0, leSuperblock())
	require.NoError(t, err)
	assert.Equal(t, uint8(2), hdr.version)
	require.Len(t, hdr.messages, 2)
	assert.Equal(t, objDataset, hdr.kind())
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, int64(-1), signExtend(0xFF, 1))
	assert.Equal(t, int64(-2), signExtend(0xFFFE, 2))
	assert.Equal(t, int64(300), signExtend(300, 4))
}

func TestArrayDecoding(t *testing.T) {
	t.Run("uint16 floats", func(t *testing.T) {
		a := &Array{
			Class: ClassFixed, ElemSize: 2,
			Data:  []byte{0x00, 0x01, 0xFF, 0xFF},
			order: binary.LittleEndian,
		}
		vals, err := a.Floats()
		require.NoError(t, err)
		assert.Equal(t, []float64{256, 65535}, vals)
	})

	t.Run("signed ints", func(t *testing.T) {
		a := &Array{
			Class: ClassFixed, ElemSize: 2, Signed: true,
			Data:  []byte{0xFE, 0xFF},
			order: binary.LittleEndian,
		}
		vals, err := a.Ints()
		require.NoError(t, err)
		assert.Equal(t, []int64{-2}, vals)
	})

	t.Run("string class has no numeric view", func(t *testing.T) {
		a := &Array{Class: ClassString, ElemSize: 4, Data: make([]byte, 8), order: binary.LittleEndian}
		_, err := a.Floats()
		assert.Error(t, err)
		_, err = a.Ints()
		assert.Error(t, err)
	})
}
