// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hdf5_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sonoexport/internal/hdf5"
	"github.com/pdiddy/sonoexport/internal/hdf5/hdf5test"
)

func scanContainer(t *testing.T) string {
	t.Helper()
	b := hdf5test.New()
	b.Uint16("MovieGroup1/AcqTissue/RawData/RawDataUnit", []uint64{3, 4}, []uint16{
		0, 100, 200, 300,
		400, 500, 600, 700,
		800, 900, 1000, 1100,
	})
	b.Uint8("PreviewInformation/TitleBarDataGroup/TB_vecBitmapData", []uint64{16}, make([]byte, 16))
	b.Int32("PreviewInformation/TitleBarDataGroup/TB_BmpWidth", []uint64{1}, []int32{2})
	b.Int32("PreviewInformation/TitleBarDataGroup/TB_BmpHeight", []uint64{1}, []int32{2})
	b.Int32("PreviewInformation/TitleBarDataGroup/TB_BmpBitsPerPixel", []uint64{1}, []int32{32})
	b.Group("SettingsInfo")
	return b.WriteFile(t, t.TempDir(), "scan.usr")
}

func TestOpenScanContainer(t *testing.T) {
	f, err := hdf5.Open(scanContainer(t))
	require.NoError(t, err)
	defer f.Close()

	t.Run("root children are name ordered", func(t *testing.T) {
		var names []string
		for _, c := range f.Root().Children() {
			names = append(names, c.Name())
		}
		assert.Equal(t, []string{"MovieGroup1", "PreviewInformation", "SettingsInfo"}, names)
	})

	t.Run("walk visits datasets depth first", func(t *testing.T) {
		var paths []string
		f.Walk(func(path string, obj hdf5.Object) {
			if _, ok := obj.(*hdf5.Dataset); ok {
				paths = append(paths, path)
			}
		})
		assert.Equal(t, []string{
			"MovieGroup1/AcqTissue/RawData/RawDataUnit",
			"PreviewInformation/TitleBarDataGroup/TB_BmpBitsPerPixel",
			"PreviewInformation/TitleBarDataGroup/TB_BmpHeight",
			"PreviewInformation/TitleBarDataGroup/TB_BmpWidth",
			"PreviewInformation/TitleBarDataGroup/TB_vecBitmapData",
		}, paths)
	})

	t.Run("dataset lookup and read", func(t *testing.T) {
		ds, err := f.Dataset("MovieGroup1/AcqTissue/RawData/RawDataUnit")
		require.NoError(t, err)
		assert.Equal(t, []uint64{3, 4}, ds.Dims())
		assert.Equal(t, hdf5.ClassFixed, ds.Class())
		assert.Equal(t, 2, ds.ElemSize())
		assert.Equal(t, "contiguous", ds.Layout())

		arr, err := ds.Read()
		require.NoError(t, err)
		assert.Equal(t, 12, arr.Len())
		vals, err := arr.Floats()
		require.NoError(t, err)
		assert.Equal(t, float64(0), vals[0])
		assert.Equal(t, float64(700), vals[7])
		assert.Equal(t, float64(1100), vals[11])
	})

	t.Run("leading slash tolerated", func(t *testing.T) {
		_, err := f.Dataset("/PreviewInformation/TitleBarDataGroup/TB_BmpWidth")
		assert.NoError(t, err)
	})

	t.Run("group lookup", func(t *testing.T) {
		obj, err := f.Object("PreviewInformation/TitleBarDataGroup")
		require.NoError(t, err)
		g, ok := obj.(*hdf5.Group)
		require.True(t, ok)
		assert.NotNil(t, g.Child("TB_vecBitmapData"))
		assert.Nil(t, g.Child("TB_vecSomethingElse"))
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := f.Dataset("MovieGroup1/NoSuchThing")
		assert.ErrorIs(t, err, hdf5.ErrNotFound)
	})

	t.Run("group at dataset path", func(t *testing.T) {
		_, err := f.Dataset("MovieGroup1")
		assert.ErrorIs(t, err, hdf5.ErrNotFound)
	})
}

func TestChunkedDatasetReadsThroughFilters(t *testing.T) {
	vals := make([]uint16, 5*7)
	for i := range vals {
		vals[i] = uint16(100 + 7*i)
	}
	b := hdf5test.New()
	b.ChunkedUint16("frames/raw", []uint64{5, 7}, []uint64{4, 4}, vals,
		hdf5test.FilterShuffle, hdf5test.FilterDeflate)
	path := b.WriteFile(t, t.TempDir(), "chunked.usr")

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()

	ds, err := f.Dataset("frames/raw")
	require.NoError(t, err)
	assert.Equal(t, "chunked", ds.Layout())

	arr, err := ds.Read()
	require.NoError(t, err)
	got, err := arr.Floats()
	require.NoError(t, err)
	require.Len(t, got, len(vals))
	for i, v := range vals {
		assert.Equal(t, float64(v), got[i], "element %d", i)
	}
}

func TestChunkedDatasetUnfiltered(t *testing.T) {
	vals := make([]uint16, 6*6)
	for i := range vals {
		vals[i] = uint16(i)
	}
	b := hdf5test.New()
	b.ChunkedUint16("d", []uint64{6, 6}, []uint64{3, 3}, vals)
	path := b.WriteFile(t, t.TempDir(), "plain.usr")

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()

	ds, err := f.Dataset("d")
	require.NoError(t, err)
	arr, err := ds.Read()
	require.NoError(t, err)
	got, err := arr.Floats()
	require.NoError(t, err)
	for i, v := range vals {
		require.Equal(t, float64(v), got[i], "element %d", i)
	}
}

func TestDatasetTypedViews(t *testing.T) {
	b := hdf5test.New()
	b.Int32("ints", []uint64{3}, []int32{-5, 70000, 0})
	b.Float32("floats", []uint64{3}, []float32{0.5, -1.25, 30000})
	b.Uint8("bytes", []uint64{2, 3}, []byte{1, 2, 3, 4, 5, 6})
	path := b.WriteFile(t, t.TempDir(), "typed.usr")

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()

	t.Run("signed ints", func(t *testing.T) {
		ds, err := f.Dataset("ints")
		require.NoError(t, err)
		assert.True(t, ds.Signed())
		arr, err := ds.Read()
		require.NoError(t, err)
		got, err := arr.Ints()
		require.NoError(t, err)
		assert.Equal(t, []int64{-5, 70000, 0}, got)
	})

	t.Run("floats", func(t *testing.T) {
		ds, err := f.Dataset("floats")
		require.NoError(t, err)
		assert.Equal(t, hdf5.ClassFloat, ds.Class())
		arr, err := ds.Read()
		require.NoError(t, err)
		got, err := arr.Floats()
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, -1.25, 30000}, got)
	})

	t.Run("raw bytes", func(t *testing.T) {
		ds, err := f.Dataset("bytes")
		require.NoError(t, err)
		arr, err := ds.Read()
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, arr.Bytes())
		assert.Equal(t, []uint64{2, 3}, arr.Dims)
	})
}

func TestScalarDataset(t *testing.T) {
	b := hdf5test.New()
	b.Uint16("depth", nil, []uint16{1540})
	path := b.WriteFile(t, t.TempDir(), "scalar.usr")

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()

	ds, err := f.Dataset("depth")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ds.Dims())
	arr, err := ds.Read()
	require.NoError(t, err)
	vals, err := arr.Floats()
	require.NoError(t, err)
	assert.Equal(t, []float64{1540}, vals)
}

func TestOpenRejectsForeignFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "notes.raw")
	require.NoError(t, os.WriteFile(path, []byte("operator notes, not a scan"), 0o644))
	_, err := hdf5.Open(path)
	assert.ErrorIs(t, err, hdf5.ErrSignature)

	empty := filepath.Join(dir, "empty.usr")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = hdf5.Open(empty)
	assert.ErrorIs(t, err, hdf5.ErrSignature)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := hdf5.Open(filepath.Join(t.TempDir(), "gone.usr"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, hdf5.ErrSignature)
}

func TestCloseTwice(t *testing.T) {
	f, err := hdf5.Open(scanContainer(t))
	require.NoError(t, err)
	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close())
}
