package raster

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("linear map", func(t *testing.T) {
		assert.Equal(t, []uint8{0, 128, 255}, Normalize([]float64{0, 1, 2}))
	})

	t.Run("offset range", func(t *testing.T) {
		got := Normalize([]float64{-100, 50, 900})
		assert.Equal(t, []uint8{0, 38, 255}, got)
	})

	t.Run("flat array maps to zero", func(t *testing.T) {
		assert.Equal(t, []uint8{0, 0, 0}, Normalize([]float64{10, 10, 10}))
	})

	t.Run("single value", func(t *testing.T) {
		assert.Equal(t, []uint8{0}, Normalize([]float64{42}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Normalize(nil))
	})

	t.Run("monotonic and bounded", func(t *testing.T) {
		in := []float64{3, 7, 7, 12, 90, 1500, 1500.5, 40000}
		out := Normalize(in)
		for i := 1; i < len(out); i++ {
			assert.GreaterOrEqual(t, out[i], out[i-1], "index %d", i)
		}
		assert.Equal(t, uint8(0), out[0])
		assert.Equal(t, uint8(255), out[len(out)-1])
	})
}

func TestGray(t *testing.T) {
	img := Gray([]uint8{
		1, 2, 3,
		4, 5, 6,
	}, 3, 2)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, uint8(1), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(3), img.GrayAt(2, 0).Y)
	assert.Equal(t, uint8(4), img.GrayAt(0, 1).Y)
	assert.Equal(t, uint8(6), img.GrayAt(2, 1).Y)
}

func TestPreviewImage(t *testing.T) {
	t.Run("bgra rows flip to top-down", func(t *testing.T) {
		// stored bottom-up: first row of the buffer is the bottom of the image
		data := []byte{
			1, 2, 3, 4, 5, 6, 7, 8, // bottom row: two BGRA pixels
			9, 10, 11, 12, 13, 14, 15, 16, // top row
		}
		img := PreviewImage(data, 2, 2, 32)
		assert.Equal(t, color.NRGBA{R: 11, G: 10, B: 9, A: 12}, img.NRGBAAt(0, 0))
		assert.Equal(t, color.NRGBA{R: 15, G: 14, B: 13, A: 16}, img.NRGBAAt(1, 0))
		assert.Equal(t, color.NRGBA{R: 3, G: 2, B: 1, A: 4}, img.NRGBAAt(0, 1))
		assert.Equal(t, color.NRGBA{R: 7, G: 6, B: 5, A: 8}, img.NRGBAAt(1, 1))
	})

	t.Run("bgr gets opaque alpha", func(t *testing.T) {
		data := []byte{
			1, 2, 3, // bottom row
			4, 5, 6, // top row
		}
		img := PreviewImage(data, 1, 2, 24)
		assert.Equal(t, color.NRGBA{R: 6, G: 5, B: 4, A: 255}, img.NRGBAAt(0, 0))
		assert.Equal(t, color.NRGBA{R: 3, G: 2, B: 1, A: 255}, img.NRGBAAt(0, 1))
	})
}

func TestPackedImage(t *testing.T) {
	t.Run("grayscale", func(t *testing.T) {
		img, err := PackedImage([]byte{9, 8, 7, 6}, 2, 2, 1)
		require.NoError(t, err)
		gray, ok := img.(*image.Gray)
		require.True(t, ok)
		assert.Equal(t, uint8(9), gray.GrayAt(0, 0).Y)
		assert.Equal(t, uint8(6), gray.GrayAt(1, 1).Y)
	})

	t.Run("rgb", func(t *testing.T) {
		img, err := PackedImage([]byte{10, 20, 30}, 1, 1, 3)
		require.NoError(t, err)
		rgba, ok := img.(*image.NRGBA)
		require.True(t, ok)
		assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, rgba.NRGBAAt(0, 0))
	})

	t.Run("rgba", func(t *testing.T) {
		img, err := PackedImage([]byte{10, 20, 30, 40}, 1, 1, 4)
		require.NoError(t, err)
		rgba, ok := img.(*image.NRGBA)
		require.True(t, ok)
		assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 40}, rgba.NRGBAAt(0, 0))
	})

	t.Run("unsupported channels", func(t *testing.T) {
		_, err := PackedImage(make([]byte, 8), 2, 2, 2)
		assert.Error(t, err)
	})
}

func TestUpscale(t *testing.T) {
	t.Run("narrow grayscale widens", func(t *testing.T) {
		pix := make([]uint8, 4*3)
		for i := range pix {
			pix[i] = 100
		}
		out := Upscale(Gray(pix, 4, 3), 8)
		assert.Equal(t, image.Rect(0, 0, 8, 6), out.Bounds())
		gray, ok := out.(*image.Gray)
		require.True(t, ok)
		assert.InDelta(t, 100, gray.GrayAt(4, 3).Y, 1)
		assert.InDelta(t, 100, gray.GrayAt(0, 0).Y, 1)
	})

	t.Run("wide image unchanged", func(t *testing.T) {
		img := Gray(make([]uint8, 10*5), 10, 5)
		out := Upscale(img, 8)
		assert.Same(t, img, out)
	})

	t.Run("color stays color", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		out := Upscale(img, 8)
		_, ok := out.(*image.NRGBA)
		assert.True(t, ok)
		assert.Equal(t, 8, out.Bounds().Dx())
	})
}

func TestWritePNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan_ultrasound.png")
	require.NoError(t, WritePNG(path, Gray([]uint8{0, 64, 128, 255}, 2, 2)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(64), gray.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(255), gray.GrayAt(1, 1).Y)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWritePNGMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "out.png")
	assert.Error(t, WritePNG(path, Gray([]uint8{1}, 1, 1)))
}
