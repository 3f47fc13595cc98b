// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package raster turns extracted scan arrays into image.Image values and
// writes them as PNG files. Intensity data is normalized to 8 bits with a
// linear map; preview bitmaps are channel-reordered out of BMP conventions.
package raster

import (
	"fmt"
	"image"
	"math"
)

// Normalize maps values linearly from [min, max] to [0, 255], rounding to
// nearest and clamping. A flat array maps to all zeros.
func Normalize(vals []float64) []uint8 {
	out := make([]uint8, len(vals))
	if len(vals) == 0 {
		return out
	}

	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return out
	}

	scale := 255 / (hi - lo)
	for i, v := range vals {
		n := math.Round((v - lo) * scale)
		if n < 0 {
			n = 0
		} else if n > 255 {
			n = 255
		}
		out[i] = uint8(n)
	}
	return out
}

// Gray wraps normalized pixels as a grayscale image. pix must hold
// height*width values in row-major order.
func Gray(pix []uint8, width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	copy(img.Pix, pix)
	return img
}

// PreviewImage decodes a title-bar bitmap buffer. The buffer is interleaved
// BGRA (32 bpp) or BGR (24 bpp) with rows stored bottom-up, as in a BMP;
// the result is a top-down NRGBA image.
func PreviewImage(data []byte, width, height, bpp int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	step := bpp / 8
	for y := 0; y < height; y++ {
		srcRow := (height - 1 - y) * width * step
		for x := 0; x < width; x++ {
			src := srcRow + x*step
			dst := img.PixOffset(x, y)
			img.Pix[dst+0] = data[src+2]
			img.Pix[dst+1] = data[src+1]
			img.Pix[dst+2] = data[src+0]
			if step == 4 {
				img.Pix[dst+3] = data[src+3]
			} else {
				img.Pix[dst+3] = 0xFF
			}
		}
	}
	return img
}

// PackedImage wraps an already-8-bit pixel buffer: 1 channel as grayscale,
// 3 or 4 channels as color. Rows are top-down, unlike PreviewImage.
func PackedImage(data []byte, width, height, channels int) (image.Image, error) {
	switch channels {
	case 1:
		return Gray(data, width, height), nil
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			img.Pix[4*i+0] = data[3*i+0]
			img.Pix[4*i+1] = data[3*i+1]
			img.Pix[4*i+2] = data[3*i+2]
			img.Pix[4*i+3] = 0xFF
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		copy(img.Pix, data)
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
}
