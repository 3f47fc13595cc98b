package scanfile

import (
	"fmt"
)

// primaryFramePaths are the dataset paths acquisition rigs store the scan
// frame under, in the order they should be tried.
var primaryFramePaths = []string{
	"MovieGroup1/AcqTissue/RawData/RawDataUnit",
	"MovieGroup1/AcqTissue/RawData",
	"RawData/RawDataUnit",
}

// minFrameElements rejects small bookkeeping datasets that happen to live at
// a frame path.
const minFrameElements = 1000

const (
	previewGroupPath  = "PreviewInformation/TitleBarDataGroup"
	previewBitmapPath = previewGroupPath + "/TB_vecBitmapData"
)

// Frame is the primary scan image, decoded to float64 for normalization.
// Pix is row-major, Height rows of Width values.
type Frame struct {
	Pix    []float64
	Width  int
	Height int
	Source string
}

// PrimaryFrame extracts the main scan frame. Candidate paths are tried in
// order; a candidate counts only if it holds more than minFrameElements
// values and is two-dimensional once leading singleton dimensions are
// dropped. When no candidate resolves the error wraps ErrNoImageData; when a
// candidate existed but could not be used, the last such failure is returned
// instead so the caller can report it.
func (f *File) PrimaryFrame() (*Frame, error) {
	var lastErr error
	for _, path := range primaryFramePaths {
		ds, err := f.h.Dataset(path)
		if err != nil {
			continue
		}
		dims := squeezeLeading(ds.Dims())
		if countElements(dims) <= minFrameElements {
			continue
		}
		if len(dims) != 2 {
			lastErr = fmt.Errorf("dataset %s has unusable shape %v", path, ds.Dims())
			continue
		}
		arr, err := ds.Read()
		if err != nil {
			lastErr = fmt.Errorf("reading %s: %w", path, err)
			continue
		}
		pix, err := arr.Floats()
		if err != nil {
			lastErr = fmt.Errorf("decoding %s: %w", path, err)
			continue
		}
		return &Frame{
			Pix:    pix,
			Width:  int(dims[1]),
			Height: int(dims[0]),
			Source: path,
		}, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no frame at the known dataset paths: %w", ErrNoImageData)
}

// PrimaryFrameInfo reports the primary frame's dimensions and element type
// without reading pixel data. ok is false when no candidate dataset
// qualifies.
func (f *File) PrimaryFrameInfo() (width, height int, dtype string, ok bool) {
	for _, path := range primaryFramePaths {
		ds, err := f.h.Dataset(path)
		if err != nil {
			continue
		}
		dims := squeezeLeading(ds.Dims())
		if countElements(dims) <= minFrameElements || len(dims) != 2 {
			continue
		}
		return int(dims[1]), int(dims[0]), typeName(ds), true
	}
	return 0, 0, "", false
}

// Preview is the title-bar thumbnail: an interleaved BGRA (or BGR) buffer in
// bottom-up row order, as stored.
type Preview struct {
	Data   []byte
	Width  int
	Height int
	BPP    int
}

// Preview extracts the title-bar bitmap. A container without one returns
// (nil, nil). Missing or inconsistent dimension metadata wraps
// ErrPreviewDimensions; unsupported pixel depths fail with a plain error.
func (f *File) Preview() (*Preview, error) {
	ds, err := f.h.Dataset(previewBitmapPath)
	if err != nil {
		return nil, nil
	}
	arr, err := ds.Read()
	if err != nil {
		return nil, fmt.Errorf("reading preview bitmap: %w", err)
	}

	width, ok := f.scalarInt(previewGroupPath + "/TB_BmpWidth")
	if !ok {
		return nil, fmt.Errorf("preview bitmap has no width: %w", ErrPreviewDimensions)
	}
	height, ok := f.scalarInt(previewGroupPath + "/TB_BmpHeight")
	if !ok {
		return nil, fmt.Errorf("preview bitmap has no height: %w", ErrPreviewDimensions)
	}
	bpp, ok := f.scalarInt(previewGroupPath + "/TB_BmpBitsPerPixel")
	if !ok {
		return nil, fmt.Errorf("preview bitmap has no pixel depth: %w", ErrPreviewDimensions)
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("preview declares %dx%d: %w", width, height, ErrPreviewDimensions)
	}
	if bpp != 32 && bpp != 24 {
		return nil, fmt.Errorf("preview has unsupported depth %d bpp", bpp)
	}
	need := width * height * bpp / 8
	if len(arr.Bytes()) != need {
		return nil, fmt.Errorf("preview bitmap is %d bytes, %dx%d at %d bpp needs %d: %w",
			len(arr.Bytes()), width, height, bpp, need, ErrPreviewDimensions)
	}

	return &Preview{Data: arr.Bytes(), Width: width, Height: height, BPP: bpp}, nil
}

// scalarInt reads the first element of a small integer dataset.
func (f *File) scalarInt(path string) (int, bool) {
	ds, err := f.h.Dataset(path)
	if err != nil {
		return 0, false
	}
	arr, err := ds.Read()
	if err != nil {
		return 0, false
	}
	vals, err := arr.Ints()
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return int(vals[0]), true
}

// squeezeLeading drops leading singleton dimensions down to rank 2.
func squeezeLeading(dims []uint64) []uint64 {
	for len(dims) > 2 && dims[0] == 1 {
		dims = dims[1:]
	}
	return dims
}

func countElements(dims []uint64) uint64 {
	total := uint64(1)
	for _, d := range dims {
		total *= d
	}
	return total
}
