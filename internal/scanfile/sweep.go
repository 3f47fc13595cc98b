// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scanfile

import (
	"fmt"

	"github.com/pdiddy/sonoexport/internal/hdf5"
)

// MaxSweepImages caps how many sweep hits a single file may emit.
const MaxSweepImages = 3

// minSweepSide is the smallest edge an image-like dataset may have. Anything
// at or under it is calibration or lookup data.
const minSweepSide = 50

// SweepCandidate names a dataset that looks like an 8-bit image.
type SweepCandidate struct {
	Path string
	Dims []uint64
}

// SweepCandidates scans the whole container for image-like unsigned 8-bit
// datasets: plain 2D, 2D behind a leading singleton, or 2D with a trailing
// channel dimension of 3 or 4. Candidates come back in file walk order.
func (f *File) SweepCandidates() []SweepCandidate {
	var out []SweepCandidate
	f.h.Walk(func(path string, obj hdf5.Object) {
		ds, ok := obj.(*hdf5.Dataset)
		if !ok {
			return
		}
		if ds.Class() != hdf5.ClassFixed || ds.ElemSize() != 1 || ds.Signed() {
			return
		}
		dims := ds.Dims()
		if !imageLike(dims) {
			return
		}
		out = append(out, SweepCandidate{Path: path, Dims: dims})
	})
	return out
}

func imageLike(dims []uint64) bool {
	switch len(dims) {
	case 2:
		return dims[0] > minSweepSide && dims[1] > minSweepSide
	case 3:
		if dims[0] == 1 {
			return dims[1] > minSweepSide && dims[2] > minSweepSide
		}
		if dims[2] == 3 || dims[2] == 4 {
			return dims[0] > minSweepSide && dims[1] > minSweepSide
		}
	}
	return false
}

// SweepImage is a sweep hit read into memory. Data is tightly packed
// row-major top-down, Channels wide per pixel, already 8-bit.
type SweepImage struct {
	Path     string
	Data     []byte
	Width    int
	Height   int
	Channels int
}

// ReadSweepImage materializes one sweep candidate.
func (f *File) ReadSweepImage(c SweepCandidate) (*SweepImage, error) {
	ds, err := f.h.Dataset(c.Path)
	if err != nil {
		return nil, err
	}
	arr, err := ds.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.Path, err)
	}

	img := &SweepImage{Path: c.Path, Data: arr.Bytes(), Channels: 1}
	dims := arr.Dims
	switch {
	case len(dims) == 2:
		img.Height = int(dims[0])
		img.Width = int(dims[1])
	case len(dims) == 3 && dims[0] == 1:
		img.Height = int(dims[1])
		img.Width = int(dims[2])
	case len(dims) == 3:
		img.Height = int(dims[0])
		img.Width = int(dims[1])
		img.Channels = int(dims[2])
	default:
		return nil, fmt.Errorf("dataset %s has unusable shape %v", c.Path, dims)
	}
	return img, nil
}
