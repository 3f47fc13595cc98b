// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scanfile

import (
	"fmt"

	"github.com/pdiddy/sonoexport/internal/hdf5"
)

// Entry describes one object inside a scan container.
type Entry struct {
	Path   string   `json:"path" yaml:"path"`
	Group  bool     `json:"group,omitempty" yaml:"group,omitempty"`
	Dims   []uint64 `json:"dims,omitempty" yaml:"dims,omitempty"`
	Type   string   `json:"type,omitempty" yaml:"type,omitempty"`
	Layout string   `json:"layout,omitempty" yaml:"layout,omitempty"`
}

// Entries lists every group and dataset in depth-first file order.
func (f *File) Entries() []Entry {
	var out []Entry
	f.h.Walk(func(path string, obj hdf5.Object) {
		switch o := obj.(type) {
		case *hdf5.Group:
			out = append(out, Entry{Path: path, Group: true})
		case *hdf5.Dataset:
			out = append(out, Entry{
				Path:   path,
				Dims:   o.Dims(),
				Type:   typeName(o),
				Layout: o.Layout(),
			})
		}
	})
	return out
}

// DatasetPaths lists the dataset paths in the container, for indexing.
func (f *File) DatasetPaths() []string {
	var out []string
	for _, e := range f.Entries() {
		if !e.Group {
			out = append(out, e.Path)
		}
	}
	return out
}

// typeName renders a dataset's element type, e.g. "uint16" or "float64".
func typeName(ds *hdf5.Dataset) string {
	bits := ds.ElemSize() * 8
	switch ds.Class() {
	case hdf5.ClassFixed:
		if ds.Signed() {
			return fmt.Sprintf("int%d", bits)
		}
		return fmt.Sprintf("uint%d", bits)
	case hdf5.ClassFloat:
		return fmt.Sprintf("float%d", bits)
	default:
		return ds.Class().String()
	}
}
