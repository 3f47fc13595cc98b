// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConvertStatus indicates the outcome of converting a single scan file.
type ConvertStatus string

const (
	ConvertDone    ConvertStatus = "converted"
	ConvertSkipped ConvertStatus = "skipped"
	ConvertFailed  ConvertStatus = "failed"
)

// ScanKind classifies a scan file found during a directory walk.
type ScanKind string

const (
	// KindScan is a readable HDF5 container that is not settings-only.
	// Width and Height are zero when no primary frame was found in it.
	KindScan ScanKind = "scan"

	// KindSettings is an HDF5 container holding only settings groups.
	KindSettings ScanKind = "settings"

	// KindNotHDF5 is a file with a scan extension but no HDF5 signature.
	KindNotHDF5 ScanKind = "not-hdf5"

	// KindCorrupt is an HDF5 container whose internal structure could not
	// be read.
	KindCorrupt ScanKind = "corrupt"
)

// ScanInfo holds catalog metadata for one scan file.
type ScanInfo struct {
	// Path is the scan file path relative to the catalog root.
	Path string `json:"path" yaml:"path"`

	// Kind classifies the file contents.
	Kind ScanKind `json:"kind" yaml:"kind"`

	// Width and Height are the primary frame dimensions in pixels. Both are
	// zero when the file has no primary frame.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`

	// DType names the element type of the primary frame (e.g. "uint16").
	DType string `json:"dtype,omitempty" yaml:"dtype,omitempty"`

	// Datasets lists the dataset paths inside the container.
	Datasets []string `json:"datasets,omitempty" yaml:"datasets,omitempty"`

	// SizeBytes is the file size on disk.
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`

	// ModTime is the file modification time.
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}
