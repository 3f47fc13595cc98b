// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scanfile reads proprietary ultrasound scan containers. The files
// are HDF5 underneath; this package knows which datasets hold the acquisition
// frame and the title-bar preview bitmap, and how to recognize settings-only
// exports that carry no image at all.
package scanfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/sonoexport/internal/hdf5"
)

var (
	// ErrNotHDF5 reports a scan-like extension over non-HDF5 content.
	ErrNotHDF5 = errors.New("not an HDF5 container")

	// ErrSettingsOnly reports a container holding only settings groups.
	ErrSettingsOnly = errors.New("settings only, no image data")

	// ErrNoImageData reports a well-formed container with no usable image.
	ErrNoImageData = errors.New("no image data found")

	// ErrPreviewDimensions reports a preview bitmap whose dimension
	// metadata is missing or contradicts the buffer size.
	ErrPreviewDimensions = errors.New("preview dimensions missing or inconsistent")
)

// settingsGroups are the root-level groups a settings-only export consists of.
var settingsGroups = map[string]bool{
	"ReproData":    true,
	"SettingsInfo": true,
	"VersionInfo":  true,
}

// IsScanPath reports whether path has an ultrasound scan extension.
func IsScanPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".usr", ".raw":
		return true
	}
	return false
}

// SniffHDF5 reports whether the file starts with the HDF5 signature.
// Unreadable and short files are not HDF5.
func SniffHDF5(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	magic := make([]byte, len(hdf5.Signature))
	if _, err := io.ReadFull(f, magic); err != nil {
		return false
	}
	return string(magic) == hdf5.Signature
}

// File is an open scan container.
type File struct {
	h *hdf5.File
}

// Open opens a scan container. Files without the HDF5 signature fail with
// ErrNotHDF5; structurally corrupt containers fail with a parse error.
func Open(path string) (*File, error) {
	h, err := hdf5.Open(path)
	if err != nil {
		if errors.Is(err, hdf5.ErrSignature) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotHDF5)
		}
		return nil, err
	}
	return &File{h: h}, nil
}

// Close releases the underlying container.
func (f *File) Close() error { return f.h.Close() }

// Path returns the name the container was opened with.
func (f *File) Path() string { return f.h.Path() }

// SettingsOnly reports whether every root-level entry belongs to the settings
// vocabulary. Such exports are a normal part of scan archives.
func (f *File) SettingsOnly() bool {
	for _, c := range f.h.Root().Children() {
		if !settingsGroups[c.Name()] {
			return false
		}
	}
	return true
}
