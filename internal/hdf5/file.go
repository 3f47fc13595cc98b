// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hdf5

import (
	"fmt"
	"os"
	"strings"
)

// File is an open HDF5 container. The hierarchy is resolved eagerly on Open;
// dataset contents are read on demand.
type File struct {
	f    *os.File
	path string
	sb   *superblock
	root *Group
}

// Open reads the superblock and resolves the object hierarchy. A file that
// does not begin with the HDF5 magic fails with ErrSignature.
func Open(path string) (*File, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	f := &File{f: osf, path: path}
	f.sb, err = readSuperblock(osf)
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	visited := make(map[uint64]bool)
	obj, err := loadObject(f, f.sb.rootAddr, "/", visited, 0)
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("%s: resolving root group: %w", path, err)
	}
	root, ok := obj.(*Group)
	if !ok {
		osf.Close()
		return nil, fmt.Errorf("%s: root object is not a group", path)
	}
	f.root = root
	return f, nil
}

// Close releases the underlying file. Close is idempotent.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

// Path returns the name the file was opened with.
func (f *File) Path() string { return f.path }

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Object resolves a slash-separated path to a node in the hierarchy.
func (f *File) Object(path string) (Object, error) {
	var cur Object = f.root
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		g, ok := cur.(*Group)
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		if cur = g.Child(part); cur == nil {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
	}
	return cur, nil
}

// Dataset resolves a slash-separated path to a dataset.
func (f *File) Dataset(path string) (*Dataset, error) {
	obj, err := f.Object(path)
	if err != nil {
		return nil, err
	}
	d, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%s is a group: %w", path, ErrNotFound)
	}
	return d, nil
}

// Walk visits every object below the root in depth-first file order. Paths
// are slash-separated and never begin with a slash.
func (f *File) Walk(fn func(path string, obj Object)) {
	walkGroup(f.root, "", fn)
}

func walkGroup(g *Group, prefix string, fn func(path string, obj Object)) {
	for _, child := range g.children {
		path := child.Name()
		if prefix != "" {
			path = prefix + "/" + path
		}
		fn(path, child)
		if sub, ok := child.(*Group); ok {
			walkGroup(sub, path, fn)
		}
	}
}
