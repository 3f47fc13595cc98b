// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hdf5

import (
	"errors"
	"fmt"
	"io"
)

// maxGroupDepth bounds b-tree and link recursion against corrupted files.
const maxGroupDepth = 64

// Group is a container node in the file hierarchy. Children keep the order
// they appear in on disk.
type Group struct {
	name     string
	children []Object
}

// Name returns the link name of the group; the root group is "/".
func (g *Group) Name() string { return g.name }

// Children returns the group's members.
func (g *Group) Children() []Object { return g.children }

// Child returns the member with the given name, or nil.
func (g *Group) Child(name string) Object {
	for _, c := range g.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// errSkipObject marks object kinds the reader does not model, such as
// standalone committed datatypes. Group loading drops those children.
var errSkipObject = errors.New("unsupported object kind")

// loadObject reads the object header at addr and builds a Group or Dataset.
// visited guards against link cycles.
func loadObject(f *File, addr uint64, name string, visited map[uint64]bool, depth int) (Object, error) {
	if depth > maxGroupDepth {
		return nil, errors.New("group nesting too deep")
	}
	if visited[addr] {
		return nil, errSkipObject
	}
	visited[addr] = true

	hdr, err := readObjectHeader(f.f, addr, f.sb)
	if err != nil {
		return nil, err
	}
	switch hdr.kind() {
	case objGroup:
		return loadGroup(f, hdr, name, visited, depth)
	case objDataset:
		return newDataset(f, hdr, name)
	default:
		return nil, errSkipObject
	}
}

// loadGroup resolves a group's children. New-style groups carry one link
// message per member; old-style groups point at a name b-tree whose leaves
// are symbol table nodes, with names interned in a local heap.
func loadGroup(f *File, hdr *objectHeader, name string, visited map[uint64]bool, depth int) (*Group, error) {
	g := &Group{name: name}

	links := hdr.findAll(msgLink)
	if len(links) > 0 {
		for _, data := range links {
			lm, err := parseLinkMessage(data, f.sb)
			if err != nil {
				return nil, fmt.Errorf("group %q: %w", name, err)
			}
			if lm.linkType != linkTypeHard {
				continue
			}
			child, err := loadObject(f, lm.addr, lm.name, visited, depth+1)
			if errors.Is(err, errSkipObject) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("group %q member %q: %w", name, lm.name, err)
			}
			g.children = append(g.children, child)
		}
		return g, nil
	}

	stabData := hdr.find(msgSymbolTable)
	if stabData == nil {
		// A group with neither link messages nor a symbol table is empty.
		return g, nil
	}
	stab, err := parseSymbolTableMessage(stabData, f.sb)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", name, err)
	}
	heap, err := readLocalHeap(f.f, stab.heapAddr, f.sb)
	if err != nil {
		return nil, fmt.Errorf("group %q heap: %w", name, err)
	}
	entries, err := collectGroupEntries(f.f, stab.btreeAddr, f.sb, 0)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", name, err)
	}

	for _, e := range entries {
		childName, err := heap.str(e.nameOffset)
		if err != nil {
			return nil, fmt.Errorf("group %q entry name: %w", name, err)
		}
		child, err := loadObject(f, e.addr, childName, visited, depth+1)
		if errors.Is(err, errSkipObject) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("group %q member %q: %w", name, childName, err)
		}
		g.children = append(g.children, child)
	}
	return g, nil
}

// localHeap holds a group's interned link names.
type localHeap struct {
	data []byte
}

// readLocalHeap loads the heap header ("HEAP") at addr and its data segment.
func readLocalHeap(r io.ReaderAt, addr uint64, sb *superblock) (*localHeap, error) {
	headerSize := 8 + 2*int(sb.lengthSize) + int(sb.offsetSize)
	buf := make([]byte, headerSize)
	if _, err := r.ReadAt(buf, int64(addr)); err != nil {
		return nil, fmt.Errorf("reading local heap at 0x%x: %w", addr, err)
	}
	if string(buf[0:4]) != "HEAP" {
		return nil, fmt.Errorf("bad local heap signature at 0x%x", addr)
	}

	pos := 8
	segSize := readUint(buf[pos:], int(sb.lengthSize), sb.order)
	pos += int(sb.lengthSize)
	pos += int(sb.lengthSize) // free list offset, unused
	segAddr := readUint(buf[pos:], int(sb.offsetSize), sb.order)

	if segSize > 1<<24 {
		return nil, fmt.Errorf("local heap segment unreasonably large: %d bytes", segSize)
	}
	h := &localHeap{data: make([]byte, segSize)}
	if _, err := r.ReadAt(h.data, int64(segAddr)); err != nil {
		return nil, fmt.Errorf("reading local heap segment at 0x%x: %w", segAddr, err)
	}
	return h, nil
}

// str returns the NUL-terminated string at the given heap offset.
func (h *localHeap) str(offset uint64) (string, error) {
	if offset >= uint64(len(h.data)) {
		return "", fmt.Errorf("heap offset %d outside segment of %d bytes", offset, len(h.data))
	}
	end := offset
	for end < uint64(len(h.data)) && h.data[end] != 0 {
		end++
	}
	return string(h.data[offset:end]), nil
}

// groupEntry pairs a link name heap offset with the member's header address.
type groupEntry struct {
	nameOffset uint64
	addr       uint64
}

// collectGroupEntries walks a type-0 ("group") v1 b-tree rooted at addr and
// returns all symbol table entries in key order. Leaf children are symbol
// table nodes; internal children are further b-tree nodes.
func collectGroupEntries(r io.ReaderAt, addr uint64, sb *superblock, depth int) ([]groupEntry, error) {
	if depth > maxGroupDepth {
		return nil, errors.New("group b-tree too deep")
	}

	headerSize := 8 + 2*int(sb.offsetSize)
	header := make([]byte, headerSize)
	if _, err := r.ReadAt(header, int64(addr)); err != nil {
		return nil, fmt.Errorf("reading group b-tree node at 0x%x: %w", addr, err)
	}
	if string(header[0:4]) != "TREE" {
		return nil, fmt.Errorf("bad b-tree signature at 0x%x", addr)
	}
	if header[4] != 0 {
		return nil, fmt.Errorf("b-tree node at 0x%x has type %d, want group type 0", addr, header[4])
	}
	level := header[5]
	used := sb.order.Uint16(header[6:8])
	if used == 0 {
		return nil, nil
	}

	// Keys (heap offsets, length-sized) and child addresses alternate;
	// keys are not needed for full enumeration.
	body := make([]byte, int(used)*int(sb.offsetSize)+(int(used)+1)*int(sb.lengthSize))
	if _, err := r.ReadAt(body, int64(addr)+int64(headerSize)); err != nil {
		return nil, fmt.Errorf("reading group b-tree entries at 0x%x: %w", addr, err)
	}

	var entries []groupEntry
	pos := int(sb.lengthSize) // skip leading key
	for i := 0; i < int(used); i++ {
		childAddr := readUint(body[pos:], int(sb.offsetSize), sb.order)
		pos += int(sb.offsetSize) + int(sb.lengthSize)
		if childAddr == 0 || childAddr == undefAddr {
			continue
		}
		var (
			childEntries []groupEntry
			err          error
		)
		if level == 0 {
			childEntries, err = collectNodeEntries(r, childAddr, sb)
		} else {
			childEntries, err = collectGroupEntries(r, childAddr, sb, depth+1)
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, childEntries...)
	}
	return entries, nil
}

// collectNodeEntries reads a symbol table node ("SNOD").
func collectNodeEntries(r io.ReaderAt, addr uint64, sb *superblock) ([]groupEntry, error) {
	head := make([]byte, 8)
	if _, err := r.ReadAt(head, int64(addr)); err != nil {
		return nil, fmt.Errorf("reading symbol table node at 0x%x: %w", addr, err)
	}
	if string(head[0:4]) != "SNOD" {
		return nil, fmt.Errorf("bad symbol table node signature at 0x%x", addr)
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("unsupported symbol table node version %d", head[4])
	}
	count := int(sb.order.Uint16(head[6:8]))
	if count == 0 {
		return nil, nil
	}

	entrySize := int(sb.lengthSize) + int(sb.offsetSize) + 24
	body := make([]byte, count*entrySize)
	if _, err := r.ReadAt(body, int64(addr)+8); err != nil {
		return nil, fmt.Errorf("reading symbol table entries at 0x%x: %w", addr, err)
	}

	var entries []groupEntry
	for i := 0; i < count; i++ {
		off := i * entrySize
		nameOffset := readUint(body[off:], int(sb.lengthSize), sb.order)
		objAddr := readUint(body[off+int(sb.lengthSize):], int(sb.offsetSize), sb.order)
		cacheType := sb.order.Uint32(body[off+int(sb.lengthSize)+int(sb.offsetSize):])
		if cacheType == 2 {
			// soft link entry, target is a path string in the heap
			continue
		}
		if objAddr == 0 || objAddr == undefAddr {
			continue
		}
		entries = append(entries, groupEntry{nameOffset: nameOffset, addr: objAddr})
	}
	return entries, nil
}
