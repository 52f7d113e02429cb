// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"io"
	"slices"
	"strings"
)

// File types, in the high bits of a mode.
const (
	ModeType uint16 = 0o170000
	ModeDir  uint16 = 0o040000
	ModeChr  uint16 = 0o020000
	ModeReg  uint16 = 0o100000
	ModePerm uint16 = 0o000777
)

// A Node is a file, directory or character device in the tree.
// The held flag is the advisory lock the kernel's resource layer toggles;
// nothing in this package reads it.
type Node struct {
	name     string
	mode     uint16
	major    uint8
	minor    uint8
	data     []byte
	children map[string]*Node
	parent   *Node
	disk     *Disk
	held     bool
}

func (n *Node) IsHeld() bool { return n.held }
func (n *Node) SetHeld(held bool) { n.held = held }

func (n *Node) Name() string { return n.name }
func (n *Node) Mode() uint16 { return n.mode }
func (n *Node) IsDir() bool { return n.mode&ModeType == ModeDir }
func (n *Node) IsDev() bool { return n.mode&ModeType == ModeChr }

// Path returns the absolute path of n.
func (n *Node) Path() string {
	if n.parent == nil {
		return "/"
	}
	var elems []string
	for p := n; p.parent != nil; p = p.parent {
		elems = append(elems, p.name)
	}
	slices.Reverse(elems)
	return "/" + strings.Join(elems, "/")
}

// Size returns the length of a regular file, or 0.
func (n *Node) Size() int64 {
	if n.mode&ModeType != ModeReg {
		return 0
	}
	return int64(len(n.data))
}

// Names returns the sorted entries of a directory.
func (n *Node) Names() []string {
	var names []string
	for name := range n.children {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ReadAt implements io.ReaderAt. Device nodes forward to their driver.
func (n *Node) ReadAt(b []byte, off int64) (int, error) {
	switch n.mode & ModeType {
	case ModeDir:
		return 0, ErrIsDir
	case ModeChr:
		return n.disk.dev(n.major).ReadAt(n.minor, b, off)
	}
	if off >= int64(len(n.data)) {
		return 0, io.EOF
	}
	m := copy(b, n.data[off:])
	if m < len(b) {
		return m, io.EOF
	}
	return m, nil
}

// WriteAt implements io.WriterAt, extending regular files as needed.
func (n *Node) WriteAt(b []byte, off int64) (int, error) {
	switch n.mode & ModeType {
	case ModeDir:
		return 0, ErrIsDir
	case ModeChr:
		return n.disk.dev(n.major).WriteAt(n.minor, b, off)
	}
	if off < 0 || off+int64(len(b)) > MaxFileSize {
		return 0, ErrTooLarge
	}
	if end := int(off) + len(b); end > len(n.data) {
		old := len(n.data)
		n.data = slices.Grow(n.data, end-old)[:end]
		clear(n.data[old:])
	}
	return copy(n.data[off:], b), nil
}

// Truncate discards the contents of a regular file.
func (n *Node) Truncate() {
	if n.mode&ModeType == ModeReg {
		n.data = n.data[:0]
	}
}
