// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "github.com/Pixelthegreat/eclair-os-sub000/paging"

// A Program is the user code found at an entry address.
// It runs on the task's own goroutine; returning from it exits with status 0.
// A task that is killed never returns from the call it was in, so a
// Program must not defer calls into the kernel.
type Program func(t *Task)

// An Image resolves entry addresses to code and paths to entry addresses.
// It stands in for the executable loader.
type Image interface {
	Code(entry uint32) (Program, bool)
	Load(path string) (uint32, error)
}

// A Table is an Image built by registering programs one at a time.
// Each program is given its own text page.
type Table struct {
	code  map[uint32]Program
	paths map[string]uint32
	next  uint32
}

func NewTable() *Table {
	return &Table{
		code:  make(map[uint32]Program),
		paths: make(map[string]uint32),
		next:  TextBase,
	}
}

// Add registers p and returns its entry address. If path is not empty,
// Load(path) resolves to the same address.
func (tab *Table) Add(path string, p Program) uint32 {
	entry := tab.next
	tab.next += paging.PageSize
	tab.code[entry] = p
	if path != "" {
		tab.paths[path] = entry
	}
	return entry
}

func (tab *Table) Code(entry uint32) (Program, bool) {
	p, ok := tab.code[entry]
	return p, ok
}

func (tab *Table) Load(path string) (uint32, error) {
	entry, ok := tab.paths[path]
	if !ok {
		return 0, ENOENT
	}
	return entry, nil
}
