// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package paging is the address-space collaborator of the kernel:
// a physical frame allocator, two-level page directories flattened into
// a page map, and the pool of pre-reserved per-task directory slots.
package paging

import "errors"

const (
	PageSize  = 4096
	PageShift = 12
)

var (
	ErrNoFrames = errors.New("out of physical frames")
	ErrSlot     = errors.New("address-space slot unavailable")
)

// A Frame is a physical frame number. Frame 0 is never allocated.
type Frame uint32

// Phys is the physical frame allocator. Frame contents are allocated
// the first time a frame is handed out and reused after Free.
type Phys struct {
	mem  []*[PageSize]byte
	free []Frame
	used int
}

// NewPhys returns an allocator managing n frames.
func NewPhys(n int) *Phys {
	p := &Phys{mem: make([]*[PageSize]byte, n+1)}
	for f := n; f >= 1; f-- {
		p.free = append(p.free, Frame(f))
	}
	return p
}

// Alloc returns a zeroed frame.
func (p *Phys) Alloc() (Frame, error) {
	if len(p.free) == 0 {
		return 0, ErrNoFrames
	}
	f := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	if p.mem[f] == nil {
		p.mem[f] = new([PageSize]byte)
	} else {
		clear(p.mem[f][:])
	}
	p.used++
	return f, nil
}

// Free returns f to the allocator.
func (p *Phys) Free(f Frame) {
	if f == 0 || int(f) >= len(p.mem) {
		panic("paging: free of bad frame")
	}
	p.free = append(p.free, f)
	p.used--
}

// Page returns the contents of f.
func (p *Phys) Page(f Frame) *[PageSize]byte {
	return p.mem[f]
}

// InUse returns the number of allocated frames.
func (p *Phys) InUse() int {
	return p.used
}
