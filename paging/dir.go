// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"encoding/binary"
	"fmt"

	"github.com/Pixelthegreat/eclair-os-sub000/machine"
)

// A PTE is a page table entry: the frame number in the high 20 bits
// and flags in the low 12.
type PTE uint32

const (
	Present PTE = 1 << 0
	Write   PTE = 1 << 1
	User    PTE = 1 << 2
	Shared  PTE = 1 << 9 // frame owned by the template, never freed with the directory
)

func (e PTE) Frame() Frame { return Frame(e >> PageShift) }

func (e PTE) String() string {
	flags := []byte("----")
	if e&Present != 0 {
		flags[0] = 'p'
	}
	if e&Write != 0 {
		flags[1] = 'w'
	}
	if e&User != 0 {
		flags[2] = 'u'
	}
	if e&Shared != 0 {
		flags[3] = 's'
	}
	return fmt.Sprintf("%#x[%s]", e.Frame(), flags)
}

// A Dir is a page directory. Lookups by virtual page number go through a
// map rather than a radix tree; the observable behaviour is the same.
type Dir struct {
	phys  *Phys
	pages map[uint32]PTE
	slot  int // reserved slot, or -1 for the kernel template
}

func newDir(phys *Phys, slot int) *Dir {
	return &Dir{phys: phys, pages: make(map[uint32]PTE), slot: slot}
}

// Slot returns the reserved slot number of d, or -1 for the kernel directory.
func (d *Dir) Slot() int { return d.slot }

// Map maps the page containing va to f.
func (d *Dir) Map(va uint32, f Frame, flags PTE) {
	d.pages[va>>PageShift] = PTE(f)<<PageShift | flags | Present
}

// Unmap removes the mapping of the page containing va and returns it.
// The frame is not freed.
func (d *Dir) Unmap(va uint32) (PTE, bool) {
	e, ok := d.pages[va>>PageShift]
	delete(d.pages, va>>PageShift)
	return e, ok
}

// Lookup returns the entry for the page containing va.
func (d *Dir) Lookup(va uint32) (PTE, bool) {
	e, ok := d.pages[va>>PageShift]
	return e, ok
}

// MapNew maps n fresh zeroed frames starting at page-aligned va.
// On failure every frame allocated by the call is released.
func (d *Dir) MapNew(va uint32, n int, flags PTE) error {
	for i := 0; i < n; i++ {
		f, err := d.phys.Alloc()
		if err != nil {
			d.Free(va, i)
			return err
		}
		d.Map(va+uint32(i)*PageSize, f, flags)
	}
	return nil
}

// Free unmaps n pages starting at va and releases their frames.
// Shared pages are unmapped but not released.
func (d *Dir) Free(va uint32, n int) {
	for i := 0; i < n; i++ {
		e, ok := d.Unmap(va + uint32(i)*PageSize)
		if ok && e&Shared == 0 {
			d.phys.Free(e.Frame())
		}
	}
}

// FreeUser releases every user page of d that is not shared.
// Kernel and shared mappings stay in place.
func (d *Dir) FreeUser() int {
	n := 0
	for vpn, e := range d.pages {
		if e&User == 0 || e&Shared != 0 {
			continue
		}
		delete(d.pages, vpn)
		d.phys.Free(e.Frame())
		n++
	}
	return n
}

// user returns the page backing va as accessed from user mode.
func (d *Dir) user(va uint32, write bool) (*[PageSize]byte, error) {
	e, ok := d.pages[va>>PageShift]
	if !ok || e&Present == 0 || e&User == 0 {
		return nil, machine.ErrPageFault
	}
	if write && e&Write == 0 {
		return nil, machine.ErrPageFault
	}
	return d.phys.Page(e.Frame()), nil
}

// ReadW reads the word at va with user-mode permissions.
func (d *Dir) ReadW(va uint32) (uint32, error) {
	if va&3 != 0 {
		return 0, machine.ErrGPFault
	}
	pg, err := d.user(va, false)
	if err != nil {
		return 0, err
	}
	off := va & (PageSize - 1)
	return binary.LittleEndian.Uint32(pg[off:]), nil
}

// WriteW writes the word at va with user-mode permissions.
func (d *Dir) WriteW(va uint32, val uint32) error {
	if va&3 != 0 {
		return machine.ErrGPFault
	}
	pg, err := d.user(va, true)
	if err != nil {
		return err
	}
	off := va & (PageSize - 1)
	binary.LittleEndian.PutUint32(pg[off:], val)
	return nil
}

// CopyIn copies n bytes at va out of user memory.
func (d *Dir) CopyIn(va uint32, n int) ([]byte, error) {
	b := make([]byte, 0, n)
	for len(b) < n {
		pg, err := d.user(va, false)
		if err != nil {
			return b, err
		}
		off := va & (PageSize - 1)
		m := copy(b[len(b):n], pg[off:])
		b = b[:len(b)+m]
		va += uint32(m)
	}
	return b, nil
}

// CopyOut copies b into user memory at va.
func (d *Dir) CopyOut(va uint32, b []byte) error {
	for len(b) > 0 {
		pg, err := d.user(va, true)
		if err != nil {
			return err
		}
		off := va & (PageSize - 1)
		m := copy(pg[off:], b)
		b = b[m:]
		va += uint32(m)
	}
	return nil
}
