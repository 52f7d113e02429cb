// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paging

import (
	"fmt"

	"github.com/Pixelthegreat/eclair-os-sub000/machine"
)

// KernelBase is the start of supervisor-only kernel space.
const KernelBase uint32 = 0xC0000000

// KernelPages is the number of kernel frames mapped by the template.
const KernelPages = 16

// An MMU owns the kernel template directory and a fixed table of
// pre-reserved directories, one per task slot. Clone and Switch never
// allocate directories after boot.
type MMU struct {
	phys     *Phys
	cpu      *machine.CPU
	kernel   *Dir
	slots    []*Dir
	inuse    []bool
	cur      *Dir
	switches uint64
}

// NewMMU builds the kernel template (kernel space and the shared signal
// trampoline page) and reserves nslots directories.
func NewMMU(phys *Phys, cpu *machine.CPU, nslots int) (*MMU, error) {
	m := &MMU{
		phys:   phys,
		cpu:    cpu,
		kernel: newDir(phys, -1),
		slots:  make([]*Dir, nslots),
		inuse:  make([]bool, nslots),
	}
	if err := m.kernel.MapNew(KernelBase, KernelPages, Write); err != nil {
		return nil, fmt.Errorf("kernel space: %w", err)
	}
	f, err := phys.Alloc()
	if err != nil {
		return nil, fmt.Errorf("trampoline: %w", err)
	}
	copy(phys.Page(f)[:], machine.TrampolineCode())
	m.kernel.Map(machine.TrampolineAddr, f, User|Shared)
	for i := range m.slots {
		m.slots[i] = newDir(phys, i)
	}
	m.cur = m.kernel
	cpu.Space = m.kernel
	return m, nil
}

// Kernel returns the kernel template directory.
func (m *MMU) Kernel() *Dir { return m.kernel }

// Clone prepares the directory reserved for slot from the kernel
// template. Kernel mappings are copied as shared entries.
func (m *MMU) Clone(slot int) (*Dir, error) {
	if slot < 0 || slot >= len(m.slots) || m.inuse[slot] {
		return nil, ErrSlot
	}
	d := m.slots[slot]
	clear(d.pages)
	for vpn, e := range m.kernel.pages {
		d.pages[vpn] = e | Shared
	}
	m.inuse[slot] = true
	return d, nil
}

// Release frees the user frames of d and returns its slot to the pool.
// Releasing the kernel directory is a no-op.
func (m *MMU) Release(d *Dir) {
	if d == nil || d.slot < 0 {
		return
	}
	d.FreeUser()
	clear(d.pages)
	m.inuse[d.slot] = false
}

// Switch loads d into CR3.
func (m *MMU) Switch(d *Dir) {
	if d == m.cur {
		return
	}
	m.cur = d
	m.cpu.Space = d
	m.switches++
}

// Current returns the active directory.
func (m *MMU) Current() *Dir { return m.cur }

// Switches returns the number of CR3 loads performed.
func (m *MMU) Switches() uint64 { return m.switches }
