// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package machine models the parts of a 32-bit x86 CPU that the
// multitasking core touches: the general registers, the interrupt flag,
// the kernel stack installed in the TSS, and the page-translated memory
// a task runs against.
package machine

import (
	"errors"
	"fmt"
)

// A CPU represents the single CPU of the machine.
type CPU struct {
	Flags Flags  // EFLAGS; only IF is modelled
	ESP0  []byte // kernel stack used on the next ring 3 to ring 0 transition
	Space Memory // active address space (CR3)
}

var (
	ErrPageFault = errors.New("page fault")
	ErrGPFault   = errors.New("general protection fault")
)

// A Memory is a 32-bit word-addressed view of an address space,
// as seen from user mode.
type Memory interface {
	ReadW(addr uint32) (uint32, error)
	WriteW(addr uint32, val uint32) error
}

// A RegNum is a general register number, in x86 encoding order.
type RegNum uint8

const (
	EAX RegNum = iota
	ECX
	EDX
	EBX
	ESP
	EBP
	ESI
	EDI
)

var regnames = [...]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

// String returns the register name for r.
func (r RegNum) String() string {
	if int(r) < len(regnames) {
		return regnames[r]
	}
	return fmt.Sprintf("r%d", r)
}

// Flags is the EFLAGS register.
type Flags uint32

const FlagIF Flags = 1 << 9 // interrupts enabled

// IF reports whether interrupt delivery is enabled.
func (f Flags) IF() bool { return f&FlagIF != 0 }

// SetIF sets the interrupt flag according to the boolean value.
func (f *Flags) SetIF(b bool) {
	if b {
		*f |= FlagIF
	} else {
		*f &^= FlagIF
	}
}

// Cli disables interrupt delivery.
func (cpu *CPU) Cli() { cpu.Flags.SetIF(false) }

// Sti enables interrupt delivery.
func (cpu *CPU) Sti() { cpu.Flags.SetIF(true) }

// A Mode is the privilege level a context resumes in.
type Mode uint8

const (
	Kernel Mode = 0
	User   Mode = 3
)

func (m Mode) String() string {
	switch m {
	case Kernel:
		return "kernel"
	case User:
		return "user"
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// A Context is the saved execution state of a task that is not running.
type Context struct {
	R        [8]uint32 // general registers
	EIP      uint32    // resume address
	Mode     Mode
	KStack   []byte // kernel stack
	OwnStack bool   // KStack was allocated for this context and is freed with it
}

// Reset zeroes the register file and arranges for the context to begin
// executing at entry in the given mode.
func (c *Context) Reset(entry uint32, mode Mode) {
	clear(c.R[:])
	c.EIP = entry
	c.Mode = mode
	c.R[ESP] = uint32(len(c.KStack))
}
