// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package machine

import (
	"encoding/binary"
	"testing"
)

type wordMem map[uint32]uint32

func (m wordMem) ReadW(addr uint32) (uint32, error) {
	if addr&3 != 0 {
		return 0, ErrGPFault
	}
	v, ok := m[addr]
	if !ok {
		return 0, ErrPageFault
	}
	return v, nil
}

func (m wordMem) WriteW(addr, val uint32) error {
	if addr&3 != 0 {
		return ErrGPFault
	}
	m[addr] = val
	return nil
}

var pitTests = []struct {
	div    uint16
	hz     uint32
	period uint64
}{
	{1193, 1000, 1000000},
	{11932, 99, 10101010},
	{0, PITBase, 838},
	{1, PITBase, 838},
}

func TestPIT(t *testing.T) {
	for _, tt := range pitTests {
		var p PIT
		p.SetDivisor(tt.div)
		if hz := p.Hz(); hz != tt.hz {
			t.Errorf("divisor %d: Hz() = %d, want %d", tt.div, hz, tt.hz)
		}
		if ns := p.Period(); ns != tt.period {
			t.Errorf("divisor %d: Period() = %d, want %d", tt.div, ns, tt.period)
		}
	}
}

func TestPITFire(t *testing.T) {
	var p PIT
	p.Fire() // no handler installed
	var seen []uint64
	p.SetCallback(func() {
		seen = append(seen, p.eoi)
	})
	p.Fire()
	p.Fire()
	if p.Fired() != 3 {
		t.Errorf("Fired() = %d, want 3", p.Fired())
	}
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Errorf("eoi seen by handler = %v, want [2 3]", seen)
	}
}

func TestCliSti(t *testing.T) {
	var cpu CPU
	cpu.Sti()
	if !cpu.Flags.IF() {
		t.Fatalf("IF clear after Sti")
	}
	cpu.Cli()
	if cpu.Flags.IF() {
		t.Fatalf("IF set after Cli")
	}
}

func TestContextReset(t *testing.T) {
	c := Context{KStack: make([]byte, 4096)}
	c.R[EAX] = 1
	c.R[EDI] = 7
	c.Reset(0x40000000, User)
	for r, v := range c.R {
		want := uint32(0)
		if RegNum(r) == ESP {
			want = 4096
		}
		if v != want {
			t.Errorf("%v = %#x, want %#x", RegNum(r), v, want)
		}
	}
	if c.EIP != 0x40000000 || c.Mode != User {
		t.Errorf("have eip=%#x mode=%v, want eip=0x40000000 mode=user", c.EIP, c.Mode)
	}
}

func TestRedirect(t *testing.T) {
	mem := wordMem{SigFrameAddr: 0, SigFrameAddr + 4: 0, SigFrameAddr + 8: 0}
	ctx := Context{EIP: 0x40000123, Mode: Kernel}
	if err := Redirect(&ctx, mem, 0x40000400, 5); err != nil {
		t.Fatal(err)
	}
	if ctx.EIP != TrampolineAddr || ctx.Mode != User {
		t.Fatalf("after Redirect: eip=%#x mode=%v, want %#x user", ctx.EIP, ctx.Mode, TrampolineAddr)
	}
	if mem[SigFrameAddr] != 0x40000400 || mem[SigFrameAddr+4] != 0x40000123 || mem[SigFrameAddr+8] != 5 {
		t.Fatalf("frame = %#x %#x %d", mem[SigFrameAddr], mem[SigFrameAddr+4], mem[SigFrameAddr+8])
	}
	f, err := Return(&ctx, mem)
	if err != nil {
		t.Fatal(err)
	}
	want := SigFrame{Handler: 0x40000400, EIP: 0x40000123, Sig: 5}
	if f != want {
		t.Errorf("Return = %+v, want %+v", f, want)
	}
	if ctx.EIP != 0x40000123 {
		t.Errorf("eip = %#x after Return, want 0x40000123", ctx.EIP)
	}
}

func TestRedirectFault(t *testing.T) {
	ctx := Context{EIP: 0x40000000}
	err := Redirect(&ctx, faultMem{}, 1, 2)
	if err != ErrPageFault {
		t.Fatalf("Redirect on unmapped stack = %v, want %v", err, ErrPageFault)
	}
	if ctx.EIP != 0x40000000 {
		t.Errorf("eip changed to %#x on failed Redirect", ctx.EIP)
	}
}

type faultMem struct{}

func (faultMem) ReadW(uint32) (uint32, error) { return 0, ErrPageFault }
func (faultMem) WriteW(uint32, uint32) error { return ErrPageFault }

func TestTrampolineCode(t *testing.T) {
	b := TrampolineCode()
	if b[0] != 0xff || b[1] != 0x15 || binary.LittleEndian.Uint32(b[2:]) != SigFrameAddr {
		t.Errorf("call = % x", b[:6])
	}
	if b[6] != 0xff || b[7] != 0x25 || binary.LittleEndian.Uint32(b[8:]) != SigFrameAddr+4 {
		t.Errorf("jmp = % x", b[6:])
	}
}
