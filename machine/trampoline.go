// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package machine

import "encoding/binary"

// User address layout shared by every address space.
const (
	TrampolineAddr uint32 = 0xBF000000 // signal trampoline page
	StackTop       uint32 = 0xC0000000 // top of the user stack
	SigFrameAddr          = StackTop - 12
)

// A SigFrame is the fixed per-address-space record the trampoline reads:
// the handler to call, where to resume afterwards, and the signal number.
type SigFrame struct {
	Handler uint32
	EIP     uint32
	Sig     uint32
}

// TrampolineCode returns the bytes placed at TrampolineAddr:
//
//	call *SigFrameAddr
//	jmp  *SigFrameAddr+4
func TrampolineCode() []byte {
	b := make([]byte, 12)
	b[0], b[1] = 0xff, 0x15
	binary.LittleEndian.PutUint32(b[2:], SigFrameAddr)
	b[6], b[7] = 0xff, 0x25
	binary.LittleEndian.PutUint32(b[8:], SigFrameAddr+4)
	return b
}

// Redirect stores handler, the context's current resume address and sig
// into the signal frame of mem and makes the context resume in user mode
// at the trampoline. It is the only code that rewrites a saved resume
// address; everything above it treats the context as opaque.
func Redirect(ctx *Context, mem Memory, handler, sig uint32) error {
	f := SigFrame{Handler: handler, EIP: ctx.EIP, Sig: sig}
	if err := mem.WriteW(SigFrameAddr, f.Handler); err != nil {
		return err
	}
	if err := mem.WriteW(SigFrameAddr+4, f.EIP); err != nil {
		return err
	}
	if err := mem.WriteW(SigFrameAddr+8, f.Sig); err != nil {
		return err
	}
	ctx.EIP = TrampolineAddr
	ctx.Mode = User
	return nil
}

// Return reads the signal frame back and resumes the context at the
// address saved by Redirect.
func Return(ctx *Context, mem Memory) (SigFrame, error) {
	var f SigFrame
	var err error
	if f.Handler, err = mem.ReadW(SigFrameAddr); err != nil {
		return f, err
	}
	if f.EIP, err = mem.ReadW(SigFrameAddr + 4); err != nil {
		return f, err
	}
	if f.Sig, err = mem.ReadW(SigFrameAddr + 8); err != nil {
		return f, err
	}
	ctx.EIP = f.EIP
	return f, nil
}
