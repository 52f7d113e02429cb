// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// trap performs system call n with register arguments a.
// It returns the call's result, or the negated Errno on failure.
func (t *Task) trap(n int, a ...uint32) int32 {
	s := t.Sys
	if n < 0 || n >= len(sysent) {
		return -int32(ENOSYS)
	}
	sys := &sysent[n]
	t.Args = [3]uint32{}
	copy(t.Args[:sys.args], a)
	t.Error = 0
	t.ret = 0

	var desc []byte
	if s.cfg.Trace {
		desc = t.describe(sys)
	}

	t.kernel++
	sys.impl(t)
	t.kernel--

	ret := t.ret
	if t.Error != 0 {
		ret = -int32(t.Error)
	}
	if s.cfg.Trace {
		desc = t.result(desc, sys)
		s.log.WithFields(logrus.Fields{"task": t.ID, "ticks": s.ticks}).Trace(string(desc))
	}
	t.userret()
	return ret
}

// kcall runs fn as kernel code on behalf of t.
func (t *Task) kcall(fn func()) {
	t.kernel++
	fn()
	t.kernel--
	t.userret()
}

// describe formats the call half of a strace line.
func (t *Task) describe(sys *sysentry) []byte {
	var desc []byte
	arg := 0
	for i := 0; i < len(sys.name); i++ {
		if c := sys.name[i]; c != '%' {
			desc = append(desc, c)
			if c == ')' {
				break
			}
			continue
		}
		i++
		switch c := sys.name[i]; c {
		case 'd':
			desc = fmt.Appendf(desc, "%d", int32(t.Args[arg]))
			arg++
		case 'x':
			desc = fmt.Appendf(desc, "%#x", t.Args[arg])
			arg++
		case 'g':
			desc = fmt.Appendf(desc, "%v", Signal(t.Args[arg]))
			arg++
		case 's':
			desc = fmt.Appendf(desc, "%q", t.u.path)
			arg++
		case 'S':
			desc = fmt.Appendf(desc, "%q", t.u.argv)
			arg++
		case 'q':
			b := t.u.buf
			if len(b) > 32 {
				b = b[:32]
			}
			desc = fmt.Appendf(desc, "%q", b)
			arg++
		case 't':
			desc = fmt.Appendf(desc, "%d", uint64(t.Args[arg])|uint64(t.Args[arg+1])<<32)
			arg += 2
		default:
			desc = append(desc, '%', c)
		}
	}
	return desc
}

// result appends the outcome of the call to desc.
func (t *Task) result(desc []byte, sys *sysentry) []byte {
	if t.Error != 0 {
		return fmt.Appendf(desc, ": %v", t.Error)
	}
	i := strings.Index(sys.name, ")")
	if i < 0 {
		return desc
	}
	for i++; i < len(sys.name); i++ {
		if c := sys.name[i]; c != '%' {
			desc = append(desc, c)
			continue
		}
		i++
		switch c := sys.name[i]; c {
		case 'd':
			desc = fmt.Appendf(desc, "%d", t.ret)
		case 'x':
			desc = fmt.Appendf(desc, "%#x", uint32(t.ret))
		default:
			desc = append(desc, '%', c)
		}
	}
	return desc
}

func sysnull(t *Task) {
}

func sysnosys(t *Task) {
	t.Error = ENOSYS
}

func result(r int32) error {
	if r < 0 {
		return Errno(-r)
	}
	return nil
}

// The user-side system call stubs. Buffers and strings travel in the
// task's uarea rather than through user memory.

// Exit terminates the calling task with code. It returns only for the
// bootstrap task, which cannot exit.
func (t *Task) Exit(code int) error {
	return result(t.trap(SYS_EXIT, uint32(code)))
}

// Open opens path and returns the lowest free file descriptor.
func (t *Task) Open(path string, flags int) (int, error) {
	t.u.path = path
	r := t.trap(SYS_OPEN, 0, uint32(flags))
	if r < 0 {
		return -1, Errno(-r)
	}
	return int(r), nil
}

// Read reads up to len(b) bytes from fd. It returns 0 at end of file.
func (t *Task) Read(fd int, b []byte) (int, error) {
	t.u.buf = b
	r := t.trap(SYS_READ, uint32(fd), uint32(len(b)))
	t.u.buf = nil
	if r < 0 {
		return 0, Errno(-r)
	}
	return int(r), nil
}

func (t *Task) Write(fd int, b []byte) (int, error) {
	t.u.buf = b
	r := t.trap(SYS_WRITE, uint32(fd), uint32(len(b)))
	t.u.buf = nil
	if r < 0 {
		return 0, Errno(-r)
	}
	return int(r), nil
}

func (t *Task) Seek(fd int, off int32, whence int) (int64, error) {
	r := t.trap(SYS_LSEEK, uint32(fd), uint32(off), uint32(whence))
	if r < 0 {
		return 0, Errno(-r)
	}
	return int64(r), nil
}

func (t *Task) Close(fd int) error {
	return result(t.trap(SYS_CLOSE, uint32(fd)))
}

func (t *Task) Getpid() int {
	return int(t.trap(SYS_GETPID))
}

// Kill sends sig to task id. Killing oneself takes effect before
// Kill returns.
func (t *Task) Kill(id int, sig Signal) error {
	return result(t.trap(SYS_KILL, uint32(id), uint32(sig)))
}

// Sbrk moves the heap break by inc bytes, rounded to whole pages,
// and returns the previous break.
func (t *Task) Sbrk(inc int32) (uint32, error) {
	r := t.trap(SYS_SBRK, uint32(inc))
	if r < 0 {
		return 0, Errno(-r)
	}
	return uint32(r), nil
}

// Timens returns the global monotonic time in nanoseconds.
func (t *Task) Timens() uint64 {
	t.trap(SYS_TIMENS)
	return t.u.ns
}

// Signal installs entry as the handler for sig, or clears it if entry is 0.
func (t *Task) Signal(sig Signal, entry uint32) error {
	return result(t.trap(SYS_SIGNAL, uint32(sig), entry))
}

// Pexec starts the program at path with argv and returns its task id.
func (t *Task) Pexec(path string, argv []string) (int, error) {
	t.u.path = path
	t.u.argv = argv
	r := t.trap(SYS_PEXEC, 0)
	t.u.argv = nil
	if r < 0 {
		return -1, Errno(-r)
	}
	return int(r), nil
}

// Pwait waits for task id to exit, for at most timeout ns.
// The status is WaitExited|code, WaitTimeout or WaitInterrupted.
func (t *Task) Pwait(id int, timeout uint64) (uint32, error) {
	r := t.trap(SYS_PWAIT, uint32(id), uint32(timeout), uint32(timeout>>32))
	if r < 0 {
		return 0, Errno(-r)
	}
	return uint32(r), nil
}

// SleepNS sleeps for ns nanoseconds of global time.
func (t *Task) SleepNS(ns uint64) error {
	return result(t.trap(SYS_SLEEPNS, uint32(ns), uint32(ns>>32)))
}

// Mmap maps pages fresh zeroed pages and returns their address.
func (t *Task) Mmap(pages int) (uint32, error) {
	r := t.trap(SYS_MMAP, uint32(pages))
	if r < 0 {
		return 0, Errno(-r)
	}
	return uint32(r), nil
}

func (t *Task) Munmap(addr uint32) error {
	return result(t.trap(SYS_MUNMAP, addr))
}
