// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"fmt"

	"github.com/Pixelthegreat/eclair-os-sub000/machine"
	"github.com/sirupsen/logrus"
)

// A Signal is a signal number.
type Signal int

const (
	SIGNONE Signal = iota
	SIGABRT        /* abort */
	SIGFPE         /* arithmetic fault */
	SIGKILL        /* kill, cannot be caught */
	SIGINT         /* interrupt */
	SIGSEGV        /* segmentation violation */
	SIGTERM        /* terminate */
	NSIG
)

var signames = [...]string{
	"SIGNONE",
	"SIGABRT",
	"SIGFPE",
	"SIGKILL",
	"SIGINT",
	"SIGSEGV",
	"SIGTERM",
}

func (sig Signal) String() string {
	if 0 <= sig && sig < NSIG {
		return signames[sig]
	}
	return fmt.Sprintf("Signal(%d)", int(sig))
}

// A Handler is a signal disposition: unset, or a user entry address.
type Handler struct {
	installed bool
	entry     uint32
}

// Install returns the disposition that calls entry.
func Install(entry uint32) Handler {
	return Handler{installed: true, entry: entry}
}

// Entry returns the handler address and whether one is installed.
func (h Handler) Entry() (uint32, bool) {
	return h.entry, h.installed
}

/*
 * Send sig to t. A running task raising a
 * signal on itself blocks in SIGNALED; any
 * other task is taken off whatever it was
 * waiting for and marked stale so the wait
 * reports an interruption. The next tick
 * makes every SIGNALED task ready, and the
 * signal is acted on when the task next
 * returns to user mode.
 */
func (s *System) signal(t *Task, sig Signal) Errno {
	if sig <= SIGNONE || sig >= NSIG {
		return EINVAL
	}
	if t.ID == 0 {
		return EPERM
	}
	s.LockCLI()
	if t.state == StateTerminated {
		s.UnlockCLI()
		return ESRCH
	}
	s.metrics.RecordSignal(sig)
	t.sig = sig
	t.sigdone = false
	if t == s.cur && t.state == StateRunning {
		s.block(StateSignaled)
	} else {
		t.stale = true
		s.setState(t, StateSignaled)
	}
	s.UnlockCLI()
	return 0
}

// Kill sends sig to task id from outside any task. The running task
// cannot block on behalf of the caller, so for it the signal is only
// made pending: the task stays RUNNING, never enters SIGNALED, and
// acts on the signal when the interrupt in progress returns.
func (s *System) Kill(id int, sig Signal) error {
	t := s.Get(id)
	if t == nil {
		return ESRCH
	}
	if t == s.cur && t.state == StateRunning {
		if sig <= SIGNONE || sig >= NSIG {
			return EINVAL
		}
		if t.ID == 0 {
			return EPERM
		}
		s.LockCLI()
		s.metrics.RecordSignal(sig)
		t.sig = sig
		t.sigdone = false
		s.UnlockCLI()
		return nil
	}
	if e := s.signal(t, sig); e != 0 {
		return e
	}
	return nil
}

// iret is the return path of an interrupt. A pending signal is acted on
// if the interrupt came from user mode, or from the fault handler
// waiting for exactly this delivery.
func (s *System) iret() {
	t := s.cur
	if t.state == StateRunning && t.sig != SIGNONE && (t.kernel == 0 || t.faulting) {
		t.psig()
	}
}

// userret is the return path of a system call.
func (t *Task) userret() {
	if t.kernel == 0 && t.state == StateRunning && t.sig != SIGNONE {
		t.psig()
	}
}

/*
 * Act on the pending signal. Without a
 * handler the task is terminated. With one,
 * the task is redirected through the
 * trampoline, which runs the handler and
 * resumes where the task left off.
 */
func (t *Task) psig() {
	s := t.Sys
	sig := t.sig
	t.sig = SIGNONE
	entry, ok := t.handlers[sig].Entry()
	if !ok || sig == SIGKILL {
		s.log.WithFields(logrus.Fields{"task": t.ID, "signal": sig}).Warnf("%s: unhandled %v", t.name, sig)
		t.exit(0x80 | int(sig))
	}
	if err := machine.Redirect(&t.ctx, t.dir, entry, uint32(sig)); err != nil {
		s.log.WithField("task", t.ID).Warnf("%s: bad signal stack: %v", t.name, err)
		t.exit(0x80 | int(SIGSEGV))
	}
	t.trampoline()
}

/*
 * The code at the trampoline address: call
 * the handler named in the signal frame with
 * the signal number in eax, report completion,
 * and jump back to the saved resume address.
 */
func (t *Task) trampoline() {
	s := t.Sys
	handler, err := t.dir.ReadW(machine.SigFrameAddr)
	if err != nil {
		t.exit(0x80 | int(SIGSEGV))
	}
	sig, _ := t.dir.ReadW(machine.SigFrameAddr + 8)
	prog, ok := s.image.Code(handler)
	if !ok {
		s.log.WithField("task", t.ID).Warnf("%s: signal handler %#x not mapped", t.name, handler)
		t.exit(0x80 | int(SIGSEGV))
	}
	t.ctx.R[machine.EAX] = sig
	prog(t)
	t.sigdone = true
	if _, err := machine.Return(&t.ctx, t.dir); err != nil {
		t.exit(0x80 | int(SIGSEGV))
	}
}

/*
 * A synchronous fault in user code. Raise
 * SIGSEGV on the faulting task and spin in
 * the handler until the signal has been
 * delivered. This cannot use block: the
 * fault handler is interrupt context.
 */
func (t *Task) fault(addr uint32, err error) {
	s := t.Sys
	if t.ID == 0 {
		panic(fmt.Sprintf("kern: fault in bootstrap task at %#x: %v", addr, err))
	}
	s.log.WithField("task", t.ID).Warnf("%s: %v at %#x", t.name, err, addr)
	faulting := t.faulting
	t.kernel++
	t.faulting = true
	s.signal(t, SIGSEGV)
	for !t.sigdone {
		s.hlt()
	}
	t.faulting = faulting
	t.kernel--
}

// Load reads the user word at addr. A fault is turned into SIGSEGV;
// if a handler recovers, Load returns 0.
func (t *Task) Load(addr uint32) uint32 {
	v, err := t.dir.ReadW(addr)
	if err != nil {
		t.fault(addr, err)
		return 0
	}
	return v
}

// Store writes the user word at addr. A fault is turned into SIGSEGV.
func (t *Task) Store(addr, val uint32) {
	if err := t.dir.WriteW(addr, val); err != nil {
		t.fault(addr, err)
	}
}
