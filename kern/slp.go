// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "runtime"

/*
 * Critical sections nest. Only the outermost
 * LockCLI/UnlockCLI pair changes the interrupt flag.
 */
func (s *System) LockCLI() {
	if s.ncli == 0 {
		s.CPU.Cli()
	}
	s.ncli++
}

func (s *System) UnlockCLI() {
	if s.ncli <= 0 {
		panic("kern: unlockcli")
	}
	s.ncli--
	if s.ncli == 0 {
		s.CPU.Sti()
	}
}

/*
 * While rescheduling is postponed a request only
 * sets a flag; the outermost UnlockPost performs
 * one reschedule if any was requested.
 */
func (s *System) LockPost() {
	s.npost++
}

func (s *System) UnlockPost() {
	if s.npost <= 0 {
		panic("kern: unlockpost")
	}
	s.npost--
	if s.npost == 0 && s.postponed {
		s.postponed = false
		s.LockCLI()
		s.schedule()
		s.UnlockCLI()
	}
}

// interrupt takes one timer interrupt on the current stack.
// When the Run budget is spent the machine stops here until the
// next Run.
func (s *System) interrupt() {
	for s.budget == 0 {
		s.idle <- struct{}{}
		s.wait(s.resume)
	}
	s.budget--
	s.pit.Fire()
	s.iret()
}

// hlt enables interrupts and waits for one, as sti;hlt does.
// The caller's critical-section depth is restored afterwards.
func (s *System) hlt() {
	ncli := s.ncli
	s.ncli = 0
	s.CPU.Sti()
	s.interrupt()
	s.ncli = ncli
	s.CPU.Flags.SetIF(ncli == 0)
}

/*
 * The clock interrupt. Scan the blocked
 * lists for tasks whose condition is now
 * satisfied, then charge the running task
 * for the tick.
 */
func (s *System) tick() {
	s.LockCLI()
	s.LockPost()
	s.ticks++
	s.now += s.period
	s.metrics.RecordTick()

	for t := s.first(StateSleeping); t != nil; {
		next := s.after(t)
		if s.now >= t.wake {
			s.unblock(t)
		}
		t = next
	}

	// The first waiter found for a free resource takes it.
	for t := s.first(StatePaused); t != nil; {
		next := s.after(t)
		if t.res != nil && !t.res.IsHeld() {
			t.res.SetHeld(true)
			t.granted = true
			s.unblock(t)
		}
		t = next
	}

	for t := s.first(StateSignaled); t != nil; {
		next := s.after(t)
		s.unblock(t)
		t = next
	}

	for t := s.first(StatePwait); t != nil; {
		next := s.after(t)
		if t.wake != Forever && s.now >= t.wake {
			t.waitStatus = WaitTimeout
			s.unblock(t)
		} else if tg := s.tasks[t.waitID]; tg == nil || tg.state == StateTerminated {
			t.waitStatus = WaitExited | s.exits[t.waitID]&WaitCode
			s.unblock(t)
		}
		t = next
	}

	if cur := s.cur; cur.state == StateRunning {
		cur.quantum--
		if cur.quantum <= 0 {
			s.schedule()
		}
	}
	for st := StateReady; st < nstate; st++ {
		if st.queued() {
			s.metrics.RecordQueueDepth(st, s.lists[st].n)
		}
	}
	s.UnlockPost()
	s.UnlockCLI()
}

// unblock makes a blocked task READY. Unblocking into an empty
// READY list asks for a reschedule.
func (s *System) unblock(t *Task) {
	if t.state == StateReady || t.state == StateRunning {
		return
	}
	empty := s.lists[StateReady].head < 0
	s.setState(t, StateReady)
	if empty {
		s.schedule()
	}
}

/*
 * Pick the next task to run. If nothing is
 * ready, the running task keeps the CPU with
 * a fresh quantum; a task that has blocked
 * idles on its own stack until something
 * becomes ready.
 * Called with interrupts disabled.
 */
func (s *System) schedule() {
	if s.npost > 0 {
		s.postponed = true
		return
	}
	cur := s.cur
	for s.lists[StateReady].head < 0 {
		if cur.state == StateRunning {
			cur.quantum = s.cfg.Quantum
			return
		}
		s.hlt()
		if cur.state == StateRunning {
			return
		}
	}

	next := s.first(StateReady)
	s.setState(next, StateRunning)
	next.quantum = s.cfg.Quantum
	if next != cur && cur.state == StateRunning {
		cur.quantum = s.cfg.Quantum
		s.setState(cur, StateReady)
	}
	s.swtch(next)
}

/*
 * Hand the CPU to next and wait until
 * someone hands it back. A terminated
 * task never gets it back.
 */
func (s *System) swtch(next *Task) {
	prev := s.cur
	if next == prev {
		return
	}
	s.metrics.RecordSwitch(prev.ID, next.ID)
	if s.cfg.Trace {
		s.log.WithField("task", prev.ID).Tracef("switch to %v", next)
	}
	prev.ncli, prev.npost = s.ncli, s.npost
	s.cur = next
	s.mmu.Switch(next.dir)
	s.CPU.ESP0 = next.ctx.KStack

	dead := prev.state == StateTerminated
	select {
	case next.sched <- struct{}{}:
	case <-s.done:
		runtime.Goexit()
	}
	if dead {
		runtime.Goexit()
	}
	s.wait(prev.sched)
	s.ncli, s.npost = prev.ncli, prev.npost
	s.CPU.Flags.SetIF(s.ncli == 0)
}

// block moves the current task to the list for st and gives up the CPU.
// It returns once the task has been made READY and dispatched again.
func (s *System) block(st State) {
	s.LockCLI()
	s.setState(s.cur, st)
	s.schedule()
	s.UnlockCLI()
}

// Compute runs n ticks worth of user code.
func (t *Task) Compute(n int) {
	s := t.Sys
	for i := 0; i < n; i++ {
		if !s.CPU.Flags.IF() {
			panic("kern: compute with interrupts disabled")
		}
		s.interrupt()
	}
}

/*
 * Sleep until the global clock reaches deadline.
 * A deadline already past returns at once.
 */
func (t *Task) sleep(deadline uint64) Errno {
	s := t.Sys
	s.LockCLI()
	t.stale = false
	if deadline <= s.now {
		s.UnlockCLI()
		return 0
	}
	t.wake = deadline
	s.block(StateSleeping)
	s.UnlockCLI()
	if t.stale {
		return EINTR
	}
	return 0
}
