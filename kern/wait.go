// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

/*
 * Wait for task id to terminate, for at most
 * timeout ns. A task that is already gone
 * answers at once from the exit table, which
 * is indexed by id alone: once an id has been
 * reaped and reused the answer may describe
 * the earlier task.
 *
 * The result is WaitExited|code, WaitTimeout,
 * or WaitInterrupted with EINTR when a signal
 * redirected the waiter. The stale flag is
 * checked before the wait status so a signal
 * always wins over a status filled in by the
 * same tick.
 */
func (t *Task) pwait(id int, timeout uint64) (uint32, Errno) {
	s := t.Sys
	if id < 0 || id >= len(s.tasks) {
		return 0, ESRCH
	}
	if id == t.ID {
		return 0, EINVAL
	}
	s.LockCLI()
	if tg := s.tasks[id]; tg == nil || tg.state == StateTerminated {
		st := WaitExited | s.exits[id]&WaitCode
		s.UnlockCLI()
		return st, 0
	}
	t.stale = false
	t.waitID = id
	t.waitStatus = 0
	t.wake = Forever
	if timeout != Forever {
		t.wake = s.now + timeout
		if t.wake < s.now || t.wake == Forever {
			t.wake = Forever - 1
		}
	}
	s.block(StatePwait)
	t.waitID = -1
	s.UnlockCLI()
	if t.stale {
		return WaitInterrupted, EINTR
	}
	return t.waitStatus, 0
}
