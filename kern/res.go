// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// A Resource is an object owned by another subsystem that tasks lock
// for exclusive use. The kernel only reads and writes its held flag.
type Resource interface {
	IsHeld() bool
	SetHeld(bool)
}

/*
 * Lock r for the current task. If another task
 * holds it, pause until a clock tick finds it
 * free. There is no queue: when several tasks
 * wait for one resource, whichever the tick
 * scan meets first gets it. A task that locks
 * a resource it already holds waits forever.
 */
func (t *Task) acquire(r Resource) Errno {
	s := t.Sys
	s.LockCLI()
	t.stale = false
	t.granted = false
	t.res = r
	if !r.IsHeld() {
		r.SetHeld(true)
		s.UnlockCLI()
		return 0
	}
	s.block(StatePaused)
	e := Errno(0)
	if !t.granted {
		// A signal moved us out of PAUSED before the resource was ours.
		t.res = nil
		e = EINTR
	}
	s.UnlockCLI()
	return e
}

/*
 * Unlock the task's resource. Waiters are
 * not woken here; the next tick scan finds
 * the resource free.
 */
func (t *Task) release() {
	s := t.Sys
	s.LockCLI()
	if t.res != nil {
		t.res.SetHeld(false)
		t.res = nil
	}
	s.UnlockCLI()
}

// Acquire locks r for t, pausing until it is free.
// It returns EINTR if a signal arrives first.
func (t *Task) Acquire(r Resource) error {
	var e Errno
	t.kcall(func() { e = t.acquire(r) })
	if e != 0 {
		return e
	}
	return nil
}

// Release unlocks the resource held by t, if any.
func (t *Task) Release() {
	t.kcall(t.release)
}
