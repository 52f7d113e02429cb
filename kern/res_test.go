// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"testing"

	"github.com/Pixelthegreat/eclair-os-sub000/machine"
)

type flag struct{ held bool }

func (f *flag) IsHeld() bool { return f.held }
func (f *flag) SetHeld(held bool) { f.held = held }

func TestAcquireRelease(t *testing.T) {
	r := new(flag)
	var err error
	var heldIn, heldOut bool
	var res Resource
	s := boot(t, Config{}, func(t *Task) {
		err = t.Acquire(r)
		heldIn = r.held
		t.Release()
		heldOut = r.held
		res = t.Resource()
	})
	s.Run(1)
	if err != nil || !heldIn {
		t.Errorf("Acquire: err %v held %v, want nil true", err, heldIn)
	}
	if heldOut || res != nil {
		t.Errorf("after Release: held %v resource %v, want false nil", heldOut, res)
	}
	if ready := s.List(StateReady); len(ready) != 0 {
		t.Errorf("List(Ready) = %v, want none", ready)
	}
}

func TestMutualExclusion(t *testing.T) {
	r := new(flag)
	var released, got uint64
	var berr error
	tab := NewTable()
	ea := tab.Add("/bin/a", func(t *Task) {
		t.Acquire(r)
		t.Compute(15)
		t.Release()
		released = t.Sys.Ticks()
		spin(t)
	})
	eb := tab.Add("/bin/b", func(t *Task) {
		berr = t.Acquire(r)
		got = t.Sys.Ticks()
		spin(t)
	})
	s := boot(t, Config{Image: tab}, forever)
	a, _ := s.Create(ea)
	b, _ := s.Create(eb)

	s.Run(10)
	if b.State() != StatePaused || b.Resource() != r {
		t.Fatalf("b in %v holding %v, want Paused on r", b.State(), b.Resource())
	}
	if s.Current() != a || !r.held {
		t.Fatalf("a not running with r held")
	}
	s.Run(5)
	if r.held || released != 15 {
		t.Fatalf("r held %v released at %d, want free at 15", r.held, released)
	}
	if b.State() != StatePaused {
		t.Errorf("b in %v before the next tick, want Paused", b.State())
	}
	s.Run(1)
	if b.State() == StatePaused || berr != nil {
		t.Fatalf("b in %v err %v after tick, want acquired", b.State(), berr)
	}
	if got != released+1 || !r.held || b.Resource() != r {
		t.Errorf("b got r at %d (held %v), want %d", got, r.held, released+1)
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

func TestAcquireInterrupted(t *testing.T) {
	r := new(flag)
	var caught Signal
	var berr error
	tab := NewTable()
	h := tab.Add("", func(t *Task) { caught = Signal(t.Context().R[machine.EAX]) })
	ea := tab.Add("/bin/a", func(t *Task) {
		t.Acquire(r)
		spin(t)
	})
	eb := tab.Add("/bin/b", func(t *Task) {
		t.Signal(SIGINT, h)
		berr = t.Acquire(r)
		spin(t)
	})
	s := boot(t, Config{Image: tab}, forever)
	s.Create(ea)
	b, _ := s.Create(eb)

	s.Run(10)
	if b.State() != StatePaused {
		t.Fatalf("b in %v, want Paused", b.State())
	}
	if err := s.Kill(b.ID, SIGINT); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateSignaled || !b.Stale() {
		t.Fatalf("after Kill: b in %v stale %v, want Signaled stale", b.State(), b.Stale())
	}
	s.Run(1)
	if berr != EINTR {
		t.Errorf("Acquire: have %v, want %v", berr, EINTR)
	}
	if caught != SIGINT {
		t.Errorf("handler saw %v, want %v", caught, SIGINT)
	}
	if b.Resource() != nil || !r.held {
		t.Errorf("b holds %v, r held %v; want nil, true", b.Resource(), r.held)
	}
}

func TestTerminateReleases(t *testing.T) {
	r := new(flag)
	tab := NewTable()
	e := tab.Add("/bin/holder", func(t *Task) {
		t.Acquire(r)
		t.Exit(1)
	})
	s := boot(t, Config{Image: tab}, forever)
	s.Create(e)
	s.Run(1)
	if r.held {
		t.Errorf("resource still held after its holder exited")
	}
}

func TestAcquireSelf(t *testing.T) {
	r := new(flag)
	var second bool
	tab := NewTable()
	e := tab.Add("/bin/twice", func(t *Task) {
		t.Acquire(r)
		t.Acquire(r)
		second = true
	})
	s := boot(t, Config{Image: tab}, forever)
	tk, _ := s.Create(e)
	s.Run(20)
	if tk.State() != StatePaused || second {
		t.Errorf("task in %v, second Acquire returned %v; want Paused, false", tk.State(), second)
	}
	if !r.held || tk.Resource() != r {
		t.Errorf("r held %v, task waits on %v; want held, r", r.held, tk.Resource())
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

// TestAcquireOrder checks that a freed resource goes to the waiters in
// PAUSED list order, one per tick.
func TestAcquireOrder(t *testing.T) {
	r := new(flag)
	var order []int
	tab := NewTable()
	ea := tab.Add("/bin/a", func(t *Task) {
		t.Acquire(r)
		t.Compute(15)
		t.Release()
		forever(t)
	})
	ew := tab.Add("/bin/w", func(t *Task) {
		t.Acquire(r)
		order = append(order, t.ID)
		t.Release()
		forever(t)
	})
	s := boot(t, Config{Image: tab}, forever)
	s.Create(ea)
	for i := 0; i < 3; i++ {
		if _, err := s.Create(ew); err != nil {
			t.Fatal(err)
		}
	}

	s.Run(12)
	paused := s.List(StatePaused)
	if len(paused) != 3 || len(order) != 0 {
		t.Fatalf("List(Paused) = %v, granted %v; want 3 waiters, none granted", paused, order)
	}
	s.Run(30)
	if len(order) != len(paused) {
		t.Fatalf("granted %v, want %v", order, paused)
	}
	for i := range paused {
		if order[i] != paused[i] {
			t.Fatalf("granted %v, want %v", order, paused)
		}
	}
	if r.held {
		t.Errorf("r still held")
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}
