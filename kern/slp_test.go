// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"testing"

	"github.com/Pixelthegreat/eclair-os-sub000/machine"
)

func TestLockCLI(t *testing.T) {
	s := boot(t, Config{}, nil)
	if !s.CPU.Flags.IF() {
		t.Fatalf("interrupts disabled at boot")
	}
	s.LockCLI()
	s.LockCLI()
	if s.CPU.Flags.IF() {
		t.Errorf("interrupts enabled inside critical section")
	}
	s.UnlockCLI()
	if s.CPU.Flags.IF() {
		t.Errorf("inner UnlockCLI enabled interrupts")
	}
	s.UnlockCLI()
	if !s.CPU.Flags.IF() {
		t.Errorf("outer UnlockCLI left interrupts disabled")
	}
}

func mustPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	f()
}

func TestUnbalanced(t *testing.T) {
	s := boot(t, Config{}, nil)
	mustPanic(t, "UnlockCLI", s.UnlockCLI)
	mustPanic(t, "UnlockPost", s.UnlockPost)
}

func TestPostpone(t *testing.T) {
	s := boot(t, Config{Quantum: 4}, nil)
	cur := s.Current()
	cur.quantum = 1

	s.LockCLI()
	s.LockPost()
	s.LockPost()
	s.schedule()
	if !s.postponed || cur.quantum != 1 {
		t.Fatalf("schedule ran while postponed")
	}
	s.UnlockPost()
	if !s.postponed {
		t.Fatalf("inner UnlockPost consumed the request")
	}
	s.UnlockPost()
	if s.postponed || cur.quantum != 4 {
		t.Errorf("outer UnlockPost: postponed %v quantum %d, want false 4", s.postponed, cur.quantum)
	}
	s.UnlockCLI()
}

var sleepTests = []uint64{
	0,
	1,
	tick - 1,
	tick,
	tick + 1,
	3*tick + 1,
	25 * tick,
}

func TestSleep(t *testing.T) {
	for _, d := range sleepTests {
		var start, end uint64
		var err error
		s := boot(t, Config{}, func(t *Task) {
			start = t.Timens()
			err = t.SleepNS(d)
			end = t.Timens()
			forever(t)
		})
		s.Run(30)
		if err != nil {
			t.Errorf("SleepNS(%d): %v", d, err)
			continue
		}
		if end < start+d {
			t.Errorf("SleepNS(%d) woke at %d, before %d", d, end, start+d)
		}
		if end-(start+d) >= tick {
			t.Errorf("SleepNS(%d) woke at %d, more than a tick after %d", d, end, start+d)
		}
	}
}

func TestSleepWakesOthers(t *testing.T) {
	var order []int
	tab := NewTable()
	e := tab.Add("/bin/nap", func(t *Task) {
		t.SleepNS(uint64(t.Argv()[0][0]-'0') * tick)
		order = append(order, t.ID)
	})
	s := boot(t, Config{Image: tab}, forever)
	for _, arg := range []string{"5", "2", "8"} {
		tk, err := s.Create(e)
		if err != nil {
			t.Fatal(err)
		}
		tk.argv = []string{arg}
	}
	s.Run(10)
	if len(order) != 3 || order[0] != 2 || order[1] != 1 || order[2] != 3 {
		t.Errorf("woke in order %v, want [2 1 3]", order)
	}
}

func TestSleepInterrupted(t *testing.T) {
	var caught Signal
	var err error
	tab := NewTable()
	h := tab.Add("", func(t *Task) { caught = Signal(t.Context().R[machine.EAX]) })
	e := tab.Add("/bin/nap", func(t *Task) {
		t.Signal(SIGTERM, h)
		err = t.SleepNS(1000 * tick)
	})
	s := boot(t, Config{Image: tab}, forever)
	tk, _ := s.Create(e)
	s.Run(2)
	if tk.State() != StateSleeping || tk.Deadline() != 1000*tick {
		t.Fatalf("task in %v deadline %d, want Sleeping at %d", tk.State(), tk.Deadline(), 1000*tick)
	}
	s.Kill(tk.ID, SIGTERM)
	s.Run(2)
	if err != EINTR || caught != SIGTERM {
		t.Errorf("SleepNS: err %v caught %v, want %v %v", err, caught, EINTR, SIGTERM)
	}
	if st, _ := s.ExitStatus(tk.ID); tk.State() != StateTerminated || st != 0 {
		t.Errorf("task in %v status %#x, want Terminated 0", tk.State(), st)
	}
}
