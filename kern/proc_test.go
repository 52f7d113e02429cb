// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"testing"

	"github.com/Pixelthegreat/eclair-os-sub000/paging"
)

const tick = 1000000 // ns per tick at the default divisor

// boot starts a system running main as the bootstrap task.
// The system is closed when the test ends.
func boot(t *testing.T, cfg Config, main Program) *System {
	t.Helper()
	cfg.Main = main
	s, err := NewSystem(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func spin(t *Task) {
	for {
		t.Compute(1)
	}
}

func forever(t *Task) {
	t.SleepNS(Forever)
}

func TestBoot(t *testing.T) {
	s := boot(t, Config{}, nil)
	s.Run(5)
	if n := s.Ticks(); n != 5 {
		t.Errorf("Ticks() = %d, want 5", n)
	}
	if now := s.Time(); now != 5*tick {
		t.Errorf("Time() = %d, want %d", now, 5*tick)
	}
	cur := s.Current()
	if cur.ID != 0 || cur.State() != StateRunning || cur.Name() != "idle" {
		t.Errorf("Current() = %v in %v, want 0:idle running", cur, cur.State())
	}
	if cur.Dir() != s.mmu.Kernel() {
		t.Errorf("bootstrap task not on kernel directory")
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

func TestQuantum(t *testing.T) {
	tab := NewTable()
	entry := tab.Add("/bin/spin", spin)
	s := boot(t, Config{Quantum: 5, Image: tab}, forever)

	a, err := s.Create(entry)
	if err != nil {
		t.Fatal(err)
	}
	if a.State() != StateReady {
		t.Fatalf("new task in %v, want Ready", a.State())
	}
	s.Run(1)
	if s.Current() != a || a.Quantum() != 4 {
		t.Fatalf("after 1 tick: current %v quantum %d, want %v quantum 4", s.Current(), a.Quantum(), a)
	}
	sw := s.mmu.Switches()
	s.Run(4)
	if s.Current() != a || a.Quantum() != 5 {
		t.Fatalf("after 5 ticks: current %v quantum %d, want %v quantum 5", s.Current(), a.Quantum(), a)
	}
	if s.mmu.Switches() != sw {
		t.Errorf("address space switched with nothing ready")
	}

	b, err := s.Create(entry)
	if err != nil {
		t.Fatal(err)
	}
	s.Run(4)
	if s.Current() != a || b.State() != StateReady {
		t.Fatalf("before expiry: current %v, b in %v", s.Current(), b.State())
	}
	s.Run(1)
	if s.Current() != b || b.Quantum() != 5 {
		t.Errorf("after expiry: current %v quantum %d, want %v quantum 5", s.Current(), b.Quantum(), b)
	}
	if a.State() != StateReady || a.Quantum() != 5 {
		t.Errorf("after expiry: a in %v quantum %d, want Ready quantum 5", a.State(), a.Quantum())
	}
	if have, want := s.List(StateReady), []int{a.ID}; len(have) != 1 || have[0] != want[0] {
		t.Errorf("List(Ready) = %v, want %v", have, want)
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

func TestCreateExhausted(t *testing.T) {
	tab := NewTable()
	entry := tab.Add("/bin/spin", spin)
	s := boot(t, Config{Tasks: 4, Image: tab}, nil)

	for i := 1; i < 4; i++ {
		tk, err := s.Create(entry)
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		if tk.ID != i {
			t.Errorf("Create #%d: id %d", i, tk.ID)
		}
	}
	if _, err := s.Create(entry); err != EAGAIN {
		t.Errorf("Create with full table: have %v, want %v", err, EAGAIN)
	}
	if _, err := s.Create(entry + 1); err != ENOEXEC {
		t.Errorf("Create at bad entry: have %v, want %v", err, ENOEXEC)
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

func TestCreateNoMemory(t *testing.T) {
	tab := NewTable()
	entry := tab.Add("/bin/spin", spin)
	// Kernel space, the trampoline page and one user stack.
	s := boot(t, Config{Frames: paging.KernelPages + 1 + USTACK, Image: tab}, nil)

	if _, err := s.Create(entry); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(entry); err != ENOMEM {
		t.Errorf("Create without frames: have %v, want %v", err, ENOMEM)
	}
	if s.Get(2) != nil {
		t.Errorf("failed Create left task 2 behind")
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

func TestCleanup(t *testing.T) {
	tab := NewTable()
	entry := tab.Add("/bin/true", func(t *Task) {})
	s := boot(t, Config{Image: tab}, nil)

	inuse := s.Phys().InUse()
	a, _ := s.Create(entry)
	b, _ := s.Create(entry)
	s.Run(30)
	if s.Get(a.ID) != nil || s.Get(b.ID) != nil {
		t.Fatalf("exited tasks not reaped: %v %v", s.Get(a.ID), s.Get(b.ID))
	}
	if a.State() != StateNew {
		t.Errorf("reaped task in %v, want New", a.State())
	}
	if n := s.Cleanup(); n != 0 {
		t.Errorf("second Cleanup reaped %d", n)
	}
	if n := s.Phys().InUse(); n != inuse {
		t.Errorf("frames in use = %d, want %d", n, inuse)
	}
	if err := s.Validate(); err != nil {
		t.Error(err)
	}
}

func TestExitStatusReuse(t *testing.T) {
	tab := NewTable()
	seven := tab.Add("/bin/seven", func(t *Task) { t.Exit(7) })
	sp := tab.Add("/bin/spin", spin)
	s := boot(t, Config{Tasks: 2, Image: tab}, nil)

	tk, err := s.Create(seven)
	if err != nil {
		t.Fatal(err)
	}
	s.Run(20)
	if s.Get(tk.ID) != nil {
		t.Fatalf("task %d not reaped", tk.ID)
	}
	if st, ok := s.ExitStatus(tk.ID); !ok || st != 7 {
		t.Errorf("ExitStatus(%d) = %d, %v, want 7, true", tk.ID, st, ok)
	}

	next, err := s.Create(sp)
	if err != nil {
		t.Fatal(err)
	}
	if next.ID != tk.ID {
		t.Fatalf("reused id %d, want %d", next.ID, tk.ID)
	}
	if st, _ := s.ExitStatus(next.ID); st != 7 {
		t.Errorf("ExitStatus after reuse = %d, want stale 7", st)
	}
	if _, ok := s.ExitStatus(-1); ok {
		t.Errorf("ExitStatus(-1) ok")
	}
}

type eventLog []Event

func (l *eventLog) Trace(e Event) { *l = append(*l, e) }

type counters struct {
	ticks, switches, signals, exits, failed int
	codes                                   []int
}

func (c *counters) RecordTick() { c.ticks++ }
func (c *counters) RecordSwitch(from, to int) { c.switches++ }
func (c *counters) RecordSignal(Signal) { c.signals++ }
func (c *counters) RecordExit(code int) { c.exits++; c.codes = append(c.codes, code) }
func (c *counters) RecordCreateFailed() { c.failed++ }
func (c *counters) RecordQueueDepth(State, int) {}

func TestObservers(t *testing.T) {
	tab := NewTable()
	entry := tab.Add("/bin/three", func(t *Task) { t.Exit(3) })
	var events eventLog
	var m counters
	s := boot(t, Config{Image: tab, Tracer: &events, Metrics: &m}, forever)

	tk, _ := s.Create(entry)
	s.Run(3)

	var path []State
	for _, e := range events {
		if e.Task == tk.ID {
			path = append(path, e.To)
		}
	}
	want := []State{StateReady, StateRunning, StateTerminated}
	if len(path) != len(want) {
		t.Fatalf("task %d went through %v, want %v", tk.ID, path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("task %d went through %v, want %v", tk.ID, path, want)
		}
	}
	if m.ticks != 3 || m.exits != 1 || m.codes[0] != 3 {
		t.Errorf("metrics: %d ticks, %d exits %v, want 3 ticks, 1 exit [3]", m.ticks, m.exits, m.codes)
	}
	if m.switches == 0 {
		t.Errorf("no switches recorded")
	}
}

// TestInvariant runs a mixed load and checks the list invariants
// after every tick.
func TestInvariant(t *testing.T) {
	tab := NewTable()
	r := new(flag)
	sp := tab.Add("/bin/spin", spin)
	nap := tab.Add("/bin/nap", func(t *Task) {
		for i := 0; ; i++ {
			t.SleepNS(uint64(i%4) * tick)
			t.Compute(2)
		}
	})
	locker := tab.Add("/bin/locker", func(t *Task) {
		for {
			if t.Acquire(r) == nil {
				t.Compute(3)
				t.Release()
			}
			t.Compute(1)
		}
	})
	short := tab.Add("/bin/short", func(t *Task) { t.Compute(7) })
	s := boot(t, Config{Quantum: 3, Image: tab}, nil)

	for _, e := range []uint32{sp, nap, nap, locker, locker, locker, short} {
		if _, err := s.Create(e); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 300; i++ {
		s.Run(1)
		if err := s.Validate(); err != nil {
			t.Fatalf("tick %d: %v", s.Ticks(), err)
		}
		if i == 150 {
			for id := 1; id < 4; id++ {
				s.Kill(id, SIGTERM)
			}
		}
	}
}
