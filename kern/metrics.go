// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Metrics receives scheduler counters. Implementations are called with
// interrupts disabled and must not block.
type Metrics interface {
	RecordTick()
	RecordSwitch(from, to int)
	RecordSignal(sig Signal)
	RecordExit(code int)
	RecordCreateFailed()
	RecordQueueDepth(st State, n int)
}

// An Event is one state transition of one task.
type Event struct {
	Time uint64 // global time in ns
	Task int
	From State
	To   State
}

// A Tracer observes every state transition.
type Tracer interface {
	Trace(Event)
}

type nopMetrics struct{}

func (nopMetrics) RecordTick() {}
func (nopMetrics) RecordSwitch(from, to int) {}
func (nopMetrics) RecordSignal(Signal) {}
func (nopMetrics) RecordExit(int) {}
func (nopMetrics) RecordCreateFailed() {}
func (nopMetrics) RecordQueueDepth(State, int) {}

type nopTracer struct{}

func (nopTracer) Trace(Event) {}
