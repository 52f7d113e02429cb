// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trace records task state transitions.
//
// A Recorder keeps the most recent events in a bounded ring;
// attach it to a system with kern.Config.Tracer and read it back
// between calls to System.Run.
package trace

import (
	"fmt"
	"io"

	"github.com/Pixelthegreat/eclair-os-sub000/kern"
	"github.com/gammazero/deque"
)

// DefaultCapacity is the ring size used when NewRecorder is given n <= 0.
const DefaultCapacity = 4096

// A Recorder is a kern.Tracer that remembers the last Cap events.
// Only the goroutine holding the CPU calls Trace, so a Recorder must
// not be read while the system it observes is running.
type Recorder struct {
	limit   int
	dropped uint64
	q       deque.Deque[kern.Event]
}

var _ kern.Tracer = (*Recorder)(nil)

func NewRecorder(n int) *Recorder {
	if n <= 0 {
		n = DefaultCapacity
	}
	return &Recorder{limit: n}
}

// Trace appends e, evicting the oldest event when the ring is full.
func (r *Recorder) Trace(e kern.Event) {
	if r.q.Len() == r.limit {
		r.q.PopFront()
		r.dropped++
	}
	r.q.PushBack(e)
}

func (r *Recorder) Len() int { return r.q.Len() }
func (r *Recorder) Cap() int { return r.limit }

// Dropped returns the number of events evicted since the last Reset.
func (r *Recorder) Dropped() uint64 { return r.dropped }

// Events returns the recorded events, oldest first.
func (r *Recorder) Events() []kern.Event {
	out := make([]kern.Event, r.q.Len())
	for i := range out {
		out[i] = r.q.At(i)
	}
	return out
}

// Task returns the recorded events of task id, oldest first.
func (r *Recorder) Task(id int) []kern.Event {
	var out []kern.Event
	for i := 0; i < r.q.Len(); i++ {
		if e := r.q.At(i); e.Task == id {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.q.Clear()
	r.dropped = 0
}

// WriteTo prints one line per event in the form
//
//	time task from -> to
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	var total int64
	if r.dropped > 0 {
		n, err := fmt.Fprintf(w, "... %d earlier events dropped\n", r.dropped)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	for i := 0; i < r.q.Len(); i++ {
		e := r.q.At(i)
		n, err := fmt.Fprintf(w, "%12d %4d %v -> %v\n", e.Time, e.Task, e.From, e.To)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
