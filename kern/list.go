// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "fmt"

// A State is the scheduling state of a task. Every state but StateNew
// and StateRunning has a list; the running task is s.cur.
type State uint8

const (
	StateNew State = iota
	StateReady
	StateRunning
	StatePaused
	StateSleeping
	StateTerminated
	StateSignaled
	StatePwait
	nstate
)

var statenames = [...]string{
	StateNew:        "New",
	StateReady:      "Ready",
	StateRunning:    "Running",
	StatePaused:     "Paused",
	StateSleeping:   "Sleeping",
	StateTerminated: "Terminated",
	StateSignaled:   "Signaled",
	StatePwait:      "Pwait",
}

func (st State) String() string {
	if st < nstate {
		return statenames[st]
	}
	return fmt.Sprintf("State(%d)", st)
}

// queued reports whether tasks in state st are linked into a list.
func (st State) queued() bool {
	return st != StateNew && st != StateRunning
}

// A list is a doubly linked list of tasks threaded through the task
// table by id. -1 means none.
type list struct {
	head, tail int
	n          int
}

func (l *list) init() {
	l.head, l.tail, l.n = -1, -1, 0
}

func (s *System) push(l *list, t *Task) {
	t.prev, t.next = l.tail, -1
	if l.tail >= 0 {
		s.tasks[l.tail].next = t.ID
	} else {
		l.head = t.ID
	}
	l.tail = t.ID
	l.n++
}

func (s *System) unlink(l *list, t *Task) {
	if t.prev >= 0 {
		s.tasks[t.prev].next = t.next
	} else {
		l.head = t.next
	}
	if t.next >= 0 {
		s.tasks[t.next].prev = t.prev
	} else {
		l.tail = t.prev
	}
	t.prev, t.next = -1, -1
	l.n--
}

// first returns the head of the list for st.
func (s *System) first(st State) *Task {
	if id := s.lists[st].head; id >= 0 {
		return s.tasks[id]
	}
	return nil
}

// setState moves t from its current list to the tail of the list for st.
// Callers hold the critical section.
func (s *System) setState(t *Task, st State) {
	from := t.state
	if from.queued() {
		s.unlink(&s.lists[from], t)
	}
	t.state = st
	if st.queued() {
		s.push(&s.lists[st], t)
	}
	s.tracer.Trace(Event{Time: s.now, Task: t.ID, From: from, To: st})
	if s.cfg.Trace {
		s.log.WithField("task", t.ID).Tracef("%v -> %v", from, st)
	}
}

// List returns the ids of the tasks in state st, in list order.
// For StateRunning it returns the current task if it is running.
func (s *System) List(st State) []int {
	s.LockCLI()
	defer s.UnlockCLI()

	var ids []int
	if st == StateRunning {
		if s.cur != nil && s.cur.state == StateRunning {
			ids = append(ids, s.cur.ID)
		}
		return ids
	}
	if !st.queued() {
		return nil
	}
	for id := s.lists[st].head; id >= 0; id = s.tasks[id].next {
		ids = append(ids, id)
	}
	return ids
}

// Validate checks the list invariants: every live task is linked into
// exactly the list for its state, links are consistent in both directions,
// and only the current task is running.
func (s *System) Validate() error {
	s.LockCLI()
	defer s.UnlockCLI()

	seen := make([]int, len(s.tasks))
	for st := State(0); st < nstate; st++ {
		l := &s.lists[st]
		if !st.queued() {
			if l.head >= 0 || l.n != 0 {
				return fmt.Errorf("list %v not empty", st)
			}
			continue
		}
		prev, n := -1, 0
		for id := l.head; id >= 0; id = s.tasks[id].next {
			t := s.tasks[id]
			if t == nil {
				return fmt.Errorf("list %v: free id %d linked", st, id)
			}
			if t.state != st {
				return fmt.Errorf("list %v: task %d has state %v", st, id, t.state)
			}
			if t.prev != prev {
				return fmt.Errorf("list %v: task %d prev %d, want %d", st, id, t.prev, prev)
			}
			seen[id]++
			if seen[id] > 1 {
				return fmt.Errorf("list %v: task %d linked twice", st, id)
			}
			prev = id
			n++
		}
		if l.tail != prev {
			return fmt.Errorf("list %v: tail %d, want %d", st, l.tail, prev)
		}
		if l.n != n {
			return fmt.Errorf("list %v: count %d, want %d", st, l.n, n)
		}
	}
	for id, t := range s.tasks {
		if t == nil {
			continue
		}
		switch {
		case t.state == StateRunning:
			if t != s.cur {
				return fmt.Errorf("task %d running but not current", id)
			}
			if seen[id] != 0 {
				return fmt.Errorf("running task %d is linked", id)
			}
		case seen[id] != 1:
			return fmt.Errorf("task %d in state %v linked %d times", id, t.state, seen[id])
		}
	}
	if s.cur == nil || s.tasks[s.cur.ID] != s.cur {
		return fmt.Errorf("no current task")
	}
	return nil
}
