// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kern is the multitasking core of the kernel: the task table
// and state lists, the round-robin scheduler, the resource lock, the
// sleep queue, signals and process wait, and the system call table
// that exposes them to user programs.
//
// Every task runs on its own goroutine, but only one goroutine holds
// the CPU at a time. The CPU is handed from task to task over
// unbuffered channels in swtch, so the kernel tables need no mutex;
// the critical-section counter only models the interrupt flag.
// Time advances only through timer interrupts, which are taken when a
// task computes (Task.Compute) or the CPU halts, and the embedding
// program decides how many interrupts happen with System.Run.
package kern

import (
	"fmt"
	"io"
	"runtime"

	"github.com/Pixelthegreat/eclair-os-sub000/machine"
	"github.com/Pixelthegreat/eclair-os-sub000/paging"
	"github.com/Pixelthegreat/eclair-os-sub000/vfs"
	"github.com/sirupsen/logrus"
)

// Config holds the boot parameters of a System.
// Zero fields take the defaults from DefaultConfig.
type Config struct {
	Quantum int    // ticks per time slice
	Divisor uint16 // timer reload value
	Tasks   int    // task table size
	Frames  int    // physical frames

	Image Image     // entry-point collaborator
	Disk  *vfs.Disk // file tree for open/read/write
	Main  Program   // body of the bootstrap task; nil means idle

	Log     *logrus.Logger
	Metrics Metrics
	Tracer  Tracer
	Trace   bool // log every system call and state change
}

// DefaultConfig returns the configuration of the stock kernel.
func DefaultConfig() Config {
	return Config{
		Quantum: QUANTUM,
		Divisor: PITDIV,
		Tasks:   NTASK,
		Frames:  NFRAME,
		Log:     logrus.StandardLogger(),
	}
}

type System struct {
	CPU machine.CPU

	cfg     Config
	log     *logrus.Entry
	metrics Metrics
	tracer  Tracer
	image   Image
	disk    *vfs.Disk

	pit  machine.PIT
	phys *paging.Phys
	mmu  *paging.MMU

	tasks []*Task
	lists [nstate]list
	cur   *Task
	exits []uint32 // by id; not cleared when an id is reused

	ncli      int  // critical-section depth
	npost     int  // reschedule-postponement depth
	postponed bool // reschedule requested while npost > 0

	now    uint64 // global time, ns
	ticks  uint64
	period uint64 // ns per tick

	budget int // interrupts left in the current Run
	resume chan struct{}
	idle   chan struct{}
	done   chan struct{}
	closed bool
}

type Task struct {
	ID  int
	Sys *System

	Args  [3]uint32 // syscall args
	Error Errno     // syscall error
	ret   int32     // syscall result
	u     uarea

	ctx      machine.Context
	dir      *paging.Dir
	state    State
	prev     int
	next     int
	quantum  int
	wake     uint64   // sleep and pwait deadline
	res      Resource // wanted or held resource
	granted  bool     // res was handed over by the tick scan
	sig      Signal   // pending signal
	handlers [NSIG]Handler
	stale    bool // a signal redirected the task out of its wait
	sigdone  bool // the last handler ran to completion
	faulting bool // spinning in the fault handler
	kernel   int  // nesting depth of kernel entries

	waitID     int
	waitStatus uint32

	files [NOFILE]*File
	mmaps [NMMAP]mapping
	brk   uint32

	ncli  int // saved critical-section depth while switched out
	npost int
	sched chan struct{}
	prog  Program
	name  string
	argv  []string
}

// A uarea carries the Go-side arguments of a system call that do not
// fit in a register.
type uarea struct {
	path string
	argv []string
	buf  []byte
	ns   uint64
}

// NewSystem boots a system. On return the bootstrap task (id 0) is
// current and has not yet run; call Run to start the clock.
func NewSystem(cfg Config) (*System, error) {
	def := DefaultConfig()
	if cfg.Quantum <= 0 {
		cfg.Quantum = def.Quantum
	}
	if cfg.Divisor == 0 {
		cfg.Divisor = def.Divisor
	}
	if cfg.Tasks <= 0 {
		cfg.Tasks = def.Tasks
	}
	if cfg.Frames <= 0 {
		cfg.Frames = def.Frames
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
		cfg.Log.SetOutput(io.Discard)
	}
	if cfg.Trace && !cfg.Log.IsLevelEnabled(logrus.TraceLevel) {
		cfg.Log.SetLevel(logrus.TraceLevel)
	}

	s := &System{
		cfg:     cfg,
		log:     cfg.Log.WithField("subsys", "kern"),
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
		image:   cfg.Image,
		disk:    cfg.Disk,
		tasks:   make([]*Task, cfg.Tasks),
		exits:   make([]uint32, cfg.Tasks),
		resume:  make(chan struct{}),
		idle:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.tracer == nil {
		s.tracer = nopTracer{}
	}
	if s.image == nil {
		s.image = NewTable()
	}
	for i := range s.lists {
		s.lists[i].init()
	}

	s.phys = paging.NewPhys(cfg.Frames)
	mmu, err := paging.NewMMU(s.phys, &s.CPU, cfg.Tasks)
	if err != nil {
		return nil, fmt.Errorf("kern: %w", err)
	}
	s.mmu = mmu
	s.pit.SetDivisor(cfg.Divisor)
	s.pit.SetCallback(s.tick)
	s.period = s.pit.Period()
	s.CPU.Sti()

	t, err := s.create(0, nil, make([]byte, KSTACK))
	if err != nil {
		return nil, fmt.Errorf("kern: bootstrap task: %w", err)
	}
	t.name = "idle"
	s.LockCLI()
	s.setState(t, StateRunning)
	t.quantum = cfg.Quantum
	s.cur = t
	s.CPU.ESP0 = t.ctx.KStack
	s.UnlockCLI()
	go s.boot(t)
	return s, nil
}

// create allocates the lowest free id and a task in READY.
// A non-nil stack makes a kernel-mode task on the kernel directory
// that runs on that stack; otherwise the task gets its own kernel stack
// and a user address space cloned from the template.
func (s *System) create(entry uint32, prog Program, stack []byte) (*Task, error) {
	s.LockCLI()
	defer s.UnlockCLI()

	id := -1
	for i, t := range s.tasks {
		if t == nil {
			id = i
			break
		}
	}
	if id < 0 {
		s.metrics.RecordCreateFailed()
		s.log.Info("task table full")
		return nil, EAGAIN
	}

	t := &Task{
		ID:     id,
		Sys:    s,
		prev:   -1,
		next:   -1,
		waitID: -1,
		ncli:   1,
		sched:  make(chan struct{}),
		prog:   prog,
	}
	mode := machine.User
	if stack != nil {
		t.ctx.KStack = stack
		t.dir = s.mmu.Kernel()
		mode = machine.Kernel
	} else {
		t.ctx.KStack = make([]byte, KSTACK)
		t.ctx.OwnStack = true
		dir, err := s.mmu.Clone(id)
		if err != nil {
			s.metrics.RecordCreateFailed()
			return nil, errno(err)
		}
		if err := dir.MapNew(machine.StackTop-USTACK*paging.PageSize, USTACK, paging.User|paging.Write); err != nil {
			s.mmu.Release(dir)
			s.metrics.RecordCreateFailed()
			s.log.WithField("task", id).Info("no memory for user stack")
			return nil, ENOMEM
		}
		t.dir = dir
	}
	t.ctx.Reset(entry, mode)
	s.tasks[id] = t
	s.setState(t, StateReady)
	return t, nil
}

// Create makes a task that begins executing at entry, as resolved by
// the configured Image. It returns EAGAIN when the task table or the
// address-space slots are exhausted.
func (s *System) Create(entry uint32) (*Task, error) {
	prog, ok := s.image.Code(entry)
	if !ok {
		return nil, ENOEXEC
	}
	t, err := s.create(entry, prog, nil)
	if err != nil {
		return nil, err
	}
	t.name = fmt.Sprintf("task%d", t.ID)
	go s.start(t)
	return t, nil
}

// start is the first code a new task runs once dispatched.
func (s *System) start(t *Task) {
	s.wait(t.sched)
	s.ncli, s.npost = t.ncli, t.npost
	s.UnlockCLI()
	t.prog(t)
	t.Exit(0)
}

// boot runs the bootstrap task: the configured main, then the idle loop.
func (s *System) boot(t *Task) {
	s.wait(s.resume)
	if s.cfg.Main != nil {
		s.cfg.Main(t)
	}
	for {
		s.Cleanup()
		s.hlt()
	}
}

// terminate releases everything t owns except its table slot and
// kernel stack, records code, and moves t to TERMINATED.
// The caller must reschedule if t is current.
func (s *System) terminate(t *Task, code int) {
	s.LockCLI()
	defer s.UnlockCLI()

	for fd := range t.files {
		if t.files[fd] != nil {
			t.closef(fd)
		}
	}
	if t.res != nil {
		t.res.SetHeld(false)
		t.res = nil
	}
	for i := range t.mmaps {
		t.mmaps[i] = mapping{}
	}
	t.brk = 0
	if t.dir.Slot() >= 0 {
		t.dir.FreeUser()
	}
	t.sig = SIGNONE
	s.exits[t.ID] = uint32(code) & WaitCode
	s.setState(t, StateTerminated)
	s.metrics.RecordExit(code & WaitCode)
	s.log.WithField("task", t.ID).Debugf("%s exited %#x", t.name, code&WaitCode)
}

// exit terminates the current task. It does not return.
func (t *Task) exit(code int) {
	s := t.Sys
	if t.ID == 0 {
		panic("kern: bootstrap task exit")
	}
	s.LockCLI()
	s.terminate(t, code)
	s.schedule()
	panic("kern: terminated task resumed")
}

// Cleanup reaps every terminated task other than the current one,
// releasing its address-space slot and id. It returns the number reaped
// and may be called any number of times.
func (s *System) Cleanup() int {
	s.LockCLI()
	defer s.UnlockCLI()

	n := 0
	for t := s.first(StateTerminated); t != nil; {
		next := s.after(t)
		if t != s.cur {
			s.unlink(&s.lists[StateTerminated], t)
			t.state = StateNew
			s.mmu.Release(t.dir)
			if t.ctx.OwnStack {
				t.ctx.KStack = nil
			}
			s.tasks[t.ID] = nil
			n++
		}
		t = next
	}
	return n
}

// after returns the task following t in its list.
func (s *System) after(t *Task) *Task {
	if t.next < 0 {
		return nil
	}
	return s.tasks[t.next]
}

// Get returns the live task with the given id, or nil.
// Terminated tasks are live until reaped.
func (s *System) Get(id int) *Task {
	if id < 0 || id >= len(s.tasks) {
		return nil
	}
	return s.tasks[id]
}

// Current returns the task holding the CPU.
func (s *System) Current() *Task { return s.cur }

// Time returns the global monotonic time in nanoseconds.
func (s *System) Time() uint64 { return s.now }

// Ticks returns the number of timer interrupts taken.
func (s *System) Ticks() uint64 { return s.ticks }

// Period returns the length of a tick in nanoseconds.
func (s *System) Period() uint64 { return s.period }

// Phys returns the physical frame allocator.
func (s *System) Phys() *paging.Phys { return s.phys }

// ExitStatus returns the recorded exit code for id. The table is indexed
// by id alone, so after the id is reused it may describe an earlier task.
func (s *System) ExitStatus(id int) (uint32, bool) {
	if id < 0 || id >= len(s.exits) {
		return 0, false
	}
	return s.exits[id], true
}

// Run lets the machine take n timer interrupts and returns when the CPU
// reaches the next one. Between calls the machine is stopped and the
// caller may inspect it or call Create, Kill and Cleanup.
func (s *System) Run(n int) {
	if n <= 0 || s.closed {
		return
	}
	s.budget = n
	s.resume <- struct{}{}
	<-s.idle
}

// Close stops the machine and releases every task goroutine.
func (s *System) Close() {
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// wait parks the calling goroutine until c is signalled.
// After Close it exits the goroutine instead.
func (s *System) wait(c chan struct{}) {
	select {
	case <-c:
	case <-s.done:
		runtime.Goexit()
	}
}

func (t *Task) State() State { return t.state }
func (t *Task) Quantum() int { return t.quantum }
func (t *Task) Name() string { return t.name }
func (t *Task) Argv() []string { return t.argv }
func (t *Task) Pending() Signal { return t.sig }
func (t *Task) Stale() bool { return t.stale }
func (t *Task) Deadline() uint64 { return t.wake }
func (t *Task) Dir() *paging.Dir { return t.dir }
func (t *Task) Context() machine.Context { return t.ctx }
func (t *Task) Resource() Resource { return t.res }

// Handler returns the handler installed for sig.
func (t *Task) Handler(sig Signal) Handler {
	if sig <= SIGNONE || sig >= NSIG {
		return Handler{}
	}
	return t.handlers[sig]
}

func (t *Task) String() string { return fmt.Sprintf("%d:%s", t.ID, t.name) }
