// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"path"

	"github.com/Pixelthegreat/eclair-os-sub000/paging"
)

// A mapping is one entry of the special-mapping table.
type mapping struct {
	addr  uint32
	pages int
}

/*
 * exit system call:
 * the bootstrap task is the idle loop
 * and may not leave.
 */
func sysexit(t *Task) {
	if t.ID == 0 {
		t.Error = EPERM
		return
	}
	t.exit(int(t.Args[0]))
}

func sysgetpid(t *Task) {
	t.ret = int32(t.ID)
}

func syskill(t *Task) {
	tg := t.Sys.Get(int(int32(t.Args[0])))
	if tg == nil {
		t.Error = ESRCH
		return
	}
	t.Error = t.Sys.signal(tg, Signal(t.Args[1]))
}

func systimens(t *Task) {
	t.u.ns = t.Sys.now
}

/*
 * Install or clear a signal handler.
 * SIGKILL cannot be caught.
 */
func syssignal(t *Task) {
	sig := Signal(t.Args[0])
	if sig <= SIGNONE || sig >= NSIG || sig == SIGKILL {
		t.Error = EINVAL
		return
	}
	if entry := t.Args[1]; entry != 0 {
		t.handlers[sig] = Install(entry)
	} else {
		t.handlers[sig] = Handler{}
	}
}

/*
 * Start a new task running the program
 * the image finds at path.
 */
func syspexec(t *Task) {
	s := t.Sys
	entry, err := s.image.Load(t.u.path)
	if err != nil {
		t.Error = errno(err)
		return
	}
	nt, err := s.Create(entry)
	if err != nil {
		t.Error = errno(err)
		return
	}
	nt.name = path.Base(t.u.path)
	nt.argv = append([]string(nil), t.u.argv...)
	t.ret = int32(nt.ID)
}

// syspwait reports an interrupted wait as a status, not an error,
// so the caller can tell it apart from a bad target.
func syspwait(t *Task) {
	timeout := uint64(t.Args[1]) | uint64(t.Args[2])<<32
	st, e := t.pwait(int(int32(t.Args[0])), timeout)
	switch e {
	case 0:
		t.ret = int32(st)
	case EINTR:
		t.ret = WaitInterrupted
	default:
		t.Error = e
	}
}

func syssleepns(t *Task) {
	ns := uint64(t.Args[0]) | uint64(t.Args[1])<<32
	deadline := t.Sys.now + ns
	if deadline < t.Sys.now {
		deadline = Forever
	}
	t.Error = t.sleep(deadline)
}

// pages returns the number of whole pages needed to hold n bytes.
func pages(n uint32) uint32 {
	return (n + paging.PageSize - 1) / paging.PageSize
}

/*
 * Move the heap break by whole pages.
 * The previous break is returned.
 */
func syssbrk(t *Task) {
	if t.dir.Slot() < 0 {
		t.Error = EPERM
		return
	}
	inc := int32(t.Args[0])
	old := HeapBase + t.brk
	switch {
	case inc > 0:
		n := pages(uint32(inc))
		if uint64(t.brk)+uint64(n)*paging.PageSize > uint64(HeapMax) {
			t.Error = ENOMEM
			return
		}
		if err := t.dir.MapNew(old, int(n), paging.User|paging.Write); err != nil {
			t.Error = ENOMEM
			return
		}
		t.brk += n * paging.PageSize
	case inc < 0:
		n := pages(uint32(-int64(inc)))
		if n*paging.PageSize > t.brk {
			t.Error = EINVAL
			return
		}
		t.brk -= n * paging.PageSize
		t.dir.Free(HeapBase+t.brk, int(n))
	}
	t.ret = int32(old)
}

/*
 * Map fresh pages in the first free slot
 * of the special-mapping table. Each slot
 * owns a fixed window of MMAPMAX pages.
 */
func sysmmap(t *Task) {
	if t.dir.Slot() < 0 {
		t.Error = EPERM
		return
	}
	n := int(int32(t.Args[0]))
	if n <= 0 || n > MMAPMAX {
		t.Error = EINVAL
		return
	}
	for i := range t.mmaps {
		m := &t.mmaps[i]
		if m.pages != 0 {
			continue
		}
		addr := MmapBase + uint32(i)*MMAPMAX*paging.PageSize
		if err := t.dir.MapNew(addr, n, paging.User|paging.Write); err != nil {
			t.Error = ENOMEM
			return
		}
		*m = mapping{addr: addr, pages: n}
		t.ret = int32(addr)
		return
	}
	t.Error = EAGAIN
}

func sysmunmap(t *Task) {
	addr := t.Args[0]
	for i := range t.mmaps {
		m := &t.mmaps[i]
		if m.pages != 0 && m.addr == addr {
			t.dir.Free(m.addr, m.pages)
			*m = mapping{}
			return
		}
	}
	t.Error = EINVAL
}
