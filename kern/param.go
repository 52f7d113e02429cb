// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

/*
 * tunable variables
 */
const (
	NTASK   = 128   /* max number of tasks */
	QUANTUM = 10    /* ticks per time slice */
	PITDIV  = 1193  /* timer reload value, 1000 Hz */
	KSTACK  = 16384 /* kernel stack bytes per task */
	NOFILE  = 16    /* max open files per task */
	NMMAP   = 8     /* max special mappings per task */
	MMAPMAX = 256   /* max pages per special mapping */
	NFRAME  = 4096  /* physical frames */
	USTACK  = 16    /* user stack pages */
)

/*
 * user address layout
 */
const (
	TextBase uint32 = 0x40000000
	HeapBase uint32 = 0x50000000
	MmapBase uint32 = 0x60000000
	HeapMax         = MmapBase - HeapBase
)

/*
 * wait status
 */
const (
	WaitCode        = 0xff  /* exit code */
	WaitExited      = 0x100 /* target terminated */
	WaitTimeout     = 0x200 /* deadline passed first */
	WaitInterrupted = 0x400 /* a signal aborted the wait */
)

// Forever is the pwait timeout that never expires.
const Forever = ^uint64(0)

/*
 * system call numbers
 */
const (
	SYS_EXIT         = 1
	SYS_OPEN         = 2
	SYS_READ         = 3
	SYS_WRITE        = 4
	SYS_LSEEK        = 5
	SYS_CLOSE        = 6
	SYS_STAT         = 7
	SYS_FSTAT        = 8
	SYS_GETPID       = 9
	SYS_KILL         = 10
	SYS_SBRK         = 11
	SYS_TIMENS       = 12
	SYS_GETTIMEOFDAY = 13
	SYS_ISATTY       = 14
	SYS_SIGNAL       = 15
	SYS_PANIC        = 16
	SYS_PEXEC        = 17
	SYS_PWAIT        = 18
	SYS_SLEEPNS      = 19
	SYS_READDIR      = 20
	SYS_MMAP         = 21
	SYS_MUNMAP       = 22
)

/*
 * lseek whence
 */
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)
