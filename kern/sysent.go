// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

var sysent [23]sysentry

type sysentry struct {
	args int
	name string
	impl func(*Task)
}

func init() {
	sysent = [23]sysentry{
		{0, "null", sysnull},                    /*  0 = x */
		{1, "exit(%d)", sysexit},                /*  1 = exit */
		{2, "open(%s, %x) = %d", sysopen},       /*  2 = open */
		{2, "read(%d, %d) = %d", sysread},       /*  3 = read */
		{2, "write(%d, %q) = %d", syswrite},     /*  4 = write */
		{3, "lseek(%d, %d, %d) = %d", syslseek}, /*  5 = lseek */
		{1, "close(%d)", sysclose},              /*  6 = close */
		{2, "stat(%s, %x)", sysnosys},           /*  7 = stat */
		{2, "fstat(%d, %x)", sysnosys},          /*  8 = fstat */
		{0, "getpid() = %d", sysgetpid},         /*  9 = getpid */
		{2, "kill(%d, %g)", syskill},            /* 10 = kill */
		{1, "sbrk(%d) = %x", syssbrk},           /* 11 = sbrk */
		{0, "timens()", systimens},              /* 12 = timens */
		{2, "gettimeofday(%x, %x)", sysnosys},   /* 13 = gettimeofday */
		{1, "isatty(%d)", sysnosys},             /* 14 = isatty */
		{2, "signal(%g, %x)", syssignal},        /* 15 = signal */
		{1, "panic(%x)", sysnosys},              /* 16 = panic */
		{1, "pexec(%s, %S) = %d", syspexec},     /* 17 = pexec */
		{3, "pwait(%d, %t) = %x", syspwait},     /* 18 = pwait */
		{2, "sleepns(%t)", syssleepns},          /* 19 = sleepns */
		{2, "readdir(%d, %x)", sysnosys},        /* 20 = readdir */
		{1, "mmap(%d) = %x", sysmmap},           /* 21 = mmap */
		{1, "munmap(%x)", sysmunmap},            /* 22 = munmap */
	}
}
