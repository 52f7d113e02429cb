// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package progs holds the user programs of the stock disk image.
// Install registers them in a kern.Table under /bin; the disk only
// carries placeholder files with the same names.
package progs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Pixelthegreat/eclair-os-sub000/kern"
	"github.com/Pixelthegreat/eclair-os-sub000/machine"
	"github.com/Pixelthegreat/eclair-os-sub000/paging"
	"github.com/Pixelthegreat/eclair-os-sub000/vfs"
)

// Install registers the standard programs in tab.
func Install(tab *kern.Table) {
	h := tab.Add("", catch)
	tab.Add("/bin/init", initrc)
	tab.Add("/bin/sleep", sleep)
	tab.Add("/bin/spin", spin)
	tab.Add("/bin/cat", cat)
	tab.Add("/bin/kill", kill)
	tab.Add("/bin/segv", func(t *kern.Task) { segv(t, h) })
	tab.Add("/bin/hog", hog)
}

// Status formats a pwait status.
func Status(st uint32) string {
	switch {
	case st&kern.WaitInterrupted != 0:
		return "interrupted"
	case st&kern.WaitTimeout != 0:
		return "timed out"
	case st&kern.WaitExited == 0:
		return fmt.Sprintf("status %#x", st)
	}
	code := st & kern.WaitCode
	if code&0x80 != 0 {
		return "killed by " + kern.Signal(code&^0x80).String()
	}
	return fmt.Sprintf("exited %d", code)
}

func printf(t *kern.Task, format string, args ...any) {
	fd, err := t.Open("/dev/console", vfs.OWrite)
	if err != nil {
		return
	}
	t.Write(fd, []byte(fmt.Sprintf(format, args...)))
	t.Close(fd)
}

func fatalf(t *kern.Task, format string, args ...any) {
	printf(t, format, args...)
	t.Exit(1)
}

// copyFile copies the open file in to the open file out.
func copyFile(t *kern.Task, out, in int) error {
	buf := make([]byte, 512)
	for {
		n, err := t.Read(in, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := t.Write(out, buf[:n]); err != nil {
			return err
		}
	}
}

func readFile(t *kern.Task, name string) ([]byte, error) {
	fd, err := t.Open(name, vfs.ORead)
	if err != nil {
		return nil, err
	}
	var data []byte
	buf := make([]byte, 512)
	for {
		n, err := t.Read(fd, buf)
		if err != nil {
			t.Close(fd)
			return nil, err
		}
		if n == 0 {
			break
		}
		data = append(data, buf[:n]...)
	}
	t.Close(fd)
	return data, nil
}

/*
 * Run each line of /etc/rc as a command
 * and wait for it, reporting how it ended.
 */
func initrc(t *kern.Task) {
	rc, err := readFile(t, "/etc/rc")
	if err != nil {
		fatalf(t, "init: /etc/rc: %v\n", err)
	}
	for _, line := range strings.Split(string(rc), "\n") {
		args := strings.Fields(line)
		if len(args) == 0 || strings.HasPrefix(args[0], "#") {
			continue
		}
		id, err := t.Pexec("/bin/"+args[0], args)
		if err != nil {
			printf(t, "init: %s: %v\n", args[0], err)
			continue
		}
		st, err := t.Pwait(id, kern.Forever)
		if err != nil {
			printf(t, "init: wait %d: %v\n", id, err)
			continue
		}
		printf(t, "init: %s: %s\n", args[0], Status(st))
	}
}

// sleep [ns]
func sleep(t *kern.Task) {
	ns := uint64(1000000000)
	if argv := t.Argv(); len(argv) > 1 {
		n, err := strconv.ParseUint(argv[1], 0, 64)
		if err != nil {
			fatalf(t, "sleep: bad duration %q\n", argv[1])
		}
		ns = n
	}
	if err := t.SleepNS(ns); err != nil {
		fatalf(t, "sleep: %v\n", err)
	}
}

// spin [ticks]
func spin(t *kern.Task) {
	argv := t.Argv()
	if len(argv) < 2 {
		for {
			t.Compute(1)
		}
	}
	n, err := strconv.Atoi(argv[1])
	if err != nil {
		fatalf(t, "spin: bad count %q\n", argv[1])
	}
	t.Compute(n)
}

// cat [file...]
func cat(t *kern.Task) {
	out, err := t.Open("/dev/console", vfs.OWrite)
	if err != nil {
		t.Exit(1)
	}
	args := t.Argv()
	if len(args) > 0 {
		args = args[1:]
	}
	if len(args) == 0 {
		args = []string{"/dev/console"}
	}
	status := 0
	for _, name := range args {
		in, err := t.Open(name, vfs.ORead)
		if err != nil {
			printf(t, "cat: %s: %v\n", name, err)
			status = 1
			continue
		}
		if err := copyFile(t, out, in); err != nil {
			printf(t, "cat: %s: %v\n", name, err)
			status = 1
		}
		t.Close(in)
	}
	t.Close(out)
	t.Exit(status)
}

// parseSignal accepts a signal number or a name with or without SIG.
func parseSignal(s string) (kern.Signal, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return kern.Signal(n), n > 0 && n < int(kern.NSIG)
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	for sig := kern.SIGNONE + 1; sig < kern.NSIG; sig++ {
		if sig.String() == name {
			return sig, true
		}
	}
	return 0, false
}

// kill [-sig] id...
func kill(t *kern.Task) {
	args := t.Argv()
	if len(args) > 0 {
		args = args[1:]
	}
	sig := kern.SIGTERM
	if len(args) > 0 && strings.HasPrefix(args[0], "-") {
		s, ok := parseSignal(args[0][1:])
		if !ok {
			fatalf(t, "kill: bad signal %s\n", args[0])
		}
		sig = s
		args = args[1:]
	}
	if len(args) == 0 {
		fatalf(t, "usage: kill [-sig] id...\n")
	}
	status := 0
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			printf(t, "kill: bad id %q\n", a)
			status = 1
			continue
		}
		if err := t.Kill(id, sig); err != nil {
			printf(t, "kill: %d: %v\n", id, err)
			status = 1
		}
	}
	t.Exit(status)
}

// catch is the signal handler installed by segv.
func catch(t *kern.Task) {
	sig := kern.Signal(t.Context().R[machine.EAX])
	printf(t, "%s: caught %v\n", t.Name(), sig)
}

// segv [-n]
// Touch an unmapped page. Without -n a handler catches the fault.
func segv(t *kern.Task, handler uint32) {
	argv := t.Argv()
	if len(argv) < 2 || argv[1] != "-n" {
		if err := t.Signal(kern.SIGSEGV, handler); err != nil {
			fatalf(t, "segv: signal: %v\n", err)
		}
	}
	t.Load(0)
	printf(t, "segv: survived\n")
}

// hog [pages]
// Map, touch and release memory through both mmap and sbrk.
func hog(t *kern.Task) {
	n := 1
	if argv := t.Argv(); len(argv) > 1 {
		v, err := strconv.Atoi(argv[1])
		if err != nil || v <= 0 || v > kern.MMAPMAX {
			fatalf(t, "hog: bad page count %q\n", argv[1])
		}
		n = v
	}
	addr, err := t.Mmap(n)
	if err != nil {
		fatalf(t, "hog: mmap: %v\n", err)
	}
	brk, err := t.Sbrk(int32(n * paging.PageSize))
	if err != nil {
		fatalf(t, "hog: sbrk: %v\n", err)
	}
	for i := 0; i < n; i++ {
		off := uint32(i) * paging.PageSize
		t.Store(addr+off, uint32(i))
		t.Store(brk+off, uint32(i))
	}
	t.Compute(n)
	sum := uint32(0)
	for i := 0; i < n; i++ {
		off := uint32(i) * paging.PageSize
		sum += t.Load(addr+off) + t.Load(brk+off)
	}
	if err := t.Munmap(addr); err != nil {
		fatalf(t, "hog: munmap: %v\n", err)
	}
	if _, err := t.Sbrk(-int32(n * paging.PageSize)); err != nil {
		fatalf(t, "hog: sbrk: %v\n", err)
	}
	printf(t, "hog: %d pages at %#x and %#x, sum %d\n", n, addr, brk, sum)
}
