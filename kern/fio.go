// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"errors"
	"io"

	"github.com/Pixelthegreat/eclair-os-sub000/vfs"
)

// A File is an open file: a node, the open mode, and an offset.
type File struct {
	node  *vfs.Node
	flags int
	off   int64
}

func (f *File) Node() *vfs.Node { return f.node }
func (f *File) Offset() int64 { return f.off }

/*
 * Convert a user supplied
 * file descriptor into a pointer
 * to a file structure.
 */
func (t *Task) getf(fd int) *File {
	if fd < 0 || fd >= len(t.files) || t.files[fd] == nil {
		t.Error = EBADF
		return nil
	}
	return t.files[fd]
}

/*
 * Allocate the lowest free
 * user file descriptor.
 */
func (t *Task) ufalloc() int {
	for i, f := range t.files {
		if f == nil {
			return i
		}
	}
	t.Error = EMFILE
	return -1
}

func (t *Task) closef(fd int) {
	t.files[fd] = nil
}

// File returns the open file for fd, or nil.
func (t *Task) File(fd int) *File {
	if fd < 0 || fd >= len(t.files) {
		return nil
	}
	return t.files[fd]
}

/*
 * open system call
 */
func sysopen(t *Task) {
	if t.Sys.disk == nil {
		t.Error = ENODEV
		return
	}
	fd := t.ufalloc()
	if fd < 0 {
		return
	}
	flags := int(t.Args[1])
	ip, err := t.Sys.disk.Open(t.u.path, flags)
	if err != nil {
		t.Error = errno(err)
		return
	}
	t.files[fd] = &File{node: ip, flags: flags}
	t.ret = int32(fd)
}

func sysread(t *Task) {
	t.rdwr(vfs.ORead)
}

func syswrite(t *Task) {
	t.rdwr(vfs.OWrite)
}

/*
 * Common code for read and write.
 * The node is locked for the transfer;
 * a signal that arrives while waiting
 * for the lock aborts with EINTR.
 */
func (t *Task) rdwr(mode int) {
	f := t.getf(int(t.Args[0]))
	if f == nil {
		return
	}
	if f.flags&mode == 0 {
		t.Error = EBADF
		return
	}
	b := t.u.buf
	if n := int(t.Args[1]); n < len(b) {
		b = b[:n]
	}
	if e := t.acquire(f.node); e != 0 {
		t.Error = e
		return
	}
	var n int
	var err error
	if mode == vfs.ORead {
		n, err = f.node.ReadAt(b, f.off)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	} else {
		n, err = f.node.WriteAt(b, f.off)
	}
	t.release()
	if !f.node.IsDev() {
		f.off += int64(n)
	}
	if err != nil && n == 0 {
		t.Error = errno(err)
		return
	}
	t.ret = int32(n)
}

/*
 * lseek system call
 */
func syslseek(t *Task) {
	f := t.getf(int(t.Args[0]))
	if f == nil {
		return
	}
	off := int64(int32(t.Args[1]))
	switch t.Args[2] {
	case SEEK_SET:
	case SEEK_CUR:
		off += f.off
	case SEEK_END:
		off += f.node.Size()
	default:
		t.Error = EINVAL
		return
	}
	if off < 0 || off > vfs.MaxFileSize {
		t.Error = EINVAL
		return
	}
	f.off = off
	t.ret = int32(off)
}

/*
 * close system call
 */
func sysclose(t *Task) {
	fd := int(t.Args[0])
	if t.getf(fd) == nil {
		return
	}
	t.closef(fd)
}
