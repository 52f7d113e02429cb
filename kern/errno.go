// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"errors"
	"fmt"

	"github.com/Pixelthegreat/eclair-os-sub000/paging"
	"github.com/Pixelthegreat/eclair-os-sub000/vfs"
)

// Errno values use the Linux numbering of the user-mode ABI.
// Only part of the table is produced by this kernel; the rest
// keeps the numbers stable for user code.
const (
	EPERM Errno = 1 + iota
	ENOENT
	ESRCH
	EINTR
	EIO
	ENXIO
	E2BIG
	ENOEXEC
	EBADF
	ECHILD
	EAGAIN
	ENOMEM
	EACCES
	EFAULT
	ENOTBLK
	EBUSY
	EEXIST
	EXDEV
	ENODEV
	ENOTDIR
	EISDIR
	EINVAL
	ENFILE
	EMFILE
	ENOTTY
	ETXTBSY
	EFBIG
	ENOSPC
	ESPIPE
	EROFS
	EMLINK
	EPIPE
	EDOM
	ERANGE
	EDEADLK
	ENAMETOOLONG
	ENOLCK
	ENOSYS
)

// An Errno is the error value of a system call.
// It is returned to user code negated.
type Errno int8

func (e Errno) Error() string {
	if 0 <= e && int(e) < len(enames) && enames[e] != "" {
		return enames[e]
	}
	return fmt.Sprintf("Errno(%d)", int(e))
}

var enames = []string{
	"",
	"EPERM",
	"ENOENT",
	"ESRCH",
	"EINTR",
	"EIO",
	"ENXIO",
	"E2BIG",
	"ENOEXEC",
	"EBADF",
	"ECHILD",
	"EAGAIN",
	"ENOMEM",
	"EACCES",
	"EFAULT",
	"ENOTBLK",
	"EBUSY",
	"EEXIST",
	"EXDEV",
	"ENODEV",
	"ENOTDIR",
	"EISDIR",
	"EINVAL",
	"ENFILE",
	"EMFILE",
	"ENOTTY",
	"ETXTBSY",
	"EFBIG",
	"ENOSPC",
	"ESPIPE",
	"EROFS",
	"EMLINK",
	"EPIPE",
	"EDOM",
	"ERANGE",
	"EDEADLK",
	"ENAMETOOLONG",
	"ENOLCK",
	"ENOSYS",
}

// errno converts a collaborator error into the Errno reported to user code.
func errno(err error) Errno {
	var e Errno
	switch {
	case err == nil:
		return 0
	case errors.As(err, &e):
		return e
	case errors.Is(err, vfs.ErrNotExist):
		return ENOENT
	case errors.Is(err, vfs.ErrExist):
		return EEXIST
	case errors.Is(err, vfs.ErrNotDir):
		return ENOTDIR
	case errors.Is(err, vfs.ErrIsDir):
		return EISDIR
	case errors.Is(err, vfs.ErrNoSpace):
		return ENOSPC
	case errors.Is(err, vfs.ErrTooLarge):
		return EFBIG
	case errors.Is(err, vfs.ErrNoDevice):
		return ENXIO
	case errors.Is(err, paging.ErrNoFrames):
		return ENOMEM
	case errors.Is(err, paging.ErrSlot):
		return EAGAIN
	}
	return EIO
}
