// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"errors"
	"io"
)

// Major device numbers.
const (
	DevNull    uint8 = 1
	DevConsole uint8 = 2
)

var ErrNoDevice = errors.New("no such device")

// A Device is a character device driver, addressed by major number.
type Device interface {
	ReadAt(minor uint8, b []byte, off int64) (int, error)
	WriteAt(minor uint8, b []byte, off int64) (int, error)
}

// Attach installs dev as the driver for major.
func (d *Disk) Attach(major uint8, dev Device) {
	d.devs[major] = dev
}

func (d *Disk) dev(major uint8) Device {
	if dev, ok := d.devs[major]; ok {
		return dev
	}
	if major == DevNull {
		return nullDev{}
	}
	return errDev{}
}

type errDev struct{}

func (errDev) ReadAt(uint8, []byte, int64) (int, error) { return 0, ErrNoDevice }
func (errDev) WriteAt(uint8, []byte, int64) (int, error) { return 0, ErrNoDevice }

type nullDev struct{}

func (nullDev) ReadAt(uint8, []byte, int64) (int, error) { return 0, io.EOF }
func (nullDev) WriteAt(_ uint8, b []byte, _ int64) (int, error) { return len(b), nil }

// A Console is the system console. Offsets are ignored.
type Console struct {
	In  io.Reader
	Out io.Writer
}

func (c *Console) ReadAt(minor uint8, b []byte, off int64) (int, error) {
	if c.In == nil {
		return 0, io.EOF
	}
	return c.In.Read(b)
}

func (c *Console) WriteAt(minor uint8, b []byte, off int64) (int, error) {
	if c.Out == nil {
		return len(b), nil
	}
	return c.Out.Write(b)
}
