// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/Pixelthegreat/eclair-os-sub000/vfs"
)

func TestPackDir(t *testing.T) {
	bin := []byte{0, 1, 2, 0xff}
	fsys := fstest.MapFS{
		"etc/motd":  {Data: []byte("hello\n"), Mode: 0o644},
		"bin/prog":  {Data: bin, Mode: 0o755},
		"tmp/.keep": {Data: nil, Mode: 0o600},
		"empty/dir": {Mode: fs.ModeDir | 0o755},
	}
	d, err := packDir(fsys)
	if err != nil {
		t.Fatal(err)
	}
	if data, err := d.ReadFile("/etc/motd"); err != nil || string(data) != "hello\n" {
		t.Errorf("/etc/motd = %q, %v", data, err)
	}
	if data, err := d.ReadFile("/bin/prog"); err != nil || !bytes.Equal(data, bin) {
		t.Errorf("/bin/prog = %q, %v", data, err)
	}
	n, err := d.Lookup("/bin/prog")
	if err != nil {
		t.Fatal(err)
	}
	if n.Mode() != vfs.ModeReg|0o755 {
		t.Errorf("/bin/prog mode = %#o, want %#o", n.Mode(), vfs.ModeReg|0o755)
	}
	if n, err := d.Lookup("/empty/dir"); err != nil || !n.IsDir() {
		t.Errorf("/empty/dir missing: %v", err)
	}
	if n, err := d.Lookup("/dev/console"); err != nil || !n.IsDev() {
		t.Errorf("/dev/console missing: %v", err)
	}

	ar := string(d.Archive())
	if !strings.Contains(ar, "-- /etc/motd --\nhello\n") {
		t.Errorf("text file not stored as text:\n%s", ar)
	}
	if !strings.Contains(ar, "/bin/prog mode=0100755 base64=1") {
		t.Errorf("binary file not base64:\n%s", ar)
	}
}

func TestWalk(t *testing.T) {
	d, err := vfs.NewDisk(vfs.FS)
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	err = walk(d, d.Root(), func(n *vfs.Node) error {
		paths = append(paths, n.Path())
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	have := strings.Join(paths, " ")
	for _, want := range []string{"/bin /bin/cat", "/dev /dev/console /dev/null", "/etc /etc/motd /etc/rc"} {
		if !strings.Contains(have, want) {
			t.Errorf("walk = %s, missing %s", have, want)
		}
	}
}
