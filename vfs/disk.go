// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vfs is an in-memory file tree loaded from a txtar disk image.
// Its nodes are the resources the kernel locks around every transfer.
package vfs

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/tools/txtar"
)

//go:embed disk.txtar
var FS []byte

const (
	MaxNodes    = 1 << 15
	MaxFileSize = 1 << 24
)

var (
	ErrNotExist = errors.New("file does not exist")
	ErrExist    = errors.New("file already exists")
	ErrNotDir   = errors.New("not a directory")
	ErrIsDir    = errors.New("is a directory")
	ErrNoSpace  = errors.New("no space left on disk")
	ErrTooLarge = errors.New("file too large")
)

// Open flags. The values are the kernel's open(2) ABI.
const (
	ORead     = 0x1
	OWrite    = 0x2
	OTruncate = 0x4
	OCreate   = 0x100
)

type Disk struct {
	root  *Node
	nodes int
	devs  map[uint8]Device
}

// NewDisk builds a tree from a txtar archive. Each file name may be
// followed by k=v attributes: mode, major, minor and base64.
// Intermediate directories are created on demand.
func NewDisk(archive []byte) (*Disk, error) {
	d := &Disk{devs: make(map[uint8]Device)}
	d.root = d.newNode("", ModeDir|0o755, nil)

	ar := txtar.Parse(archive)
	for _, file := range ar.Files {
		f := strings.Fields(file.Name)
		if len(f) == 0 {
			return nil, fmt.Errorf("empty txtar file name")
		}
		name := f[0]
		mode := ModeReg | 0o644
		var major, minor uint8
		b64 := false
		for _, arg := range f[1:] {
			k, v, ok := strings.Cut(arg, "=")
			if !ok {
				return nil, fmt.Errorf("invalid txtar k=v: %s", arg)
			}
			i, err := strconv.ParseInt(v, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid txtar k=v: %s", arg)
			}
			switch k {
			default:
				return nil, fmt.Errorf("invalid txtar k=v: %s", arg)
			case "mode":
				mode = uint16(i)
				if mode&ModeType == 0 {
					mode |= ModeReg
				}
			case "major":
				major = uint8(i)
			case "minor":
				minor = uint8(i)
			case "base64":
				b64 = i != 0
			}
		}

		dir, err := d.mkdirAll(path.Dir(name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		base := path.Base(name)
		ip := dir.children[base]
		if ip == nil {
			if d.nodes >= MaxNodes {
				return nil, fmt.Errorf("%s: %w", name, ErrNoSpace)
			}
			ip = d.newNode(base, mode, dir)
		}
		ip.mode = mode
		ip.major, ip.minor = major, minor
		if mode&ModeType == ModeReg {
			data := file.Data
			if b64 {
				dec, err := base64.StdEncoding.DecodeString(string(data))
				if err != nil {
					return nil, fmt.Errorf("%s: decoding: %v", name, err)
				}
				data = dec
			}
			ip.data = data
		}
	}
	return d, nil
}

func (d *Disk) newNode(name string, mode uint16, parent *Node) *Node {
	n := &Node{name: name, mode: mode, parent: parent, disk: d}
	if mode&ModeType == ModeDir {
		n.children = make(map[string]*Node)
	}
	if parent != nil {
		parent.children[name] = n
	}
	d.nodes++
	return n
}

func (d *Disk) mkdirAll(dir string) (*Node, error) {
	dp := d.root
	for _, elem := range split(dir) {
		next := dp.children[elem]
		if next == nil {
			next = d.newNode(elem, ModeDir|0o755, dp)
		}
		if !next.IsDir() {
			return nil, ErrNotDir
		}
		dp = next
	}
	return dp, nil
}

func split(name string) []string {
	var elems []string
	for _, e := range strings.Split(name, "/") {
		if e != "" && e != "." {
			elems = append(elems, e)
		}
	}
	return elems
}

// Root returns the root directory.
func (d *Disk) Root() *Node { return d.root }

// Lookup resolves an absolute or root-relative path.
func (d *Disk) Lookup(name string) (*Node, error) {
	ip, _, err := d.namei(name)
	if err != nil {
		return nil, err
	}
	if ip == nil {
		return nil, ErrNotExist
	}
	return ip, nil
}

// namei returns the node for name, or nil and its would-be parent.
func (d *Disk) namei(name string) (ip, dp *Node, err error) {
	ip = d.root
	for _, elem := range split(name) {
		if ip == nil {
			return nil, nil, ErrNotExist
		}
		if !ip.IsDir() {
			return nil, nil, ErrNotDir
		}
		dp = ip
		if elem == ".." {
			if ip.parent != nil {
				ip = ip.parent
			}
			continue
		}
		ip = dp.children[elem]
	}
	return ip, dp, nil
}

// Open resolves name according to the OCreate and OTruncate flags.
func (d *Disk) Open(name string, flags int) (*Node, error) {
	ip, dp, err := d.namei(name)
	if err != nil {
		return nil, err
	}
	if ip == nil {
		if flags&OCreate == 0 || dp == nil {
			return nil, ErrNotExist
		}
		if d.nodes >= MaxNodes {
			return nil, ErrNoSpace
		}
		ip = d.newNode(path.Base(name), ModeReg|0o644, dp)
	}
	if ip.IsDir() && flags&OWrite != 0 {
		return nil, ErrIsDir
	}
	if flags&OTruncate != 0 {
		ip.Truncate()
	}
	return ip, nil
}

// ReadFile returns the contents of a regular file.
func (d *Disk) ReadFile(name string) ([]byte, error) {
	ip, err := d.Lookup(name)
	if err != nil {
		return nil, err
	}
	if ip.IsDir() {
		return nil, ErrIsDir
	}
	return append([]byte(nil), ip.data...), nil
}

// Archive writes the tree back out in the format NewDisk reads.
func (d *Disk) Archive() []byte {
	ar := new(txtar.Archive)
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, name := range n.Names() {
			c := n.children[name]
			switch c.mode & ModeType {
			case ModeDir:
				if len(c.children) == 0 || c.mode != ModeDir|0o755 {
					ar.Files = append(ar.Files, txtar.File{Name: fmt.Sprintf("%s mode=%#o", c.Path(), c.mode)})
				}
				walk(c)
			case ModeChr:
				ar.Files = append(ar.Files, txtar.File{Name: fmt.Sprintf("%s mode=%#o major=%d minor=%d", c.Path(), c.mode, c.major, c.minor)})
			default:
				fname := c.Path()
				if c.mode != ModeReg|0o644 {
					fname += fmt.Sprintf(" mode=%#o", c.mode)
				}
				data := c.data
				if len(data) > 0 && (!utf8.Valid(data) || bytes.HasPrefix(data, []byte("-- ")) || bytes.Contains(data, []byte("\n-- ")) || !bytes.HasSuffix(data, []byte("\n"))) {
					fname += " base64=1"
					data = []byte(wrap(base64.StdEncoding.EncodeToString(data)))
				}
				ar.Files = append(ar.Files, txtar.File{Name: fname, Data: data})
			}
		}
	}
	walk(d.root)
	return txtar.Format(ar)
}

func wrap(text string) string {
	if len(text) < 70 {
		return text + "\n"
	}
	return text[:70] + "\n" + wrap(text[70:])
}
