// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ecdisk converts between host directories and the txtar disk format
// read by the vfs package and the ecrun command.
//
// Usage:
//
//	ecdisk pack [-o disk.txtar] dir
//	ecdisk extract [-o dir] disk.txtar
//	ecdisk ls disk.txtar
//
// Pack stores every regular file and directory under dir. Files that
// are not valid text are written base64-encoded. The console device
// node /dev/console is added if dir does not provide one.
//
// Extract writes regular files and directories into dir (default _fs).
// Device nodes are skipped.
package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/Pixelthegreat/eclair-os-sub000/vfs"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/tools/txtar"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	app := &cli.App{
		Name:  "ecdisk",
		Usage: "convert between directories and txtar disk images",
		Commands: []*cli.Command{
			{
				Name:      "pack",
				Usage:     "pack a directory into a disk image",
				ArgsUsage: "dir",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "o", Usage: "write the image to `file` (default standard output)"},
				},
				Action: pack,
			},
			{
				Name:      "extract",
				Aliases:   []string{"x"},
				Usage:     "extract a disk image into a directory",
				ArgsUsage: "disk.txtar",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "o", Value: "_fs", Usage: "write files under `dir`"},
				},
				Action: func(c *cli.Context) error { return extract(c, log) },
			},
			{
				Name:      "ls",
				Usage:     "list the contents of a disk image",
				ArgsUsage: "disk.txtar",
				Action:    ls,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func oneArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("usage: ecdisk %s [flags] %s", c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return c.Args().First(), nil
}

func pack(c *cli.Context) error {
	dir, err := oneArg(c)
	if err != nil {
		return err
	}
	disk, err := packDir(os.DirFS(dir))
	if err != nil {
		return cli.Exit(fmt.Sprintf("%s: %v", dir, err), 1)
	}
	w := io.Writer(os.Stdout)
	if out := c.String("o"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(disk.Archive()); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

// packDir builds a disk from the tree in fsys. Everything goes in
// base64-encoded; Archive decides what to leave as text.
func packDir(fsys fs.FS) (*vfs.Disk, error) {
	ar := new(txtar.Archive)
	err := fs.WalkDir(fsys, ".", func(name string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if name == "." {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return err
		}
		perm := uint16(info.Mode().Perm())
		switch {
		case de.IsDir():
			ar.Files = append(ar.Files, txtar.File{Name: fmt.Sprintf("/%s mode=%#o", name, vfs.ModeDir|perm)})
		case de.Type().IsRegular():
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return err
			}
			ar.Files = append(ar.Files, txtar.File{
				Name: fmt.Sprintf("/%s mode=%#o base64=1", name, vfs.ModeReg|perm),
				Data: []byte(base64.StdEncoding.EncodeToString(data) + "\n"),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d, err := vfs.NewDisk(txtar.Format(ar))
	if err != nil {
		return nil, err
	}
	if _, err := d.Lookup("/dev/console"); err != nil {
		ar.Files = append(ar.Files, txtar.File{Name: fmt.Sprintf("/dev/console mode=%#o major=%d minor=0", vfs.ModeChr|0o622, vfs.DevConsole)})
		d, err = vfs.NewDisk(txtar.Format(ar))
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func readDisk(name string) (*vfs.Disk, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	d, err := vfs.NewDisk(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// walk calls fn for every node below n in name order.
func walk(d *vfs.Disk, n *vfs.Node, fn func(*vfs.Node) error) error {
	for _, name := range n.Names() {
		c, err := d.Lookup(path.Join(n.Path(), name))
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		if c.IsDir() {
			if err := walk(d, c, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func extract(c *cli.Context, log *logrus.Logger) error {
	name, err := oneArg(c)
	if err != nil {
		return err
	}
	d, err := readDisk(name)
	if err != nil {
		return cli.Exit(err, 1)
	}
	root := c.String("o")
	err = walk(d, d.Root(), func(n *vfs.Node) error {
		targ := filepath.Join(root, filepath.FromSlash(n.Path()))
		switch {
		case n.IsDir():
			return os.MkdirAll(targ, 0o777)
		case n.IsDev():
			log.WithField("path", n.Path()).Debug("skipping device")
			return nil
		}
		data, err := d.ReadFile(n.Path())
		if err != nil {
			return err
		}
		return os.WriteFile(targ, data, fs.FileMode(n.Mode()&vfs.ModePerm))
	})
	if err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

func ls(c *cli.Context) error {
	name, err := oneArg(c)
	if err != nil {
		return err
	}
	d, err := readDisk(name)
	if err != nil {
		return cli.Exit(err, 1)
	}
	return walk(d, d.Root(), func(n *vfs.Node) error {
		_, err := fmt.Fprintf(os.Stdout, "%07o %8d %s\n", n.Mode(), n.Size(), n.Path())
		return err
	})
}
