// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ecrun boots the multitasking core on a disk image and runs /bin/init.
//
// Usage:
//
//	ecrun [flags]
//
// Every flag can also be set through the environment variable named
// in its help text. With -ticks 0 the machine runs until init exits.
// On exit ecrun prints the task table.
package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Pixelthegreat/eclair-os-sub000/kern"
	"github.com/Pixelthegreat/eclair-os-sub000/observability/prometheus"
	"github.com/Pixelthegreat/eclair-os-sub000/progs"
	"github.com/Pixelthegreat/eclair-os-sub000/trace"
	"github.com/Pixelthegreat/eclair-os-sub000/vfs"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// batch is the number of ticks run between checks for init exiting.
const batch = 100

func main() {
	app := &cli.App{
		Name:      "ecrun",
		Usage:     "run the multitasking core on a disk image",
		UsageText: "ecrun [flags]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "disk", Usage: "boot from txtar disk `file` (default built-in image)", EnvVars: []string{"ECRUN_DISK"}},
			&cli.StringFlag{Name: "init", Value: "/bin/init", Usage: "run `path` as the first program", EnvVars: []string{"ECRUN_INIT"}},
			&cli.Uint64Flag{Name: "ticks", Usage: "stop after `n` ticks (0 means when init exits)", EnvVars: []string{"ECRUN_TICKS"}},
			&cli.IntFlag{Name: "quantum", Value: kern.QUANTUM, Usage: "ticks per time slice", EnvVars: []string{"ECRUN_QUANTUM"}},
			&cli.UintFlag{Name: "divisor", Value: kern.PITDIV, Usage: "timer reload value", EnvVars: []string{"ECRUN_DIVISOR"}},
			&cli.IntFlag{Name: "tasks", Value: kern.NTASK, Usage: "task table size", EnvVars: []string{"ECRUN_TASKS"}},
			&cli.IntFlag{Name: "frames", Value: kern.NFRAME, Usage: "physical frames", EnvVars: []string{"ECRUN_FRAMES"}},
			&cli.BoolFlag{Name: "trace", Usage: "log every system call and state change", EnvVars: []string{"ECRUN_TRACE"}},
			&cli.IntFlag{Name: "events", Usage: "print the last `n` state changes on exit", EnvVars: []string{"ECRUN_EVENTS"}},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on `addr`", EnvVars: []string{"ECRUN_METRICS_ADDR"}},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "log format, text or json", EnvVars: []string{"ECRUN_LOG_FORMAT"}},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "log level", EnvVars: []string{"ECRUN_LOG_LEVEL"}},
			&cli.BoolFlag{Name: "realtime", Usage: "pace ticks to the wall clock", EnvVars: []string{"ECRUN_REALTIME"}},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newLogger(c *cli.Context) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	switch c.String("log-format") {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			DisableColors:    !term.IsTerminal(int(os.Stderr.Fd())),
			DisableTimestamp: true,
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", c.String("log-format"))
	}
	lvl, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	return log, nil
}

func loadDisk(name string) (*vfs.Disk, error) {
	data := vfs.FS
	if name != "" {
		var err error
		data, err = os.ReadFile(name)
		if err != nil {
			return nil, err
		}
	}
	d, err := vfs.NewDisk(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	cons := &vfs.Console{Out: os.Stdout}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		cons.In = os.Stdin
	}
	d.Attach(vfs.DevConsole, cons)
	return d, nil
}

func run(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return cli.Exit(err, 2)
	}
	disk, err := loadDisk(c.String("disk"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	tab := kern.NewTable()
	progs.Install(tab)

	cfg := kern.DefaultConfig()
	cfg.Quantum = c.Int("quantum")
	cfg.Divisor = uint16(c.Uint("divisor"))
	cfg.Tasks = c.Int("tasks")
	cfg.Frames = c.Int("frames")
	cfg.Image = tab
	cfg.Disk = disk
	cfg.Log = log
	cfg.Trace = c.Bool("trace")

	var rec *trace.Recorder
	if n := c.Int("events"); n > 0 {
		rec = trace.NewRecorder(n)
		cfg.Tracer = rec
	}

	if addr := c.String("metrics-addr"); addr != "" {
		reg := prom.NewRegistry()
		m, err := prometheus.NewMetricsExporter("eclair", reg)
		if err != nil {
			return cli.Exit(err, 1)
		}
		cfg.Metrics = m
		go func() {
			err := http.ListenAndServe(addr, prometheus.Handler(reg))
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server")
			}
		}()
		log.WithField("addr", addr).Info("serving metrics")
	}

	initID := -1
	var status uint32
	var done bool
	initPath := c.String("init")
	cfg.Main = func(t *kern.Task) {
		defer func() { done = true }()
		id, err := t.Pexec(initPath, []string{initPath})
		if err != nil {
			log.WithError(err).WithField("path", initPath).Error("pexec")
			return
		}
		initID = id
		status, _ = t.Pwait(id, kern.Forever)
	}

	s, err := kern.NewSystem(cfg)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer s.Close()

	limit := c.Uint64("ticks")
	start := time.Now()
	for !done && (limit == 0 || s.Ticks() < limit) {
		n := uint64(batch)
		if limit != 0 && limit-s.Ticks() < n {
			n = limit - s.Ticks()
		}
		s.Run(int(n))
		if c.Bool("realtime") {
			due := start.Add(time.Duration(s.Time()))
			time.Sleep(time.Until(due))
		}
	}

	fields := logrus.Fields{"ticks": s.Ticks(), "uptime": time.Duration(s.Time())}
	if done && initID >= 0 {
		fields["status"] = progs.Status(status)
	}
	log.WithFields(fields).Info("stopped")

	printTasks(os.Stdout, s, cfg.Tasks)
	if rec != nil {
		rec.WriteTo(os.Stderr)
	}
	return nil
}

// printTasks writes the task table, cut to the terminal width.
func printTasks(w io.Writer, s *kern.System, ntask int) {
	width := 0
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width, _, _ = term.GetSize(int(f.Fd()))
	}
	line := func(format string, args ...any) {
		text := fmt.Sprintf(format, args...)
		if width > 0 && len(text) > width {
			text = text[:width]
		}
		fmt.Fprintln(w, text)
	}
	line("%4s %-10s %-10s %7s %-8s %s", "ID", "NAME", "STATE", "QUANTUM", "PENDING", "ARGS")
	for id := 0; id < ntask; id++ {
		t := s.Get(id)
		if t == nil {
			continue
		}
		pending := "-"
		if sig := t.Pending(); sig != kern.SIGNONE {
			pending = sig.String()
		}
		line("%4d %-10s %-10v %7d %-8s %s", t.ID, t.Name(), t.State(), t.Quantum(), pending, strings.Join(t.Argv(), " "))
	}
}
