// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package prometheus exports kernel scheduler metrics to Prometheus.
package prometheus

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Pixelthegreat/eclair-os-sub000/kern"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsExporter adapts kern.Metrics to Prometheus collectors.
type MetricsExporter struct {
	ticksTotal        prom.Counter
	switchesTotal     prom.Counter
	signalsTotal      *prom.CounterVec
	exitsTotal        *prom.CounterVec
	createFailedTotal prom.Counter
	queueDepth        *prom.GaugeVec
}

var _ kern.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers the collectors in reg.
// A nil reg means prom.DefaultRegisterer. Registering twice in the
// same registry shares the existing collectors.
func NewMetricsExporter(namespace string, reg prom.Registerer) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "eclair"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	ticks := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Timer interrupts handled.",
	})
	switches := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "context_switches_total",
		Help:      "Context switches between tasks.",
	})
	signals := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "signals_total",
		Help:      "Signals posted to tasks.",
	}, []string{"signal"})
	exits := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_exits_total",
		Help:      "Tasks terminated, by exit code.",
	}, []string{"code"})
	failed := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_create_failed_total",
		Help:      "Task creations that failed.",
	})
	depth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Tasks in each state list at the last tick.",
	}, []string{"state"})

	var err error
	if ticks, err = registerCollector(reg, ticks); err != nil {
		return nil, err
	}
	if switches, err = registerCollector(reg, switches); err != nil {
		return nil, err
	}
	if signals, err = registerCollector(reg, signals); err != nil {
		return nil, err
	}
	if exits, err = registerCollector(reg, exits); err != nil {
		return nil, err
	}
	if failed, err = registerCollector(reg, failed); err != nil {
		return nil, err
	}
	if depth, err = registerCollector(reg, depth); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		ticksTotal:        ticks,
		switchesTotal:     switches,
		signalsTotal:      signals,
		exitsTotal:        exits,
		createFailedTotal: failed,
		queueDepth:        depth,
	}, nil
}

func (m *MetricsExporter) RecordTick() {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
}

func (m *MetricsExporter) RecordSwitch(from, to int) {
	if m == nil {
		return
	}
	m.switchesTotal.Inc()
}

func (m *MetricsExporter) RecordSignal(sig kern.Signal) {
	if m == nil {
		return
	}
	m.signalsTotal.WithLabelValues(sig.String()).Inc()
}

// RecordExit counts a termination. Codes with the 0x80 bit set
// are reported under the name of the killing signal.
func (m *MetricsExporter) RecordExit(code int) {
	if m == nil {
		return
	}
	m.exitsTotal.WithLabelValues(codeLabel(code)).Inc()
}

func (m *MetricsExporter) RecordCreateFailed() {
	if m == nil {
		return
	}
	m.createFailedTotal.Inc()
}

func (m *MetricsExporter) RecordQueueDepth(st kern.State, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(st.String()).Set(float64(n))
}

func codeLabel(code int) string {
	if code&0x80 != 0 {
		return kern.Signal(code &^ 0x80).String()
	}
	return strconv.Itoa(code)
}

// Handler returns an HTTP handler serving the metrics gathered by g.
// A nil g means prom.DefaultGatherer.
func Handler(g prom.Gatherer) http.Handler {
	if g == nil {
		g = prom.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
