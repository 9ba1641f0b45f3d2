// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports decoder activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

const namespace = "ebustat"

// Metrics holds the collectors for one decoder
type Metrics struct {
	telegrams     *prometheus.CounterVec
	drops         *prometheus.CounterVec
	adapterEvents *prometheus.CounterVec
	framingErrors prometheus.Counter
	records       *prometheus.CounterVec
	values        *prometheus.GaugeVec
	lastTelegram  prometheus.Gauge

	framingSeen uint64
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		telegrams: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "telegrams_total",
				Help:      "Completed telegrams by kind.",
			},
			[]string{"kind", "response"},
		),
		drops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "drops_total",
				Help:      "Discarded telegrams by reason.",
			},
			[]string{"reason"},
		),
		adapterEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "events_total",
				Help:      "Adapter status events by kind.",
			},
			[]string{"kind"},
		),
		framingErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "framing_errors_total",
				Help:      "Malformed escape sequences skipped by the deframer.",
			},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "records_total",
				Help:      "Catalog matches by circuit.",
			},
			[]string{"circuit"},
		),
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "value",
				Help:      "Last decoded field value.",
			},
			[]string{"circuit", "field", "unit"},
		),
		lastTelegram: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "last_telegram_timestamp_seconds",
				Help:      "Unix time of the last completed telegram.",
			},
		),
	}

	reg.MustRegister(m.telegrams, m.drops, m.adapterEvents, m.framingErrors, m.records, m.values, m.lastTelegram)
	return m
}

// Telegram records a completed telegram
func (m *Metrics) Telegram(req *ebus.Request, resp *ebus.Response) {
	response := "false"
	if resp != nil {
		response = "true"
	}
	m.telegrams.WithLabelValues(ebus.TelegramKind(req), response).Inc()
	if !req.Received.IsZero() {
		m.lastTelegram.Set(float64(req.Received.UnixNano()) / 1e9)
	}
}

// Drop records a discarded telegram
func (m *Metrics) Drop(reason ebus.DropReason) {
	m.drops.WithLabelValues(reason.String()).Inc()
}

// Adapter records an adapter status event
func (m *Metrics) Adapter(ev ebus.AdapterEvent) {
	m.adapterEvents.WithLabelValues(ev.Kind.String()).Inc()
}

// FramingErrors updates the framing error counter from the deframer's
// running total. Not safe for concurrent use.
func (m *Metrics) FramingErrors(total uint64) {
	if total > m.framingSeen {
		m.framingErrors.Add(float64(total - m.framingSeen))
		m.framingSeen = total
	}
}

// Records records catalog matches and their latest values
func (m *Metrics) Records(records []catalog.Record) {
	for _, r := range records {
		m.records.WithLabelValues(r.Circuit).Inc()
		for _, f := range r.Fields {
			m.values.WithLabelValues(r.Circuit, f.Name, f.Unit).Set(f.Value.Float64())
		}
	}
}
