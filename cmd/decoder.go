// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
	"github.com/Thermoquad/ebustat/pkg/metrics"
)

// decoder wires a pipeline to statistics, an optional catalog matcher and
// optional Prometheus metrics. Commands attach their own output through the
// hooks, which run synchronously inside feed.
type decoder struct {
	pipeline *ebus.Pipeline
	stats    *ebus.Statistics
	matcher  *catalog.Matcher
	metrics  *metrics.Metrics

	onTelegram func(req ebus.Request, resp *ebus.Response, records []catalog.Record)
	onDrop     func(reason ebus.DropReason, req ebus.Request)
	onAdapter  func(ev ebus.AdapterEvent)
}

func newDecoder(cat *catalog.Catalog, m *metrics.Metrics) *decoder {
	d := &decoder{
		stats:   ebus.NewStatistics(),
		metrics: m,
	}
	if cat != nil {
		d.matcher = catalog.NewMatcher(cat, logger)
	}
	d.pipeline = ebus.NewPipeline(ebus.Options{
		Logger:         logger,
		Telegrams:      ebus.TelegramFunc(d.telegram),
		Drops:          ebus.DropFunc(d.drop),
		AdapterEvents:  ebus.AdapterEventFunc(d.adapter),
		ParseThreshold: settings.Parser.Threshold,
	})
	return d
}

func (d *decoder) telegram(req ebus.Request, resp *ebus.Response) {
	d.stats.Telegram(&req, resp)
	if d.metrics != nil {
		d.metrics.Telegram(&req, resp)
	}

	var records []catalog.Record
	if d.matcher != nil {
		records = d.matcher.Match(req, resp)
		if d.metrics != nil {
			d.metrics.Records(records)
		}
	}

	if d.onTelegram != nil {
		d.onTelegram(req, resp, records)
	}
}

func (d *decoder) drop(reason ebus.DropReason, req ebus.Request) {
	d.stats.Drop(reason)
	if d.metrics != nil {
		d.metrics.Drop(reason)
	}
	if d.onDrop != nil {
		d.onDrop(reason, req)
	}
}

func (d *decoder) adapter(ev ebus.AdapterEvent) {
	d.stats.Adapter(ev)
	if d.metrics != nil {
		d.metrics.Adapter(ev)
	}
	if d.onAdapter != nil {
		d.onAdapter(ev)
	}
}

// feed pushes one chunk of raw adapter bytes through the pipeline
func (d *decoder) feed(chunk []byte) {
	d.pipeline.Feed(chunk)
	d.syncFraming()
}

// flush forces a parse pass over bytes held back by the parse threshold
func (d *decoder) flush() {
	d.pipeline.Flush()
	d.syncFraming()
}

func (d *decoder) syncFraming() {
	d.stats.FramingErrors = d.pipeline.FramingErrors()
	if d.metrics != nil {
		d.metrics.FramingErrors(d.stats.FramingErrors)
	}
}

// signalContext returns a context cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
