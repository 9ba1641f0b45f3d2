// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	req := ebus.Request{Src: 0x10, Dest: 0x08, Primary: 0xB5, Second: 0x11, Received: time.Unix(1700000000, 0)}
	m.Telegram(&req, &ebus.Response{})
	m.Telegram(&req, &ebus.Response{})
	bc := ebus.Request{Src: 0x10, Dest: ebus.Broadcast}
	m.Telegram(&bc, nil)

	if got := testutil.ToFloat64(m.telegrams.WithLabelValues("master-slave", "true")); got != 2 {
		t.Errorf("master-slave telegrams = %v", got)
	}
	if got := testutil.ToFloat64(m.telegrams.WithLabelValues("broadcast", "false")); got != 1 {
		t.Errorf("broadcast telegrams = %v", got)
	}
	if got := testutil.ToFloat64(m.lastTelegram); got != 1700000000 {
		t.Errorf("last telegram = %v", got)
	}

	m.Drop(ebus.DropChecksumMismatch)
	m.Drop(ebus.DropNACK)
	m.Drop(ebus.DropNACK)
	if got := testutil.ToFloat64(m.drops.WithLabelValues("nack")); got != 2 {
		t.Errorf("nack drops = %v", got)
	}

	m.Adapter(ebus.AdapterEvent{Kind: ebus.AdapterReset})
	if got := testutil.ToFloat64(m.adapterEvents.WithLabelValues(ebus.AdapterReset.String())); got != 1 {
		t.Errorf("adapter resets = %v", got)
	}

	m.FramingErrors(3)
	m.FramingErrors(3)
	m.FramingErrors(5)
	if got := testutil.ToFloat64(m.framingErrors); got != 5 {
		t.Errorf("framing errors = %v", got)
	}

	m.Records([]catalog.Record{{
		Circuit: "boiler",
		Fields: []catalog.FieldValue{
			{Name: "flow_temp", Value: catalog.FloatValue(40.5), Unit: "°C"},
			{Name: "starts", Value: catalog.IntValue(12)},
		},
	}})
	if got := testutil.ToFloat64(m.values.WithLabelValues("boiler", "flow_temp", "°C")); got != 40.5 {
		t.Errorf("flow_temp = %v", got)
	}
	if got := testutil.ToFloat64(m.values.WithLabelValues("boiler", "starts", "")); got != 12 {
		t.Errorf("starts = %v", got)
	}
	if got := testutil.ToFloat64(m.records.WithLabelValues("boiler")); got != 1 {
		t.Errorf("records = %v", got)
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
