// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
	"github.com/Thermoquad/ebustat/pkg/metrics"
	"github.com/Thermoquad/ebustat/pkg/sink"
)

func testEvent() sink.Event {
	return sink.Event{
		Request: ebus.Request{Src: 0x10, Dest: 0x08, Primary: 0xB5, Second: 0x11},
		Records: []catalog.Record{{
			Time:    time.Unix(1700000000, 0).UTC(),
			Circuit: "boiler",
			Message: "flow temperature",
			Source:  catalog.SourceResponse,
			Fields: []catalog.FieldValue{
				{Name: "return_temp", Value: catalog.FloatValue(38), Unit: "°C"},
				{Name: "flow_temp", Value: catalog.FloatValue(40.5), Unit: "°C"},
			},
		}},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := New(nil, zerolog.Nop())
	w := get(t, s.Handler(), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestValues(t *testing.T) {
	s := New(nil, zerolog.Nop())
	h := s.Handler()

	w := get(t, h, "/api/values")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty values = %d %s", w.Code, w.Body.String())
	}

	if err := s.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	w = get(t, h, "/api/values")
	var values []Value
	if err := json.Unmarshal(w.Body.Bytes(), &values); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(values) != 2 || values[0].Field != "flow_temp" || values[1].Field != "return_temp" {
		t.Fatalf("values = %+v", values)
	}
	if values[0].Value != catalog.FloatValue(40.5) || values[0].Unit != "°C" || values[0].Message != "flow temperature" {
		t.Errorf("flow_temp = %+v", values[0])
	}

	if w := get(t, h, "/api/values/boiler"); w.Code != http.StatusOK {
		t.Errorf("circuit filter status = %d", w.Code)
	}
	if w := get(t, h, "/api/values/solar"); w.Code != http.StatusNotFound {
		t.Errorf("unknown circuit status = %d", w.Code)
	}

	ev := testEvent()
	ev.Records[0].Fields = ev.Records[0].Fields[1:]
	ev.Records[0].Fields[0].Value = catalog.FloatValue(41)
	_ = s.Publish(context.Background(), ev)
	got := s.Values()
	if len(got) != 2 || got[0].Value != catalog.FloatValue(41) {
		t.Errorf("latest value not replaced: %+v", got)
	}
}

func TestStats(t *testing.T) {
	s := New(nil, zerolog.Nop())
	st := ebus.NewStatistics()
	req := ebus.Request{Src: 0x10, Dest: ebus.Broadcast}
	st.Telegram(&req, nil)
	st.Drop(ebus.DropChecksumMismatch)
	s.UpdateStats(StatsFrom(st))

	w := get(t, s.Handler(), "/api/stats")
	var got Stats
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.TotalTelegrams != 2 || got.ValidTelegrams != 1 || got.BroadcastMessages != 1 || got.ChecksumErrors != 1 {
		t.Errorf("stats = %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Drop(ebus.DropNACK)

	s := New(reg, zerolog.Nop())
	w := get(t, s.Handler(), "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `ebustat_bus_drops_total{reason="nack"} 1`) {
		t.Errorf("metrics missing drop counter:\n%s", body)
	}

	if w := get(t, New(nil, zerolog.Nop()).Handler(), "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("metrics without gatherer = %d", w.Code)
	}
}

func TestWebSocketStream(t *testing.T) {
	s := New(nil, zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var rec struct {
		Circuit string `json:"circuit"`
		Fields  []struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(msg, &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec.Circuit != "boiler" || len(rec.Fields) != 2 || rec.Fields[1].Value != 40.5 {
		t.Errorf("record = %+v", rec)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestListenAndServe_Shutdown(t *testing.T) {
	s := New(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
