// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/ebustat/pkg/config"
)

const influxPingTimeout = 5 * time.Second

// pointWriter is the subset of the non-blocking write API the sink uses
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxSink writes one point per record, tagged with circuit, message and
// addresses, with a field per decoded value.
type InfluxSink struct {
	writer      pointWriter
	measurement string
	client      influxdb2.Client
	now         func() time.Time
}

// NewInfluxSink wraps a write API
func NewInfluxSink(w pointWriter, measurement string) *InfluxSink {
	if measurement == "" {
		measurement = "ebus"
	}
	return &InfluxSink{writer: w, measurement: measurement, now: time.Now}
}

// ConnectInflux connects to the configured server and checks it is healthy.
// Asynchronous write errors are logged.
func ConnectInflux(cfg config.InfluxDBConfig, logger zerolog.Logger) (*InfluxSink, error) {
	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(uint(cfg.BatchSize))
	}
	flush, err := cfg.FlushDuration()
	if err != nil {
		return nil, fmt.Errorf("influxdb flush interval: %w", err)
	}
	if flush > 0 {
		opts.SetFlushInterval(uint(flush.Milliseconds()))
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), influxPingTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logger.Error().Err(err).Msg("influxdb write failed")
		}
	}()

	s := NewInfluxSink(writeAPI, cfg.Measurement)
	s.client = client
	return s, nil
}

// Publish implements Sink. Records without decoded fields are skipped.
func (s *InfluxSink) Publish(_ context.Context, ev Event) error {
	for _, r := range ev.Records {
		if len(r.Fields) == 0 {
			continue
		}

		tags := map[string]string{
			"circuit": r.Circuit,
			"src":     fmt.Sprintf("%02X", r.Src),
			"dst":     fmt.Sprintf("%02X", r.Dest),
		}
		if r.Message != "" {
			tags["message"] = r.Message
		}

		fields := make(map[string]interface{}, len(r.Fields))
		for _, f := range r.Fields {
			fields[f.Name] = f.Value.Interface()
		}

		ts := r.Time
		if ts.IsZero() {
			ts = s.now()
		}
		s.writer.WritePoint(write.NewPoint(s.measurement, tags, fields, ts))
	}
	return nil
}

// Close flushes pending points and closes the client
func (s *InfluxSink) Close() error {
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
