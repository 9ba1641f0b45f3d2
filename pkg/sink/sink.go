// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink delivers decoded telegrams and catalog records to downstream
// systems: the log, an MQTT broker, an InfluxDB bucket, or several at once.
package sink

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
)

// Errors returned by sinks
var (
	ErrNotConnected     = errors.New("sink: not connected")
	ErrConnectionFailed = errors.New("sink: connection failed")
	ErrPublishFailed    = errors.New("sink: publish failed")
)

// Event is one completed telegram and the records the catalog produced for it
type Event struct {
	Request  ebus.Request
	Response *ebus.Response
	Records  []catalog.Record
}

// Sink receives decoded events
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Multi fans an event out to several sinks. Every sink receives the event
// even when an earlier one fails.
type Multi []Sink

// Publish implements Sink
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes every record as a structured log entry
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging at info level
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish implements Sink
func (s *LogSink) Publish(_ context.Context, ev Event) error {
	for _, r := range ev.Records {
		values := zerolog.Dict()
		for _, f := range r.Fields {
			values = values.Interface(f.Name, f.Value.Interface())
		}
		s.logger.Info().
			Str("circuit", r.Circuit).
			Str("message", r.Message).
			Str("src", ev.Request.SrcHex()).
			Str("dst", ev.Request.DestHex()).
			Str("source", string(r.Source)).
			Dict("values", values).
			Msg("record")
	}
	return nil
}

// Close implements Sink
func (s *LogSink) Close() error { return nil }

// topicSegment makes a circuit or field name safe for use in an MQTT topic
func topicSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
