// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package server exposes a running decoder over HTTP: Prometheus metrics,
// the latest decoded values, bus statistics and a websocket stream of
// records as they are decoded.
//
// Routes:
//
//	GET /metrics      Prometheus exposition
//	GET /healthz      liveness
//	GET /api/values   latest value of every decoded field
//	GET /api/stats    bus statistics
//	GET /ws           live record stream
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/ebustat/pkg/catalog"
	"github.com/Thermoquad/ebustat/pkg/ebus"
	"github.com/Thermoquad/ebustat/pkg/sink"
)

const shutdownTimeout = 5 * time.Second

// Value is the latest reading of one field
type Value struct {
	Circuit string        `json:"circuit"`
	Message string        `json:"message,omitempty"`
	Field   string        `json:"field"`
	Value   catalog.Value `json:"value"`
	Unit    string        `json:"unit,omitempty"`
	Time    time.Time     `json:"time"`
}

// Stats is the statistics snapshot served on /api/stats
type Stats struct {
	Uptime            string  `json:"uptime"`
	TotalTelegrams    uint64  `json:"total_telegrams"`
	ValidTelegrams    uint64  `json:"valid_telegrams"`
	WithResponse      uint64  `json:"with_response"`
	BroadcastMessages uint64  `json:"broadcast_messages"`
	ChecksumErrors    uint64  `json:"checksum_errors"`
	LengthErrors      uint64  `json:"length_errors"`
	NACKs             uint64  `json:"nacks"`
	ProtocolErrors    uint64  `json:"protocol_errors"`
	FramingErrors     uint64  `json:"framing_errors"`
	AdapterEvents     uint64  `json:"adapter_events"`
	AdapterErrors     uint64  `json:"adapter_errors"`
	TelegramRate      float64 `json:"telegram_rate"`
	ErrorRate         float64 `json:"error_rate"`
}

// StatsFrom copies a statistics tracker into a snapshot
func StatsFrom(s *ebus.Statistics) Stats {
	s.CalculateRates()
	return Stats{
		Uptime:            time.Since(s.StartTime).Truncate(time.Second).String(),
		TotalTelegrams:    s.TotalTelegrams,
		ValidTelegrams:    s.ValidTelegrams,
		WithResponse:      s.WithResponse,
		BroadcastMessages: s.BroadcastMessages,
		ChecksumErrors:    s.ChecksumErrors,
		LengthErrors:      s.LengthErrors,
		NACKs:             s.NACKs,
		ProtocolErrors:    s.ProtocolErrors,
		FramingErrors:     s.FramingErrors,
		AdapterEvents:     s.AdapterEvents,
		AdapterErrors:     s.AdapterErrors,
		TelegramRate:      s.TelegramRate,
		ErrorRate:         s.ErrorRate,
	}
}

// Server holds the latest values and serves them. Publish and UpdateStats
// may be called from the decoding goroutine while requests are served.
type Server struct {
	logger   zerolog.Logger
	gatherer prometheus.Gatherer
	hub      *hub

	mu     sync.RWMutex
	values map[string]Value
	stats  Stats
}

var _ sink.Sink = (*Server)(nil)

// New creates a server. gatherer may be nil to disable /metrics.
func New(gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	return &Server{
		logger:   logger,
		gatherer: gatherer,
		hub:      newHub(logger),
		values:   make(map[string]Value),
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/values", s.handleValues)
		r.Get("/values/{circuit}", s.handleValues)
		r.Get("/stats", s.handleStats)
	})
	r.Get("/ws", s.hub.serveWS)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.hub.closeAll()
		return srv.Shutdown(shutdownCtx)
	}
}

// Publish stores the decoded values and streams the records to websocket
// clients. It implements sink.Sink.
func (s *Server) Publish(_ context.Context, ev sink.Event) error {
	if len(ev.Records) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, r := range ev.Records {
		for _, f := range r.Fields {
			s.values[r.Circuit+"/"+f.Name] = Value{
				Circuit: r.Circuit,
				Message: r.Message,
				Field:   f.Name,
				Value:   f.Value,
				Unit:    f.Unit,
				Time:    r.Time,
			}
		}
	}
	s.mu.Unlock()

	for _, r := range ev.Records {
		s.hub.broadcast(r)
	}
	return nil
}

// Close disconnects websocket clients
func (s *Server) Close() error {
	s.hub.closeAll()
	return nil
}

// UpdateStats replaces the statistics snapshot
func (s *Server) UpdateStats(st Stats) {
	s.mu.Lock()
	s.stats = st
	s.mu.Unlock()
}

// Values returns the latest values sorted by circuit and field
func (s *Server) Values() []Value {
	s.mu.RLock()
	out := make([]Value, 0, len(s.values))
	for _, v := range s.values {
		out = append(out, v)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Circuit != out[j].Circuit {
			return out[i].Circuit < out[j].Circuit
		}
		return out[i].Field < out[j].Field
	})
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"websocket_clients": s.hub.count(),
	})
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	values := s.Values()
	if circuit := chi.URLParam(r, "circuit"); circuit != "" {
		filtered := values[:0]
		for _, v := range values {
			if v.Circuit == circuit {
				filtered = append(filtered, v)
			}
		}
		if len(filtered) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown circuit " + circuit})
			return
		}
		values = filtered
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	st := s.stats
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
