// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/ebustat/pkg/ebus"
)

// Source identifies which payload a record was decoded from
type Source string

const (
	SourceNone     Source = "none"
	SourceRequest  Source = "request"
	SourceResponse Source = "response"
)

// Record is the result of one definition matching one telegram
type Record struct {
	Time    time.Time    `json:"time"`
	Circuit string       `json:"circuit"`
	Message string       `json:"message"`
	Src     byte         `json:"src"`
	Dest    byte         `json:"dest"`
	Command uint16       `json:"command"`
	Source  Source       `json:"source"`
	Fields  []FieldValue `json:"fields"`
}

// Extracted reports whether a field map was applied
func (r Record) Extracted() bool {
	return r.Source != SourceNone
}

// Field looks up a decoded field by name
func (r Record) Field(name string) (FieldValue, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldValue{}, false
}

// Matcher applies a Catalog to completed telegrams. It holds no mutable
// state, so one Matcher may serve several pipelines.
type Matcher struct {
	catalog *Catalog
	logger  zerolog.Logger
}

// NewMatcher creates a matcher over c
func NewMatcher(c *Catalog, logger zerolog.Logger) *Matcher {
	return &Matcher{catalog: c, logger: logger}
}

// Catalog returns the catalog in use
func (m *Matcher) Catalog() *Catalog {
	return m.catalog
}

// Match returns one record per matching definition, in catalog order
func (m *Matcher) Match(req ebus.Request, resp *ebus.Response) []Record {
	src, dst, pbsb, data := req.SrcHex(), req.DestHex(), req.CommandHex(), req.DataHex()

	var records []Record
	for i := range m.catalog.Definitions {
		def := &m.catalog.Definitions[i]
		if !def.src.Match(src) || !def.dst.Match(dst) || !def.pbsb.Match(pbsb) || !def.data.Match(data) {
			continue
		}
		records = append(records, m.extract(def, req, resp))
	}
	return records
}

func (m *Matcher) extract(def *Definition, req ebus.Request, resp *ebus.Response) Record {
	rec := Record{
		Time:    req.Received,
		Circuit: def.Circuit,
		Message: def.Message.Comment,
		Src:     req.Src,
		Dest:    req.Dest,
		Command: req.Command(),
		Source:  SourceNone,
	}

	var fields []Field
	var payload []byte
	switch {
	case len(def.Message.ResponseMap) > 0 && resp != nil:
		rec.Source, fields, payload = SourceResponse, def.Message.ResponseMap, resp.Data
	case len(def.Message.RequestMap) > 0:
		rec.Source, fields, payload = SourceRequest, def.Message.RequestMap, req.Data
	default:
		return rec
	}

	rec.Fields = make([]FieldValue, 0, len(fields))
	for _, f := range fields {
		v, err := Extract(f, payload)
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("circuit", def.Circuit).
				Str("message", def.Message.Comment).
				Str("field", f.Name).
				Msg("field skipped")
			continue
		}
		rec.Fields = append(rec.Fields, FieldValue{Name: f.Name, Value: v, Unit: f.Unit})
	}
	return rec
}
