// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package catalog holds the declarative message catalog: which telegrams are
// of interest, and how their payload bytes map to named, scaled values.
//
// A Catalog is immutable once loaded and may be shared by any number of
// Matchers and pipelines.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/ebustat/pkg/ebus"
)

// ErrInvalidCatalog is returned for catalog documents that cannot be used
var ErrInvalidCatalog = errors.New("invalid catalog")

// Document is the on-disk catalog layout. JSON documents are accepted too.
type Document struct {
	Appliance string    `yaml:"appliance"`
	Bus       string    `yaml:"bus"`
	Circuits  []Circuit `yaml:"circuits"`
}

// Circuit groups the messages of one appliance function
type Circuit struct {
	Name     string    `yaml:"name"`
	Messages []Message `yaml:"messages"`
}

// Message is one telegram definition
type Message struct {
	Comment      string       `yaml:"comment"`
	RequestMatch RequestMatch `yaml:"request_match"`
	RequestMap   []Field      `yaml:"request_map,omitempty"`
	ResponseMap  []Field      `yaml:"response_map,omitempty"`
}

// RequestMatch holds one pattern per request field. Empty patterns match
// anything.
type RequestMatch struct {
	Src  string `yaml:"src"`
	Dst  string `yaml:"dst"`
	PBSB string `yaml:"pbsb"`
	Data string `yaml:"data"`
}

// Field describes one value inside a payload
type Field struct {
	Name     string   `yaml:"field_name"`
	Offset   int      `yaml:"field_offset"`
	DataType string   `yaml:"data_type"`
	Factor   *float64 `yaml:"factor,omitempty"`
	Unit     string   `yaml:"unit,omitempty"`
}

// Scale returns the field's factor, 1.0 when unset
func (f Field) Scale() float64 {
	if f.Factor == nil {
		return 1.0
	}
	return *f.Factor
}

// Definition is a message compiled for matching
type Definition struct {
	Circuit string
	Message Message

	src, dst, pbsb, data Pattern
}

// Catalog is a validated, compiled catalog document
type Catalog struct {
	Appliance   string
	Bus         string
	Definitions []Definition
}

// Load reads and compiles a catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog load failed (%s): %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and compiles a catalog document. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return Compile(doc)
}

// Compile validates a document and compiles its patterns
func Compile(doc Document) (*Catalog, error) {
	if len(doc.Circuits) == 0 {
		return nil, fmt.Errorf("%w: no circuits", ErrInvalidCatalog)
	}

	c := &Catalog{Appliance: doc.Appliance, Bus: doc.Bus}
	for ci, circuit := range doc.Circuits {
		if strings.TrimSpace(circuit.Name) == "" {
			return nil, fmt.Errorf("%w: circuit[%d] missing name", ErrInvalidCatalog, ci)
		}
		for mi, msg := range circuit.Messages {
			def, err := compileMessage(circuit.Name, msg)
			if err != nil {
				return nil, fmt.Errorf("%w: circuit %q message[%d]: %w", ErrInvalidCatalog, circuit.Name, mi, err)
			}
			c.Definitions = append(c.Definitions, def)
		}
	}
	return c, nil
}

func compileMessage(circuit string, msg Message) (Definition, error) {
	def := Definition{Circuit: circuit, Message: msg}

	var err error
	if def.src, err = CompilePattern(msg.RequestMatch.Src); err != nil {
		return def, fmt.Errorf("src: %w", err)
	}
	if def.dst, err = CompilePattern(msg.RequestMatch.Dst); err != nil {
		return def, fmt.Errorf("dst: %w", err)
	}
	if def.pbsb, err = CompilePattern(msg.RequestMatch.PBSB); err != nil {
		return def, fmt.Errorf("pbsb: %w", err)
	}
	if def.data, err = CompilePattern(msg.RequestMatch.Data); err != nil {
		return def, fmt.Errorf("data: %w", err)
	}

	for _, fields := range [][]Field{msg.RequestMap, msg.ResponseMap} {
		for i, f := range fields {
			if strings.TrimSpace(f.Name) == "" {
				return def, fmt.Errorf("field[%d] missing field_name", i)
			}
			if f.Offset < 0 || f.Offset >= ebus.MaxDataLength {
				return def, fmt.Errorf("field %q: offset %d outside payload (0-%d)", f.Name, f.Offset, ebus.MaxDataLength-1)
			}
			if f.Factor != nil && (math.IsNaN(*f.Factor) || math.IsInf(*f.Factor, 0)) {
				return def, fmt.Errorf("field %q: factor must be finite", f.Name)
			}
		}
	}
	return def, nil
}

// UnsupportedTypes lists field data types the extractor does not know. These
// fields are skipped at extraction time.
func (c *Catalog) UnsupportedTypes() []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range c.Definitions {
		for _, fields := range [][]Field{d.Message.RequestMap, d.Message.ResponseMap} {
			for _, f := range fields {
				if _, ok := LookupType(f.DataType); !ok && !seen[f.DataType] {
					seen[f.DataType] = true
					out = append(out, f.DataType)
				}
			}
		}
	}
	return out
}

// FieldCount returns the number of field definitions across all messages
func (c *Catalog) FieldCount() int {
	n := 0
	for _, d := range c.Definitions {
		n += len(d.Message.RequestMap) + len(d.Message.ResponseMap)
	}
	return n
}
