// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw adapter bytes to a file and plays them back.
//
// A capture is a plain sequence of CBOR maps, one per chunk read from the
// connection:
//
//	{"t": <unix nanoseconds>, "d": <byte string>}
//
// Chunks are written exactly as received, before deframing, so a replay goes
// through the same decoding path as a live session.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Chunk is one read from the connection
type Chunk struct {
	Time int64  `cbor:"t"`
	Data []byte `cbor:"d"`
}

// Timestamp returns the chunk time
func (c Chunk) Timestamp() time.Time {
	return time.Unix(0, c.Time)
}

// Writer appends chunks to a capture stream
type Writer struct {
	enc    *cbor.Encoder
	now    func() time.Time
	chunks int
	bytes  int
}

// NewWriter creates a capture writer on w
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: cbor.NewEncoder(w), now: time.Now}
}

// WriteChunk records data with the current time. Empty chunks are ignored.
func (w *Writer) WriteChunk(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return w.WriteAt(w.now(), data)
}

// WriteAt records data with an explicit timestamp
func (w *Writer) WriteAt(t time.Time, data []byte) error {
	if err := w.enc.Encode(Chunk{Time: t.UnixNano(), Data: data}); err != nil {
		return fmt.Errorf("capture write failed: %w", err)
	}
	w.chunks++
	w.bytes += len(data)
	return nil
}

// Stats returns the number of chunks and bytes written
func (w *Writer) Stats() (chunks, bytes int) {
	return w.chunks, w.bytes
}

// Reader reads chunks back from a capture stream
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a capture reader on r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next chunk, or io.EOF at the end of the capture
func (r *Reader) Next() (Chunk, error) {
	var c Chunk
	if err := r.dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Chunk{}, io.EOF
		}
		return Chunk{}, fmt.Errorf("capture read failed: %w", err)
	}
	return c, nil
}

// ReplayOptions controls playback pacing
type ReplayOptions struct {
	// Speed scales the recorded gaps between chunks. Zero replays as fast
	// as possible, 1 replays in real time.
	Speed float64
}

// Replay feeds every chunk of r to feed in order and returns the number of
// chunks replayed.
func Replay(ctx context.Context, r *Reader, feed func([]byte), opts ReplayOptions) (int, error) {
	var last int64
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		c, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		if opts.Speed > 0 && n > 0 && c.Time > last {
			gap := time.Duration(float64(c.Time-last) / opts.Speed)
			timer := time.NewTimer(gap)
			select {
			case <-ctx.Done():
				timer.Stop()
				return n, ctx.Err()
			case <-timer.C:
			}
		}
		last = c.Time

		feed(c.Data)
		n++
	}
}
