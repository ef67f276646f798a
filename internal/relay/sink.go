package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/szibis/logrelay/internal/record"
)

// Line is the JSON form written by WriterSink.
type Line struct {
	Seq       uint64    `json:"seq"`
	Count     uint64    `json:"count,omitempty"`
	Timestamp time.Time `json:"ts"`
	Payload   string    `json:"payload"`
}

// WriterSink writes one JSON object per record to an io.Writer.
type WriterSink struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	bw := bufio.NewWriter(w)
	return &WriterSink{w: bw, enc: json.NewEncoder(bw)}
}

// Write encodes r and flushes it.
func (s *WriterSink) Write(_ context.Context, r record.Record) error {
	line := Line{Seq: r.Seq, Timestamp: r.Timestamp, Payload: string(r.Payload)}
	if r.Count > 1 {
		line.Count = r.Count
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(line); err != nil {
		return err
	}
	return s.w.Flush()
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, r record.Record) error

func (f SinkFunc) Write(ctx context.Context, r record.Record) error { return f(ctx, r) }
