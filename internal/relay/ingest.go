package relay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

const defaultMaxLineSize = 1 << 20

// Ingest appends each non-empty line of rd as one record and returns the
// number of records committed. It stops at EOF or when ctx is cancelled.
func (r *Relay) Ingest(ctx context.Context, rd io.Reader) (int, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, min(64*1024, r.cfg.MaxLineSize)), r.cfg.MaxLineSize)

	n := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		line := bytes.TrimRight(sc.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		// The scanner reuses its buffer.
		payload := bytes.Clone(line)
		if _, err := r.Append(ctx, payload); err != nil {
			return n, err
		}
		n++
		relayIngestedLinesTotal.WithLabelValues(r.cfg.Name).Inc()
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("relay: ingest: %w", err)
	}
	return n, nil
}
