package wal

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/szibis/logrelay/internal/logging"
	"github.com/szibis/logrelay/internal/record"
)

// ReadLogs returns up to ReadBatch records starting at the record that covers
// from. An empty result means nothing at or after from has been written.
func (w *Log) ReadLogs(ctx context.Context, from uint64) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if from >= w.nextSeq {
		return nil, nil
	}
	if from < w.firstSeq {
		return nil, fmt.Errorf("%w: %d is before first retained %d", ErrSeqNotFound, from, w.firstSeq)
	}
	walReadsTotal.Inc()

	i := sort.Search(len(w.blocks), func(i int) bool { return w.blocks[i].end > from })
	var out []record.Record
	for ; i < len(w.blocks) && len(out) < w.cfg.ReadBatch; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := w.readBlockLocked(i)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			if r.RangeEnd() <= from {
				continue
			}
			out = append(out, r)
			if len(out) == w.cfg.ReadBatch {
				break
			}
		}
	}
	walReadRecordsTotal.Add(float64(len(out)))
	return out, nil
}

// TruncateBefore removes whole chunks whose records all end at or before seq.
// The active chunk is never removed. It returns the number of chunks removed.
func (w *Log) TruncateBefore(seq uint64) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}

	removed := 0
	for len(w.blocks) > 0 {
		chunk := w.blocks[0].chunk
		if chunk == w.writerChunk && w.writer != nil {
			break
		}
		n := 0
		for n < len(w.blocks) && w.blocks[n].chunk == chunk {
			n++
		}
		if w.blocks[n-1].end > seq {
			break
		}

		if f, ok := w.readers[chunk]; ok {
			f.Close()
			delete(w.readers, chunk)
		}
		if err := os.Remove(w.chunkPath(chunk)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove chunk %016x: %w", chunk, err)
		}
		for _, b := range w.blocks[:n] {
			w.diskBytes -= b.size
		}
		w.firstSeq = w.blocks[n-1].end
		w.blocks = append([]blockRef(nil), w.blocks[n:]...)
		removed++
	}

	if removed > 0 {
		w.cache = cachedBlock{}
		walChunksRemovedTotal.Add(float64(removed))
		walDiskBytes.Set(float64(w.diskBytes))
		w.log.Debug("chunks truncated", logging.F("removed", removed, "first_seq", w.firstSeq))
	}
	return removed, nil
}
