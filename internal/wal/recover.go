package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/szibis/logrelay/internal/logging"
)

// recover rebuilds the block index from the chunk files. A damaged block at
// the end of the last chunk is a torn write and is truncated away; damage
// anywhere else fails with ErrCorrupted.
func (w *Log) recover() error {
	chunks, err := listChunks(w.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}
	if len(chunks) == 0 {
		w.firstSeq = w.cfg.StartSeq
		w.nextSeq = w.cfg.StartSeq
		return nil
	}

	expected := chunks[0]
	for i, chunk := range chunks {
		if chunk != expected {
			return fmt.Errorf("%w: chunk %016x does not continue at %d", ErrCorrupted, chunk, expected)
		}
		end, err := w.scanChunk(chunk, i == len(chunks)-1)
		if err != nil {
			return err
		}
		expected = end
	}
	w.firstSeq = chunks[0]
	w.nextSeq = expected

	return w.openWriterLocked(chunks[len(chunks)-1])
}

// scanChunk indexes the blocks of one chunk and returns the sequence that
// follows its last record.
func (w *Log) scanChunk(chunk uint64, last bool) (uint64, error) {
	path := w.chunkPath(chunk)
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open chunk %016x: %w", chunk, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat chunk %016x: %w", chunk, err)
	}
	fileSize := st.Size()

	r := bufio.NewReaderSize(f, w.cfg.WriteBufferSize)
	expected := chunk
	var offset int64
	header := make([]byte, blockHeaderSize)

	var torn error
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			torn = fmt.Errorf("short block header: %w", err)
			break
		}
		codec, length, err := decodeHeader(header)
		if err != nil {
			torn = err
			break
		}
		if offset+blockHeaderSize+length > fileSize {
			torn = fmt.Errorf("block length %d runs past end of file", length)
			break
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			torn = fmt.Errorf("short block data: %w", err)
			break
		}
		recs, err := decodeBlock(codec, data, expected)
		if err != nil {
			torn = err
			break
		}

		size := blockHeaderSize + length
		end := recs[len(recs)-1].RangeEnd()
		w.blocks = append(w.blocks, blockRef{first: expected, end: end, chunk: chunk, offset: offset, size: size})
		offset += size
		expected = end
	}

	if torn != nil {
		if !last {
			return 0, fmt.Errorf("%w: chunk %016x at offset %d: %v", ErrCorrupted, chunk, offset, torn)
		}
		if err := os.Truncate(path, offset); err != nil {
			return 0, fmt.Errorf("truncate torn chunk %016x: %w", chunk, err)
		}
		walTornTruncationsTotal.Inc()
		w.log.Warn("truncated torn tail", logging.F(
			"chunk", fmt.Sprintf("%016x", chunk),
			"offset", offset,
			"reason", torn.Error(),
		))
	}
	w.diskBytes += offset
	return expected, nil
}
