package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"

	"github.com/szibis/logrelay/internal/compression"
	"github.com/szibis/logrelay/internal/logging"
	"github.com/szibis/logrelay/internal/record"
)

const (
	// Block header: 8-byte little-endian word, top byte carries the codec id,
	// the low 56 bits the length of the data that follows.
	blockHeaderSize = 8
	codecShift      = 56
	lengthMask      = uint64(1)<<codecShift - 1
)

var codecIDs = map[compression.Type]byte{
	compression.TypeNone:    0,
	compression.TypeSnappy:  1,
	compression.TypeS2:      2,
	compression.TypeZstd:    3,
	compression.TypeGzip:    4,
	compression.TypeZlib:    5,
	compression.TypeDeflate: 6,
}

var codecTypes = func() map[byte]compression.Type {
	m := make(map[byte]compression.Type, len(codecIDs))
	for t, id := range codecIDs {
		m[id] = t
	}
	return m
}()

func encodeHeader(codec byte, length int) []byte {
	h := make([]byte, blockHeaderSize)
	binary.LittleEndian.PutUint64(h, uint64(codec)<<codecShift|uint64(length))
	return h
}

func decodeHeader(h []byte) (compression.Type, int64, error) {
	word := binary.LittleEndian.Uint64(h)
	codec, ok := codecTypes[byte(word>>codecShift)]
	if !ok {
		return "", 0, fmt.Errorf("%w: unknown codec id %d", ErrCorrupted, word>>codecShift)
	}
	return codec, int64(word & lengthMask), nil
}

// decodeBlock decompresses block data and decodes its records, checking they
// continue from expected without gaps.
func decodeBlock(codec compression.Type, data []byte, expected uint64) ([]record.Record, error) {
	raw, err := compression.Decompress(data, codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	var recs []record.Record
	for len(raw) > 0 {
		r, n, err := record.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if r.Seq != expected {
			return nil, fmt.Errorf("%w: record %d, expected %d", ErrCorrupted, r.Seq, expected)
		}
		recs = append(recs, r)
		expected = r.RangeEnd()
		raw = raw[n:]
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: empty block", ErrCorrupted)
	}
	return recs, nil
}

func (w *Log) chunkPath(chunk uint64) string {
	return filepath.Join(w.cfg.Path, fmt.Sprintf("%016x", chunk))
}

// listChunks returns the chunk names in the directory, oldest first.
func listChunks(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var chunks []uint64
	for _, entry := range entries {
		if entry.IsDir() || len(entry.Name()) != 16 {
			continue
		}
		start, err := strconv.ParseUint(entry.Name(), 16, 64)
		if err != nil {
			continue
		}
		chunks = append(chunks, start)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i] < chunks[j] })
	return chunks, nil
}

// writeBlockLocked appends one block holding records [first, end).
func (w *Log) writeBlockLocked(first, end uint64, raw []byte) error {
	data, err := compression.Compress(raw, compression.Config{Type: w.cfg.Compression})
	if err != nil {
		return fmt.Errorf("compress block: %w", err)
	}
	size := int64(blockHeaderSize + len(data))

	if w.writer != nil && w.writerSize > 0 && w.writerSize+size > w.cfg.ChunkFileSize {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}
	if w.writer == nil {
		if err := w.openWriterLocked(first); err != nil {
			return err
		}
	}

	if _, err := w.writerBuf.Write(encodeHeader(codecIDs[w.cfg.Compression], len(data))); err != nil {
		return w.failLocked(err)
	}
	if _, err := w.writerBuf.Write(data); err != nil {
		return w.failLocked(err)
	}

	w.blocks = append(w.blocks, blockRef{
		first:  first,
		end:    end,
		chunk:  w.writerChunk,
		offset: w.writerSize,
		size:   size,
	})
	w.writerSize += size
	w.diskBytes += size
	w.nextSeq = end

	walBytesWrittenTotal.Add(float64(size))
	walDiskBytes.Set(float64(w.diskBytes))
	return nil
}

func (w *Log) openWriterLocked(chunk uint64) error {
	f, err := os.OpenFile(w.chunkPath(chunk), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		if isDiskFullError(err) {
			walDiskFullTotal.Inc()
			return ErrDiskFull
		}
		return fmt.Errorf("open chunk %016x: %w", chunk, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat chunk %016x: %w", chunk, err)
	}
	w.writer = f
	w.writerBuf = bufio.NewWriterSize(f, w.cfg.WriteBufferSize)
	w.writerChunk = chunk
	w.writerSize = st.Size()
	return nil
}

// rotateLocked syncs and closes the active chunk; the next block opens a new
// one named after its first sequence.
func (w *Log) rotateLocked() error {
	if err := w.syncLocked(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("close chunk %016x: %w", w.writerChunk, err)
	}
	w.writer = nil
	w.writerBuf = nil
	w.writerSize = 0
	walChunkRotationsTotal.Inc()
	w.log.Debug("chunk rotated", logging.F("chunk", fmt.Sprintf("%016x", w.writerChunk)))
	return nil
}

func (w *Log) readerLocked(chunk uint64) (*os.File, error) {
	if f, ok := w.readers[chunk]; ok {
		return f, nil
	}
	f, err := os.Open(w.chunkPath(chunk))
	if err != nil {
		return nil, fmt.Errorf("open chunk %016x for reading: %w", chunk, err)
	}
	w.readers[chunk] = f
	return f, nil
}

// readBlockLocked returns the records of w.blocks[i].
func (w *Log) readBlockLocked(i int) ([]record.Record, error) {
	ref := w.blocks[i]
	if w.cache.ok && w.cache.first == ref.first {
		return w.cache.records, nil
	}
	if ref.chunk == w.writerChunk {
		if err := w.flushLocked(); err != nil {
			return nil, err
		}
	}

	f, err := w.readerLocked(ref.chunk)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, ref.size)
	if _, err := f.ReadAt(buf, ref.offset); err != nil {
		return nil, fmt.Errorf("read block at %016x+%d: %w", ref.chunk, ref.offset, err)
	}
	codec, length, err := decodeHeader(buf[:blockHeaderSize])
	if err != nil {
		return nil, err
	}
	if length != ref.size-blockHeaderSize {
		return nil, fmt.Errorf("%w: block length %d, indexed %d", ErrCorrupted, length, ref.size-blockHeaderSize)
	}
	recs, err := decodeBlock(codec, buf[blockHeaderSize:], ref.first)
	if err != nil {
		return nil, err
	}
	w.cache = cachedBlock{first: ref.first, records: recs, ok: true}
	return recs, nil
}

// isDiskFullError checks if an error indicates disk is full.
func isDiskFullError(err error) bool {
	return err != nil && errors.Is(err, syscall.ENOSPC)
}
