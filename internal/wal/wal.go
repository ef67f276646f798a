// Package wal implements an append-only, chunked log store for records. It is
// the authoritative history a relay queue catches up from.
//
// Records are written in blocks: one block per Append call, each block an
// 8-byte header followed by the compressed encoding of its records. Blocks are
// appended to chunk files named by the first sequence they hold, in 16 hex
// digits. A sparse in-memory index maps sequence ranges to block positions and
// is rebuilt by scanning the chunks on Open.
package wal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/szibis/logrelay/internal/compression"
	"github.com/szibis/logrelay/internal/logging"
	"github.com/szibis/logrelay/internal/record"
)

const (
	defaultChunkFileSize   = 64 << 20 // 64MB
	defaultWriteBufferSize = 256 << 10
	defaultSyncBatchSize   = 100
	defaultSyncInterval    = 100 * time.Millisecond
	defaultReadBatch       = 1024
)

// SyncMode defines when appended blocks are fsynced.
type SyncMode string

const (
	// SyncImmediate syncs after every append (most durable, slowest)
	SyncImmediate SyncMode = "immediate"
	// SyncBatched syncs after SyncBatchSize appends or every SyncInterval
	SyncBatched SyncMode = "batched"
	// SyncAsync only flushes buffered writes every SyncInterval and leaves
	// syncing to the OS
	SyncAsync SyncMode = "async"
)

var (
	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("wal: closed")
	// ErrCorrupted is returned by Open when a chunk other than the last one
	// is damaged, or the chunks do not form a contiguous sequence.
	ErrCorrupted = errors.New("wal: corrupted")
	// ErrSeqNotFound is returned by ReadLogs for positions already truncated.
	ErrSeqNotFound = errors.New("wal: sequence not retained")
	// ErrDiskFull is returned when a write fails with ENOSPC.
	ErrDiskFull = errors.New("wal: disk is full")
)

// Config holds the log store configuration.
type Config struct {
	// Path is the directory holding the chunk files.
	Path string
	// StartSeq is the first sequence of an empty log.
	StartSeq uint64
	// ChunkFileSize is the size at which a new chunk file is started.
	ChunkFileSize int64
	// WriteBufferSize is the buffered writer size in bytes.
	WriteBufferSize int
	// Compression is the block codec (default: snappy).
	Compression compression.Type
	SyncMode    SyncMode
	// SyncBatchSize is the number of appends between syncs in batched mode.
	SyncBatchSize int
	// SyncInterval is the background flush/sync period.
	SyncInterval time.Duration
	// ReadBatch caps the number of records returned by one ReadLogs call.
	ReadBatch int
}

// DefaultConfig returns a Config with default values for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		ChunkFileSize:   defaultChunkFileSize,
		WriteBufferSize: defaultWriteBufferSize,
		Compression:     compression.TypeSnappy,
		SyncMode:        SyncBatched,
		SyncBatchSize:   defaultSyncBatchSize,
		SyncInterval:    defaultSyncInterval,
		ReadBatch:       defaultReadBatch,
	}
}

func (c *Config) applyDefaults() error {
	if c.Path == "" {
		return errors.New("wal: path is required")
	}
	if c.ChunkFileSize <= 0 {
		c.ChunkFileSize = defaultChunkFileSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = defaultWriteBufferSize
	}
	if c.Compression == "" {
		c.Compression = compression.TypeSnappy
	}
	if _, ok := codecIDs[c.Compression]; !ok {
		return fmt.Errorf("wal: unsupported compression %q", c.Compression)
	}
	switch c.SyncMode {
	case "":
		c.SyncMode = SyncBatched
	case SyncImmediate, SyncBatched, SyncAsync:
	default:
		return fmt.Errorf("wal: unknown sync mode %q", c.SyncMode)
	}
	if c.SyncBatchSize <= 0 {
		c.SyncBatchSize = defaultSyncBatchSize
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = defaultSyncInterval
	}
	if c.ReadBatch <= 0 {
		c.ReadBatch = defaultReadBatch
	}
	return nil
}

// blockRef locates one block holding records [first, end).
type blockRef struct {
	first  uint64
	end    uint64
	chunk  uint64 // name of the chunk file
	offset int64
	size   int64 // header + data
}

// cachedBlock keeps the most recently decoded block; catch-up reads usually
// continue where the previous batch stopped.
type cachedBlock struct {
	first   uint64
	records []record.Record
	ok      bool
}

// Log is a chunked write-ahead log of records.
type Log struct {
	cfg Config
	log *logging.Component

	mu       sync.Mutex
	blocks   []blockRef
	firstSeq uint64
	nextSeq  uint64

	writer      *os.File
	writerBuf   *bufio.Writer
	writerChunk uint64
	writerSize  int64

	readers map[uint64]*os.File
	cache   cachedBlock

	pendingWrites int
	diskBytes     int64
	// failed is set when a write left the active chunk in an unknown state.
	failed error
	closed bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens or creates the log in cfg.Path, recovering the index from the
// chunk files present.
func Open(cfg Config) (*Log, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create wal directory: %w", err)
	}

	w := &Log{
		cfg:     cfg,
		log:     logging.With("component", "wal", "path", cfg.Path),
		readers: make(map[uint64]*os.File),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if err := w.recover(); err != nil {
		w.closeFiles()
		return nil, err
	}
	walDiskBytes.Set(float64(w.diskBytes))

	w.log.Info("wal opened", logging.F(
		"first_seq", w.firstSeq,
		"next_seq", w.nextSeq,
		"blocks", len(w.blocks),
		"sync_mode", string(cfg.SyncMode),
		"compression", string(cfg.Compression),
	))

	if cfg.SyncMode == SyncImmediate {
		close(w.doneCh)
	} else {
		go w.syncLoop()
	}
	return w, nil
}

// Append writes payloads as consecutive single-entry records in one block and
// returns the records with their assigned sequences.
func (w *Log) Append(payloads ...[]byte) ([]record.Record, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if w.failed != nil {
		return nil, w.failed
	}

	recs := make([]record.Record, len(payloads))
	size := 0
	for i, p := range payloads {
		recs[i] = record.Record{Seq: w.nextSeq + uint64(i), Count: 1, Timestamp: now, Payload: p}
		size += recs[i].EncodedSize()
	}
	raw := make([]byte, 0, size)
	for _, r := range recs {
		var err error
		if raw, err = record.Encode(raw, r); err != nil {
			return nil, err
		}
	}

	if err := w.writeBlockLocked(recs[0].Seq, recs[len(recs)-1].RangeEnd(), raw); err != nil {
		return nil, err
	}
	walAppendsTotal.Inc()
	walAppendedRecordsTotal.Add(float64(len(recs)))

	if err := w.maybeSyncLocked(); err != nil {
		return recs, err
	}
	return recs, nil
}

// FirstSeq returns the first sequence still retained.
func (w *Log) FirstSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.firstSeq
}

// LastSeq returns the end of the log: the sequence the next appended record
// receives. Everything below it has been written.
func (w *Log) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextSeq
}

// Sync flushes buffered writes and fsyncs the active chunk.
func (w *Log) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.syncLocked()
}

// Close flushes and syncs pending writes and releases all files.
func (w *Log) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	var err error
	if w.failed == nil {
		err = w.syncLocked()
	}
	w.closeFiles()
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return err
}

func (w *Log) closeFiles() {
	if w.writer != nil {
		w.writer.Close()
		w.writer = nil
		w.writerBuf = nil
	}
	for chunk, f := range w.readers {
		f.Close()
		delete(w.readers, chunk)
	}
	w.cache = cachedBlock{}
}

func (w *Log) maybeSyncLocked() error {
	switch w.cfg.SyncMode {
	case SyncImmediate:
		return w.syncLocked()
	case SyncBatched:
		w.pendingWrites++
		if w.pendingWrites >= w.cfg.SyncBatchSize {
			return w.syncLocked()
		}
	}
	return nil
}

func (w *Log) flushLocked() error {
	if w.writerBuf == nil || w.writerBuf.Buffered() == 0 {
		return nil
	}
	if err := w.writerBuf.Flush(); err != nil {
		return w.failLocked(fmt.Errorf("flush chunk %016x: %w", w.writerChunk, err))
	}
	return nil
}

func (w *Log) syncLocked() error {
	if err := w.flushLocked(); err != nil {
		return err
	}
	w.pendingWrites = 0
	if w.writer == nil {
		return nil
	}
	if err := w.writer.Sync(); err != nil {
		return fmt.Errorf("sync chunk %016x: %w", w.writerChunk, err)
	}
	walSyncsTotal.Inc()
	return nil
}

// failLocked makes every later append fail; the torn tail is repaired by the
// next Open.
func (w *Log) failLocked(err error) error {
	if isDiskFullError(err) {
		walDiskFullTotal.Inc()
		err = fmt.Errorf("%w: %v", ErrDiskFull, err)
	}
	if w.failed == nil {
		w.failed = err
		w.log.Error("wal write failed, refusing further appends", logging.F("error", err.Error()))
	}
	return err
}

// syncLoop flushes (async) or syncs (batched) on every tick.
func (w *Log) syncLoop() {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			if !w.closed && w.failed == nil {
				var err error
				if w.cfg.SyncMode == SyncBatched && w.pendingWrites > 0 {
					err = w.syncLocked()
				} else {
					err = w.flushLocked()
				}
				if err != nil {
					w.log.Warn("background sync failed", logging.F("error", err.Error()))
				}
			}
			w.mu.Unlock()
		}
	}
}
