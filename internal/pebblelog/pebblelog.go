// Package pebblelog is a log store for records backed by a Pebble database.
// It serves the same role as the chunked wal package for deployments that
// prefer an embedded LSM over flat files.
package pebblelog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/szibis/logrelay/internal/logging"
	"github.com/szibis/logrelay/internal/record"
)

// FsyncMode defines durability behavior for committed appends.
type FsyncMode string

const (
	// FsyncAlways syncs the Pebble WAL on every append.
	FsyncAlways FsyncMode = "always"
	// FsyncInterval lets Pebble group-commit syncs within FsyncInterval.
	FsyncInterval FsyncMode = "interval"
	// FsyncNever leaves syncing to Pebble's own policy.
	FsyncNever FsyncMode = "never"
)

const (
	defaultFsyncInterval = 5 * time.Millisecond
	defaultReadBatch     = 1024
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("pebblelog: closed")
	// ErrSeqNotFound is returned by ReadLogs for positions already truncated.
	ErrSeqNotFound = errors.New("pebblelog: sequence not retained")
)

var (
	logPrefix    = []byte("log/")
	metaFirstKey = []byte("meta/first")
	metaNextKey  = []byte("meta/next")
)

// ParseFsyncMode parses an fsync mode string; empty means interval.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch m := FsyncMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return FsyncInterval, nil
	case FsyncAlways, FsyncInterval, FsyncNever:
		return m, nil
	default:
		return "", fmt.Errorf("unknown fsync mode: %s", s)
	}
}

// Config configures the store.
type Config struct {
	// Dir is the Pebble database directory.
	Dir string
	// StartSeq is the first sequence of an empty store.
	StartSeq uint64
	Fsync    FsyncMode
	// FsyncInterval bounds group-commit delay when Fsync is FsyncInterval.
	FsyncInterval time.Duration
	// ReadBatch caps the number of records returned by one ReadLogs call.
	ReadBatch int
	// PebbleOptions allows advanced tuning. If nil, defaults are used.
	PebbleOptions *pebble.Options
}

// Store is a record log kept under sequence keys in Pebble.
type Store struct {
	db        *pebble.DB
	writeSync bool
	readBatch int
	log       *logging.Component

	// mu serializes appends, truncation and Close so sequence assignment
	// and the meta keys move together; readers share it.
	mu       sync.RWMutex
	firstSeq uint64
	nextSeq  uint64
	closed   bool
}

// Open creates or opens the store in cfg.Dir.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("pebblelog: Dir is required")
	}
	if cfg.ReadBatch <= 0 {
		cfg.ReadBatch = defaultReadBatch
	}
	mode, err := ParseFsyncMode(string(cfg.Fsync))
	if err != nil {
		return nil, err
	}

	po := cfg.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	if mode == FsyncInterval {
		interval := cfg.FsyncInterval
		if interval <= 0 {
			interval = defaultFsyncInterval
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	}

	db, err := pebble.Open(cfg.Dir, po)
	if err != nil {
		return nil, fmt.Errorf("pebblelog: open %s: %w", cfg.Dir, err)
	}

	s := &Store{
		db:        db,
		writeSync: mode != FsyncNever,
		readBatch: cfg.ReadBatch,
		log:       logging.With("component", "pebblelog", "dir", cfg.Dir),
	}
	if s.firstSeq, err = s.readMeta(metaFirstKey, cfg.StartSeq); err == nil {
		s.nextSeq, err = s.readMeta(metaNextKey, s.firstSeq)
	}
	if err == nil {
		// Persist the start so a later Open without StartSeq agrees.
		err = db.Set(metaFirstKey, seqValue(s.firstSeq), pebble.Sync)
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	s.log.Info("pebble log store opened", logging.F(
		"first_seq", s.firstSeq,
		"next_seq", s.nextSeq,
		"fsync", string(mode),
	))
	return s, nil
}

func (s *Store) readMeta(key []byte, def uint64) (uint64, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pebblelog: read %s: %w", key, err)
	}
	defer closer.Close()
	if len(v) != 8 {
		return 0, fmt.Errorf("pebblelog: malformed %s", key)
	}
	return binary.BigEndian.Uint64(v), nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, len(logPrefix)+8)
	copy(k, logPrefix)
	binary.BigEndian.PutUint64(k[len(logPrefix):], seq)
	return k
}

func seqValue(seq uint64) []byte {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, seq)
	return v
}

func (s *Store) commit(b *pebble.Batch) error {
	start := time.Now()
	syncMode := pebble.NoSync
	if s.writeSync {
		syncMode = pebble.Sync
	}
	err := b.Commit(syncMode)
	pebbleCommitDuration.Observe(time.Since(start).Seconds())
	return err
}

// Append stores payloads as consecutive single-entry records in one batch.
func (s *Store) Append(payloads ...[]byte) ([]record.Record, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	b := s.db.NewBatch()
	defer b.Close()

	recs := make([]record.Record, len(payloads))
	var buf []byte
	for i, p := range payloads {
		recs[i] = record.Record{Seq: s.nextSeq + uint64(i), Count: 1, Timestamp: now, Payload: p}
		var err error
		if buf, err = record.Encode(buf[:0], recs[i]); err != nil {
			return nil, err
		}
		if err := b.Set(seqKey(recs[i].Seq), buf, nil); err != nil {
			return nil, err
		}
	}
	end := recs[len(recs)-1].RangeEnd()
	if err := b.Set(metaNextKey, seqValue(end), nil); err != nil {
		return nil, err
	}
	size := b.Len()
	if err := s.commit(b); err != nil {
		return nil, fmt.Errorf("pebblelog: commit append: %w", err)
	}
	s.nextSeq = end

	pebbleAppendedRecordsTotal.Add(float64(len(recs)))
	pebbleBytesWrittenTotal.Add(float64(size))
	return recs, nil
}

// ReadLogs returns up to ReadBatch records starting at from.
func (s *Store) ReadLogs(ctx context.Context, from uint64) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	first, next := s.firstSeq, s.nextSeq

	if s.closed {
		return nil, ErrClosed
	}
	if from >= next {
		return nil, nil
	}
	if from < first {
		return nil, fmt.Errorf("%w: %d is before first retained %d", ErrSeqNotFound, from, first)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: seqKey(from), UpperBound: seqKey(next)})
	if err != nil {
		return nil, fmt.Errorf("pebblelog: iterator: %w", err)
	}
	defer iter.Close()

	out := make([]record.Record, 0, min(s.readBatch, int(next-from)))
	for ok := iter.First(); ok && len(out) < s.readBatch; ok = iter.Next() {
		r, _, err := record.Decode(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("pebblelog: record at %x: %w", iter.Key(), err)
		}
		// Values are only valid until the iterator moves.
		out = append(out, r.Clone())
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebblelog: iterate: %w", err)
	}
	pebbleReadsTotal.Inc()
	pebbleReadRecordsTotal.Add(float64(len(out)))
	return out, nil
}

// TruncateBefore deletes every record below seq and returns how many
// sequences were dropped.
func (s *Store) TruncateBefore(seq uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if seq > s.nextSeq {
		seq = s.nextSeq
	}
	if seq <= s.firstSeq {
		return 0, nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(seqKey(s.firstSeq), seqKey(seq), nil); err != nil {
		return 0, err
	}
	if err := b.Set(metaFirstKey, seqValue(seq), nil); err != nil {
		return 0, err
	}
	if err := s.commit(b); err != nil {
		return 0, fmt.Errorf("pebblelog: commit truncate: %w", err)
	}

	dropped := int(seq - s.firstSeq)
	s.firstSeq = seq
	pebbleTruncatedRecordsTotal.Add(float64(dropped))
	s.log.Debug("log truncated", logging.F("first_seq", seq, "dropped", dropped))
	return dropped, nil
}

// FirstSeq returns the first sequence still retained.
func (s *Store) FirstSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstSeq
}

// LastSeq returns the end of the log: the sequence the next appended record
// receives.
func (s *Store) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSeq
}

// Sync forces the Pebble WAL to disk.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.LogData(nil, pebble.Sync)
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
