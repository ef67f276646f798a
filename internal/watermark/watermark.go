// Package watermark tells a queue whether the authoritative log has moved
// past what the queue accepted. A Synchronizer pairs the queue's mutex with
// a Source reporting the log's high-water mark: the end of the newest
// committed entry.
package watermark

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/szibis/logrelay/internal/logging"
	"github.com/szibis/logrelay/internal/queue"
)

type (
	// Source reports the current high-water mark of the log.
	Source interface {
		HighWater() (uint64, error)
	}

	// Advancer is a Source the producer moves forward after each commit.
	Advancer interface {
		Source
		Advance(ctx context.Context, seq uint64) error
	}

	// SourceFunc adapts a function to the Source interface.
	SourceFunc func() (uint64, error)

	// LastSeqer is a log store that knows where its log ends.
	LastSeqer interface {
		LastSeq() uint64
	}
)

func (f SourceFunc) HighWater() (uint64, error) { return f() }

// Synchronizer implements queue.Synchronizer over a Source.
type Synchronizer struct {
	mu   sync.Mutex
	name string
	src  Source
	log  *logging.Component
}

var _ queue.Synchronizer = (*Synchronizer)(nil)

// New returns a Synchronizer consulting src. name labels metrics.
func New(name string, src Source) *Synchronizer {
	return &Synchronizer{
		name: name,
		src:  src,
		log:  logging.With("component", "watermark", "queue", name),
	}
}

func (s *Synchronizer) Lock()   { s.mu.Lock() }
func (s *Synchronizer) Unlock() { s.mu.Unlock() }

// IsFaulted reports whether the log holds entries past lastAccepted. An
// unreadable source counts as faulted so the queue falls back to the log.
func (s *Synchronizer) IsFaulted(lastAccepted uint64) bool {
	hw, err := s.src.HighWater()
	if err != nil {
		watermarkSourceErrorsTotal.WithLabelValues(s.name).Inc()
		s.log.Debug("high-water unavailable, assuming faulted", logging.F("error", err.Error()))
		return true
	}
	watermarkHighWater.WithLabelValues(s.name).Set(float64(hw))
	return hw > lastAccepted
}

// Atomic is an in-process high-water mark advanced by the producer.
type Atomic struct {
	v atomic.Uint64
}

var _ Advancer = (*Atomic)(nil)

// NewAtomic returns a mark starting at seq.
func NewAtomic(seq uint64) *Atomic {
	a := &Atomic{}
	a.v.Store(seq)
	return a
}

func (a *Atomic) HighWater() (uint64, error) { return a.v.Load(), nil }

// Advance raises the mark to seq. Lower values are ignored.
func (a *Atomic) Advance(_ context.Context, seq uint64) error {
	for {
		cur := a.v.Load()
		if seq <= cur || a.v.CompareAndSwap(cur, seq) {
			return nil
		}
	}
}

// LogStore reads the high-water mark straight from a log store.
func LogStore(store LastSeqer) Source {
	return SourceFunc(func() (uint64, error) { return store.LastSeq(), nil })
}
