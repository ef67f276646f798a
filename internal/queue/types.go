package queue

import (
	"context"
	"errors"
	"fmt"
)

type (
	// Entry is an immutable unit of data covering the half-open sequence
	// range [RangeStart, RangeEnd). A well-formed stream has each entry
	// start where the previous one ended.
	Entry interface {
		RangeStart() uint64
		RangeEnd() uint64
	}

	// LogReader supplies the authoritative history of the stream. ReadLogs
	// returns the next batch of entries beginning exactly at from: the last
	// accepted sequence end, or the queue's range start when nothing has
	// been accepted yet. An empty batch means the store has nothing newer.
	LogReader[T Entry] interface {
		ReadLogs(ctx context.Context, from uint64) ([]T, error)
	}

	// Sizer assigns a non-negative weight to an entry. It is called on every
	// acceptance and must be cheap.
	Sizer[T Entry] interface {
		Size(T) int64
	}

	// SizerFunc adapts a function to the Sizer interface.
	SizerFunc[T Entry] func(T) int64

	// CountSizer weighs every entry as 1.
	CountSizer[T Entry] struct{}

	// RangeSizer weighs an entry by the length of its sequence range.
	RangeSizer[T Entry] struct{}

	// Synchronizer provides the mutual exclusion guarding a Queue and
	// answers whether the authoritative source still considers the queue
	// behind. Lock is not expected to be reentrant.
	Synchronizer interface {
		Lock()
		Unlock()
		IsFaulted(lastAccepted uint64) bool
	}

	// Task is a unit of background work handed to an Executor.
	Task = func(ctx context.Context) error

	// Executor runs tasks asynchronously. Submit must not block on the
	// task itself; a non-nil error means the task was rejected.
	Executor interface {
		Submit(Task) error
	}
)

func (f SizerFunc[T]) Size(e T) int64 { return f(e) }

func (CountSizer[T]) Size(T) int64 { return 1 }

func (RangeSizer[T]) Size(e T) int64 {
	if e.RangeEnd() < e.RangeStart() {
		return 0
	}
	return int64(e.RangeEnd() - e.RangeStart())
}

var (
	// ErrInvalidConfig is returned by New for unusable settings or missing
	// collaborators.
	ErrInvalidConfig = errors.New("invalid queue config")

	// ErrOrderingViolation marks a log store batch that does not continue
	// the queue. It indicates a broken log store or an internal bug and is
	// fatal to the queue instance.
	ErrOrderingViolation = errors.New("log store entry does not continue the queue")
)

// OrderingError describes the entry rejected during catch-up.
type OrderingError struct {
	Queue    string
	Expected uint64
	Start    uint64
	End      uint64
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("queue %s: %v: expected start %d, got [%d, %d)",
		e.Queue, ErrOrderingViolation, e.Expected, e.Start, e.End)
}

func (e *OrderingError) Unwrap() error {
	return ErrOrderingViolation
}
