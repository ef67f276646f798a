package queue

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/szibis/logrelay/internal/logging"
)

// Default ratios applied when Config leaves them at zero.
const (
	DefaultRecentQueueRatio = 0.5
	DefaultLogReadRatio     = 0.5
)

// Config holds the queue configuration.
type Config struct {
	// Name labels metrics and logs. A random name is generated when empty.
	Name string
	// RangeStart is the sequence position the first accepted entry must start at.
	RangeStart uint64
	// MaxSize is the soft weight limit shared by the poll queue and the
	// recent-offer window.
	MaxSize int64
	// RecentQueueRatio caps the recent-offer window at MaxSize*RecentQueueRatio.
	RecentQueueRatio float64
	// LogReadRatio gates catch-up: it starts only once the poll queue weight
	// is at most (MaxSize - recent weight) * LogReadRatio.
	LogReadRatio float64
}

func (c *Config) applyDefaults() error {
	if c.Name == "" {
		c.Name = "q-" + uuid.NewString()[:8]
	}
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.RecentQueueRatio == 0 {
		c.RecentQueueRatio = DefaultRecentQueueRatio
	}
	if c.LogReadRatio == 0 {
		c.LogReadRatio = DefaultLogReadRatio
	}
	if c.RecentQueueRatio < 0 || c.RecentQueueRatio > 1 {
		return fmt.Errorf("%w: recent queue ratio must be in (0, 1], got %v", ErrInvalidConfig, c.RecentQueueRatio)
	}
	if c.LogReadRatio < 0 || c.LogReadRatio > 1 {
		return fmt.Errorf("%w: log read ratio must be in (0, 1], got %v", ErrInvalidConfig, c.LogReadRatio)
	}
	return nil
}

// acceptance is the outcome of ordered acceptance.
type acceptance int

const (
	rejected acceptance = iota
	appended
	absorbed
)

// Queue is a bounded, log-backed queue delivering entries to a single
// consumer in strict sequence order. Entries offered in order go straight to
// the poll queue; anything else is parked in a recent-offer window while a
// catch-up task replays the gap from the log store.
//
// Every mutation happens under the injected Synchronizer. Sizes and flags are
// mirrored in atomics so inspection methods never take the lock.
type Queue[T Entry] struct {
	cfg     Config
	reader  LogReader[T]
	sizer   Sizer[T]
	sync    Synchronizer
	exec    Executor
	log     *logging.Component
	metrics *queueMetrics

	// guarded by sync
	poll         fifo[weighted[T]]
	recent       recentWindow[T]
	lastAccepted uint64
	hasAccepted  bool
	err          error

	pollSize   atomic.Int64
	recentSize atomic.Int64
	length     atomic.Int64
	faulted    atomic.Bool
	reading    atomic.Bool
	open       atomic.Bool

	// ctx is cancelled by Close so an in-flight log read can stop early.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Queue. All collaborators are required.
func New[T Entry](cfg Config, reader LogReader[T], sizer Sizer[T], sync Synchronizer, exec Executor) (*Queue[T], error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	switch {
	case reader == nil:
		return nil, fmt.Errorf("%w: log reader is required", ErrInvalidConfig)
	case sizer == nil:
		return nil, fmt.Errorf("%w: sizer is required", ErrInvalidConfig)
	case sync == nil:
		return nil, fmt.Errorf("%w: synchronizer is required", ErrInvalidConfig)
	case exec == nil:
		return nil, fmt.Errorf("%w: executor is required", ErrInvalidConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue[T]{
		cfg:     cfg,
		reader:  reader,
		sizer:   sizer,
		sync:    sync,
		exec:    exec,
		log:     logging.With("component", "queue", "queue", cfg.Name),
		metrics: newQueueMetrics(cfg.Name, cfg.MaxSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	q.open.Store(true)
	return q, nil
}

// Name returns the queue name used in logs and metrics.
func (q *Queue[T]) Name() string { return q.cfg.Name }

// RangeStart returns the sequence position the queue started at.
func (q *Queue[T]) RangeStart() uint64 { return q.cfg.RangeStart }

// Offer places e on the consumer path. It returns true when e was appended
// to the poll queue or is already covered by accepted entries, and false
// when e was deferred to the recent-offer window for a later join. Offer
// never blocks on I/O.
func (q *Queue[T]) Offer(e T) bool {
	weight := q.sizer.Size(e)

	q.sync.Lock()
	defer q.sync.Unlock()

	if !q.open.Load() {
		return false
	}

	if !q.overCapacity(weight) {
		switch q.acceptOrdered(e, weight) {
		case appended:
			q.metrics.accepted.Inc()
			return true
		case absorbed:
			q.metrics.absorbed.Inc()
			return true
		}
	}

	q.setFaulted(true)
	q.cacheRecentOffer(e, weight)
	q.metrics.deferred.Inc()
	return false
}

// overCapacity reports whether an entry of the given weight must be deferred.
// A single entry is always let into an empty queue, so one oversized entry
// may overshoot MaxSize.
func (q *Queue[T]) overCapacity(weight int64) bool {
	used := q.pollSize.Load() + q.recentSize.Load()
	if used >= q.cfg.MaxSize {
		return true
	}
	return used > 0 && used+weight > q.cfg.MaxSize
}

// acceptOrdered appends e when it continues the poll queue, absorbs it when it
// starts behind the last accepted position, and rejects it on a gap.
// Must be called with the lock held.
func (q *Queue[T]) acceptOrdered(e T, weight int64) acceptance {
	start := e.RangeStart()
	switch {
	case !q.hasAccepted:
		if start != q.cfg.RangeStart {
			return rejected
		}
	case start == q.lastAccepted:
	case start < q.lastAccepted:
		// Treated as fully covered even when e extends past lastAccepted.
		return absorbed
	default:
		return rejected
	}
	q.appendLocked(weighted[T]{entry: e, weight: weight})
	return appended
}

func (q *Queue[T]) appendLocked(it weighted[T]) {
	q.poll.push(it)
	q.lastAccepted = it.entry.RangeEnd()
	q.hasAccepted = true
	q.pollSize.Add(it.weight)
	q.length.Add(1)
	q.metrics.pollSize.Set(float64(q.pollSize.Load()))
}

// cacheRecentOffer parks e in the recent-offer window and trims the window
// from the front until it fits both its own share and the overall limit.
// Must be called with the lock held.
func (q *Queue[T]) cacheRecentOffer(e T, weight int64) {
	if q.recent.cache(e, weight) {
		q.metrics.windowClears.Inc()
	}
	maxRecent := int64(float64(q.cfg.MaxSize) * q.cfg.RecentQueueRatio)
	pollSize := q.pollSize.Load()
	evicted := q.recent.evictWhile(func(recent int64) bool {
		return recent > maxRecent || pollSize+recent > q.cfg.MaxSize
	})
	if evicted > 0 {
		q.metrics.evictions.Add(float64(evicted))
	}
	q.syncRecentSize()
}

func (q *Queue[T]) syncRecentSize() {
	q.recentSize.Store(q.recent.weight)
	q.metrics.recentSize.Set(float64(q.recent.weight))
}

func (q *Queue[T]) setFaulted(v bool) {
	q.faulted.Store(v)
	q.metrics.faulted.Set(boolGauge(v))
}

func (q *Queue[T]) setReading(v bool) {
	q.reading.Store(v)
	q.metrics.reading.Set(boolGauge(v))
}

// Poll removes and returns the head of the poll queue. Afterwards it
// considers starting a catch-up task; a submission failure is logged here
// and returned by the next CheckLog.
func (q *Queue[T]) Poll() (T, bool) {
	q.sync.Lock()
	it, ok := q.poll.pop()
	if ok {
		q.pollSize.Add(-it.weight)
		q.length.Add(-1)
		if q.poll.len() == 0 {
			q.pollSize.Store(0)
		}
		q.metrics.pollSize.Set(float64(q.pollSize.Load()))
		q.metrics.polled.Inc()
	}
	q.sync.Unlock()

	if err := q.checkState(); err != nil {
		q.log.Warn("catch-up not started", logging.F("error", err.Error()))
	}
	return it.entry, ok
}

// Peek returns the head of the poll queue without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.sync.Lock()
	defer q.sync.Unlock()
	it, ok := q.poll.front()
	return it.entry, ok
}

// CheckLog starts a catch-up task if the queue is faulted, has room, and no
// task is running. It returns the executor's error when the task is rejected.
func (q *Queue[T]) CheckLog() error {
	return q.checkState()
}

// Resync asks the Synchronizer whether the log holds entries the queue has
// not seen, marks the queue faulted if so, and then behaves like CheckLog.
// It lets a consumer pick up history written before the queue existed or
// by producers that never offered.
func (q *Queue[T]) Resync() error {
	q.sync.Lock()
	if q.open.Load() && !q.faulted.Load() {
		pos := q.cfg.RangeStart
		if q.hasAccepted {
			pos = q.lastAccepted
		}
		if q.sync.IsFaulted(pos) {
			q.setFaulted(true)
		}
	}
	q.sync.Unlock()
	return q.checkState()
}

func (q *Queue[T]) checkState() error {
	q.sync.Lock()
	start := q.shouldReadLog()
	if start {
		q.setReading(true)
	}
	q.sync.Unlock()

	if !start {
		return nil
	}
	if err := q.exec.Submit(q.catchUp); err != nil {
		q.sync.Lock()
		q.setReading(false)
		q.sync.Unlock()
		q.metrics.submitRejected.Inc()
		return fmt.Errorf("queue %s: submit catch-up: %w", q.cfg.Name, err)
	}
	return nil
}

// shouldReadLog must be called with the lock held.
func (q *Queue[T]) shouldReadLog() bool {
	if !q.open.Load() || !q.faulted.Load() || q.reading.Load() {
		return false
	}
	room := float64(q.cfg.MaxSize-q.recentSize.Load()) * q.cfg.LogReadRatio
	return float64(q.pollSize.Load()) <= room
}

// Close drops all queued entries and disables the queue. A running catch-up
// task notices on its next step and exits without touching state.
func (q *Queue[T]) Close() {
	q.sync.Lock()
	defer q.sync.Unlock()

	if !q.open.Swap(false) {
		return
	}
	q.cancel()
	q.poll.clear()
	q.recent.clear()
	q.lastAccepted = 0
	q.hasAccepted = false
	q.pollSize.Store(0)
	q.length.Store(0)
	q.syncRecentSize()
	q.setFaulted(false)
	q.metrics.pollSize.Set(0)
}

// IsOpen reports whether Close has not been called.
func (q *Queue[T]) IsOpen() bool { return q.open.Load() }

// IsFaultedToLog reports whether the queue relies on the log store to close a gap.
func (q *Queue[T]) IsFaultedToLog() bool { return q.faulted.Load() }

// IsReadingFromLog reports whether a catch-up task is in flight.
func (q *Queue[T]) IsReadingFromLog() bool { return q.reading.Load() }

// QueuedSize returns the weight held by the poll queue and the recent-offer window.
func (q *Queue[T]) QueuedSize() int64 { return q.pollSize.Load() + q.recentSize.Load() }

// PollSize returns the weight held by the poll queue.
func (q *Queue[T]) PollSize() int64 { return q.pollSize.Load() }

// RecentSize returns the weight held by the recent-offer window.
func (q *Queue[T]) RecentSize() int64 { return q.recentSize.Load() }

// Len returns the number of entries ready for Poll.
func (q *Queue[T]) Len() int { return int(q.length.Load()) }

// LastAccepted returns the end of the most recently accepted entry.
func (q *Queue[T]) LastAccepted() (uint64, bool) {
	q.sync.Lock()
	defer q.sync.Unlock()
	return q.lastAccepted, q.hasAccepted
}

// Err returns the fatal error that closed the queue, if any.
func (q *Queue[T]) Err() error {
	q.sync.Lock()
	defer q.sync.Unlock()
	return q.err
}
