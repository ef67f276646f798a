package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// span is a test entry covering [start, end).
type span struct {
	start, end uint64
}

func (s span) RangeStart() uint64 { return s.start }
func (s span) RangeEnd() uint64   { return s.end }
func (s span) String() string     { return fmt.Sprintf("[%d,%d)", s.start, s.end) }

// spans builds contiguous entries of the given width covering [from, to).
func spans(from, to, width uint64) []span {
	var out []span
	for s := from; s < to; s += width {
		e := s + width
		if e > to {
			e = to
		}
		out = append(out, span{s, e})
	}
	return out
}

// memLog is an in-memory log store holding a contiguous history.
type memLog struct {
	mu      sync.Mutex
	entries []span
	batch   int
	reads   atomic.Int32
	err     error
	// afterRead runs once per read, after the batch is chosen and before it is returned.
	afterRead func()
}

func newMemLog(entries []span, batch int) *memLog {
	return &memLog{entries: entries, batch: batch}
}

func (l *memLog) append(e ...span) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e...)
}

func (l *memLog) ReadLogs(ctx context.Context, from uint64) ([]span, error) {
	l.reads.Add(1)
	l.mu.Lock()
	if l.err != nil {
		err := l.err
		l.mu.Unlock()
		return nil, err
	}
	var out []span
	for _, e := range l.entries {
		if e.start < from {
			continue
		}
		if l.batch > 0 && len(out) == l.batch {
			break
		}
		out = append(out, e)
	}
	hook := l.afterRead
	l.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// readerFunc serves reads from a function and ignores cancellation.
type readerFunc func(from uint64) []span

func (f readerFunc) ReadLogs(_ context.Context, from uint64) ([]span, error) {
	return f(from), nil
}

// watermarkSync is a mutex Synchronizer faulted while the high-water mark is
// ahead of the last accepted position.
type watermarkSync struct {
	sync.Mutex
	high atomic.Uint64
}

func (s *watermarkSync) IsFaulted(last uint64) bool {
	return s.high.Load() > last
}

func (s *watermarkSync) advance(to uint64) {
	for {
		cur := s.high.Load()
		if to <= cur || s.high.CompareAndSwap(cur, to) {
			return
		}
	}
}

// inlineExec runs tasks on the caller's goroutine and records their errors.
type inlineExec struct {
	mu     sync.Mutex
	errs   []error
	reject error
	runs   atomic.Int32
}

func (e *inlineExec) Submit(task Task) error {
	if e.reject != nil {
		return e.reject
	}
	e.runs.Add(1)
	if err := task(context.Background()); err != nil {
		e.mu.Lock()
		e.errs = append(e.errs, err)
		e.mu.Unlock()
	}
	return nil
}

func (e *inlineExec) errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

// goExec runs each task on its own goroutine.
type goExec struct {
	wg sync.WaitGroup
}

func (e *goExec) Submit(task Task) error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = task(context.Background())
	}()
	return nil
}

type fixture struct {
	q    *Queue[span]
	log  *memLog
	sync *watermarkSync
	exec *inlineExec
}

func newFixture(t *testing.T, cfg Config, history []span, batch int) *fixture {
	t.Helper()
	f := &fixture{
		log:  newMemLog(history, batch),
		sync: &watermarkSync{},
		exec: &inlineExec{},
	}
	if cfg.Name == "" {
		cfg.Name = t.Name()
	}
	q, err := New[span](cfg, f.log, RangeSizer[span]{}, f.sync, f.exec)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.q = q
	t.Cleanup(q.Close)
	return f
}

// produce records e in the log store and advances the watermark, the way a
// replication writer would, then offers it to the queue.
func (f *fixture) produce(e span) bool {
	f.log.append(e)
	f.sync.advance(e.end)
	return f.q.Offer(e)
}

func drain(q *Queue[span]) []span {
	var out []span
	for {
		e, ok := q.Poll()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func assertContiguous(t *testing.T, got []span, from, to uint64) {
	t.Helper()
	next := from
	for i, e := range got {
		if e.start != next {
			t.Fatalf("entry %d = %v, expected start %d (got %v)", i, e, next, got)
		}
		next = e.end
	}
	if next != to {
		t.Fatalf("delivered up to %d, expected %d", next, to)
	}
}

var errBoom = errors.New("boom")

// snapshot copies the live entries of f, oldest first.
func (f *fifo[T]) snapshot() []T {
	out := make([]T, f.len())
	copy(out, f.items[f.head:])
	return out
}
