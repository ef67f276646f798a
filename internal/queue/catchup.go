package queue

import (
	"context"
	"errors"

	"github.com/szibis/logrelay/internal/logging"
)

// catchUp replays the gap from the log store into the poll queue, then tries
// to join the recent-offer window. It loops while the queue is open, faulted
// and has spare capacity. Only one catch-up runs per queue; the reading flag
// is owned by this task until it returns.
func (q *Queue[T]) catchUp(ctx context.Context) error {
	defer func() {
		q.sync.Lock()
		q.setReading(false)
		q.sync.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(q.ctx, cancel)
	defer stop()

	q.metrics.catchUpRuns.Inc()

	for q.open.Load() && q.faulted.Load() && q.hasSpareCapacity() {
		from, ok := q.readPosition()
		if !ok {
			return nil
		}

		batch, err := q.reader.ReadLogs(ctx, from)
		if err != nil {
			if !q.open.Load() || errors.Is(err, context.Canceled) {
				return nil
			}
			q.metrics.logReadErrors.Inc()
			q.log.Warn("log store read failed", logging.F("from", from, "error", err.Error()))
			return nil
		}
		q.metrics.catchUpEntries.Add(float64(len(batch)))

		progressed, err := q.applyBatch(batch)
		if err != nil {
			q.fail(err)
			return err
		}
		if !progressed {
			// The log store has nothing newer yet; the next Poll or
			// CheckLog retries.
			return nil
		}
	}
	return nil
}

// readPosition returns where the next log read starts. It reports false when
// the queue has been closed.
func (q *Queue[T]) readPosition() (uint64, bool) {
	q.sync.Lock()
	defer q.sync.Unlock()
	if !q.open.Load() {
		return 0, false
	}
	if !q.hasAccepted {
		return q.cfg.RangeStart, true
	}
	return q.lastAccepted, true
}

// hasSpareCapacity reports whether catch-up may add to the poll queue. An
// empty poll queue always has room so a full recent-offer window cannot stall
// the catch-up.
func (q *Queue[T]) hasSpareCapacity() bool {
	poll := q.pollSize.Load()
	return poll == 0 || poll < q.cfg.MaxSize-q.recentSize.Load()
}

// applyBatch feeds a log batch through ordered acceptance until the queue is
// full, joins the recent-offer window when possible and refreshes the faulted
// flag from the Synchronizer. Entries left over are read again on the next
// pass. It reports whether the poll queue advanced.
func (q *Queue[T]) applyBatch(batch []T) (bool, error) {
	q.sync.Lock()
	defer q.sync.Unlock()

	if !q.open.Load() {
		return false, nil
	}

	before := q.length.Load()
	for _, e := range batch {
		if !q.hasSpareCapacity() {
			break
		}
		if q.acceptOrdered(e, q.sizer.Size(e)) == rejected {
			expected := q.cfg.RangeStart
			if q.hasAccepted {
				expected = q.lastAccepted
			}
			return false, &OrderingError{
				Queue:    q.cfg.Name,
				Expected: expected,
				Start:    e.RangeStart(),
				End:      e.RangeEnd(),
			}
		}
	}

	if q.join() {
		q.metrics.joins.Inc()
	}
	q.setFaulted(q.sync.IsFaulted(q.lastAccepted))
	return q.length.Load() != before, nil
}

// join moves the recent-offer window onto the poll queue once the gap between
// them is closed. Entries the catch-up already covered are discarded first.
// Must be called with the lock held.
func (q *Queue[T]) join() bool {
	if !q.hasAccepted {
		return false
	}
	q.recent.dropBefore(q.lastAccepted)
	if head, ok := q.recent.front(); ok && head.RangeStart() != q.lastAccepted {
		q.syncRecentSize()
		return false
	}
	for _, it := range q.recent.drain() {
		q.appendLocked(it)
	}
	q.syncRecentSize()
	return true
}

// fail records a fatal catch-up error and closes the queue.
func (q *Queue[T]) fail(err error) {
	q.sync.Lock()
	q.err = err
	q.sync.Unlock()

	q.metrics.orderingErrors.Inc()
	q.log.Error("catch-up aborted, closing queue", logging.F("error", err.Error()))
	q.Close()
}
