// Package relay moves records from a log store to a sink through an
// order-preserving queue. Producers append to the store and offer the
// committed records; a single consumer polls the queue and delivers in
// sequence order, leaving the queue to replay from the store whatever it
// could not hold.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/szibis/logrelay/internal/logging"
	"github.com/szibis/logrelay/internal/queue"
	"github.com/szibis/logrelay/internal/record"
	"github.com/szibis/logrelay/internal/watermark"
)

const (
	defaultPollInterval = 50 * time.Millisecond
	defaultSinkRetries  = 3
)

// ErrOutOfOrder is returned by Run when the queue hands out a record that
// does not start where the previous delivery ended.
var ErrOutOfOrder = errors.New("relay: record delivered out of order")

type (
	// Store is the log store a relay appends to and replays from.
	Store interface {
		queue.LogReader[record.Record]
		Append(payloads ...[]byte) ([]record.Record, error)
		LastSeq() uint64
	}

	// Truncater is implemented by stores that can drop delivered history.
	Truncater interface {
		TruncateBefore(seq uint64) (int, error)
	}

	// Sink receives records in sequence order.
	Sink interface {
		Write(ctx context.Context, r record.Record) error
	}
)

// Config configures a Relay.
type Config struct {
	// Name labels metrics and log lines.
	Name string
	// PollInterval is the idle wait between empty polls.
	PollInterval time.Duration
	// SinkRetries is how many times a failed sink write is retried before
	// Run gives up.
	SinkRetries int
	// TruncateDelivered drops delivered history from stores implementing
	// Truncater.
	TruncateDelivered bool
	// MaxLineSize bounds a single line read by Ingest.
	MaxLineSize int
}

// Relay wires a store, a watermark, a queue and a sink together.
type Relay struct {
	cfg   Config
	store Store
	mark  watermark.Advancer
	q     *queue.Queue[record.Record]
	sink  Sink
	log   *logging.Component

	// appendMu keeps store order and offer order the same.
	appendMu sync.Mutex

	// next is the sequence the next delivered record must start at. Only
	// the Run goroutine touches it.
	next uint64
	// delivered mirrors next for other goroutines.
	delivered atomic.Uint64
}

// New builds a relay. mark may be nil when the queue's synchronizer reads
// the high-water mark from the store itself.
func New(cfg Config, store Store, q *queue.Queue[record.Record], mark watermark.Advancer, sink Sink) (*Relay, error) {
	switch {
	case store == nil:
		return nil, errors.New("relay: store is required")
	case q == nil:
		return nil, errors.New("relay: queue is required")
	case sink == nil:
		return nil, errors.New("relay: sink is required")
	}
	if cfg.Name == "" {
		cfg.Name = q.Name()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.SinkRetries < 0 {
		cfg.SinkRetries = 0
	} else if cfg.SinkRetries == 0 {
		cfg.SinkRetries = defaultSinkRetries
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = defaultMaxLineSize
	}

	r := &Relay{
		cfg:   cfg,
		store: store,
		mark:  mark,
		q:     q,
		sink:  sink,
		log:   logging.With("component", "relay", "relay", cfg.Name),
		next:  q.RangeStart(),
	}
	r.delivered.Store(r.next)
	return r, nil
}

// Append commits payloads to the store, advances the watermark and offers
// the committed records to the queue. Records the queue defers are still
// delivered later from the store. When the store reports an error together
// with committed records (a failed sync), those records are published before
// the error is returned.
func (r *Relay) Append(ctx context.Context, payloads ...[]byte) ([]record.Record, error) {
	if len(payloads) == 0 {
		return nil, nil
	}

	r.appendMu.Lock()
	defer r.appendMu.Unlock()

	recs, err := r.store.Append(payloads...)
	if err != nil {
		relayAppendErrorsTotal.WithLabelValues(r.cfg.Name).Inc()
		err = fmt.Errorf("relay: append: %w", err)
	}
	if len(recs) == 0 {
		return nil, err
	}
	relayAppendedTotal.WithLabelValues(r.cfg.Name).Add(float64(len(recs)))
	r.publish(ctx, recs)
	return recs, err
}

func (r *Relay) publish(ctx context.Context, recs []record.Record) {
	if r.mark != nil {
		if err := r.mark.Advance(ctx, recs[len(recs)-1].RangeEnd()); err != nil {
			// The records are committed; the queue finds them on its next
			// resync once the mark catches up.
			r.log.Warn("watermark advance failed", logging.F("error", err.Error()))
		}
	}
	for _, rec := range recs {
		r.q.Offer(rec)
	}
}

// Run delivers records until ctx is cancelled or delivery fails. Each idle
// tick resyncs the queue with the store, so history written before the
// relay started is delivered too.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info("relay started", logging.F("from_seq", r.next))
	if err := r.q.Resync(); err != nil {
		r.log.Warn("resync failed", logging.F("error", err.Error()))
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		delivered, err := r.drain(ctx)
		if err != nil {
			return err
		}
		if delivered > 0 {
			r.truncate()
		}
		if !r.q.IsOpen() {
			if err := r.q.Err(); err != nil {
				return fmt.Errorf("relay: queue closed: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			r.log.Info("relay stopped", logging.F("next_seq", r.next))
			return nil
		case <-ticker.C:
		}

		if err := r.q.Resync(); err != nil {
			r.log.Warn("resync failed", logging.F("error", err.Error()))
		}
	}
}

func (r *Relay) drain(ctx context.Context) (int, error) {
	n := 0
	for ctx.Err() == nil {
		rec, ok := r.q.Poll()
		if !ok {
			break
		}
		if err := r.deliver(ctx, rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *Relay) deliver(ctx context.Context, rec record.Record) error {
	if rec.RangeStart() != r.next {
		relayOutOfOrderTotal.WithLabelValues(r.cfg.Name).Inc()
		return fmt.Errorf("%w: expected %d, got %s", ErrOutOfOrder, r.next, rec)
	}

	var err error
	for attempt := 0; attempt <= r.cfg.SinkRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.PollInterval << (attempt - 1)):
			}
		}
		if err = r.sink.Write(ctx, rec); err == nil {
			r.next = rec.RangeEnd()
			r.delivered.Store(r.next)
			relayDeliveredTotal.WithLabelValues(r.cfg.Name).Inc()
			relayLastDelivered.WithLabelValues(r.cfg.Name).Set(float64(r.next))
			return nil
		}
		relaySinkErrorsTotal.WithLabelValues(r.cfg.Name).Inc()
		r.log.Warn("sink write failed", logging.F("seq", rec.Seq, "attempt", attempt+1, "error", err.Error()))
	}
	return fmt.Errorf("relay: sink write at %d: %w", rec.Seq, err)
}

func (r *Relay) truncate() {
	if !r.cfg.TruncateDelivered {
		return
	}
	t, ok := r.store.(Truncater)
	if !ok {
		return
	}
	n, err := t.TruncateBefore(r.next)
	if err != nil {
		r.log.Warn("truncate failed", logging.F("before", r.next, "error", err.Error()))
		return
	}
	if n > 0 {
		relayTruncatedTotal.WithLabelValues(r.cfg.Name).Add(float64(n))
	}
}

// Delivered returns the end sequence of the last delivered record, or the
// queue's range start before the first delivery.
func (r *Relay) Delivered() uint64 { return r.delivered.Load() }

// WaitDelivered blocks until every sequence below seq has been delivered,
// the queue closes, or ctx ends.
func (r *Relay) WaitDelivered(ctx context.Context, seq uint64) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for r.delivered.Load() < seq {
		if !r.q.IsOpen() {
			return r.Ready()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Ready reports an error when the relay can no longer deliver.
func (r *Relay) Ready() error {
	if r.q.IsOpen() {
		return nil
	}
	if err := r.q.Err(); err != nil {
		return err
	}
	return errors.New("queue closed")
}
