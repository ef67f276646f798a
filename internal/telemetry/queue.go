package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"

	otelmetric "go.opentelemetry.io/otel/metric"
)

// QueueState is a point-in-time view of the relay's queue and store.
type QueueState struct {
	QueuedSize   int64
	Length       int
	Faulted      bool
	Reading      bool
	DeliveredSeq uint64
	StoreLastSeq uint64
}

// Lag returns how many stored sequences are not delivered yet.
func (s QueueState) Lag() uint64 {
	if s.StoreLastSeq <= s.DeliveredSeq {
		return 0
	}
	return s.StoreLastSeq - s.DeliveredSeq
}

// ObserveQueue registers OTEL gauges that call state on every collection.
// The returned function unregisters them. On disabled telemetry it does
// nothing.
func (t *Telemetry) ObserveQueue(state func() QueueState) (func() error, error) {
	if t == nil || t.meterProvider == nil {
		return func() error { return nil }, nil
	}
	meter := t.meterProvider.Meter(Scope,
		otelmetric.WithInstrumentationVersion(t.svc.Version),
		otelmetric.WithInstrumentationAttributes(AttrQueue.String(t.svc.Queue)),
	)

	queued, errQueued := meter.Int64ObservableGauge("logrelay.queue.queued_size",
		otelmetric.WithDescription("Weight held by the poll queue and the recent-offer window"))
	length, errLength := meter.Int64ObservableGauge("logrelay.queue.length",
		otelmetric.WithDescription("Entries ready in the poll queue"), otelmetric.WithUnit("{entry}"))
	faulted, errFaulted := meter.Int64ObservableGauge("logrelay.queue.faulted",
		otelmetric.WithDescription("1 while the queue needs the log store to close a gap"))
	reading, errReading := meter.Int64ObservableGauge("logrelay.queue.reading",
		otelmetric.WithDescription("1 while a catch-up task reads the log store"))
	delivered, errDelivered := meter.Int64ObservableGauge("logrelay.relay.delivered_seq",
		otelmetric.WithDescription("End sequence of the last delivered record"))
	lag, errLag := meter.Int64ObservableGauge("logrelay.relay.lag",
		otelmetric.WithDescription("Stored sequences not delivered yet"), otelmetric.WithUnit("{seq}"))
	if err := errors.Join(errQueued, errLength, errFaulted, errReading, errDelivered, errLag); err != nil {
		return nil, fmt.Errorf("telemetry: create queue gauges: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o otelmetric.Observer) error {
		s := state()
		o.ObserveInt64(queued, s.QueuedSize)
		o.ObserveInt64(length, int64(s.Length))
		o.ObserveInt64(faulted, boolInt(s.Faulted))
		o.ObserveInt64(reading, boolInt(s.Reading))
		o.ObserveInt64(delivered, clampInt64(s.DeliveredSeq))
		o.ObserveInt64(lag, clampInt64(s.Lag()))
		return nil
	}, queued, length, faulted, reading, delivered, lag)
	if err != nil {
		return nil, fmt.Errorf("telemetry: register queue gauges: %w", err)
	}
	return reg.Unregister, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
