package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Offer results.
const (
	offerAccepted = "accepted"
	offerAbsorbed = "absorbed"
	offerDeferred = "deferred"
)

var (
	queuePollSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_queue_poll_size",
		Help: "Accounted weight of entries ready for the consumer",
	}, []string{"queue"})

	queueRecentSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_queue_recent_size",
		Help: "Accounted weight of out-of-order entries held in the recent-offer window",
	}, []string{"queue"})

	queueMaxSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_queue_max_size",
		Help: "Configured weight limit of the queue",
	}, []string{"queue"})

	queueFaulted = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_queue_faulted",
		Help: "1 while the queue relies on the log store to close a gap",
	}, []string{"queue"})

	queueReading = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_queue_reading_from_log",
		Help: "1 while a catch-up task owns log store reads",
	}, []string{"queue"})

	queueOffersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_queue_offers_total",
		Help: "Offered entries by outcome: accepted, absorbed (already covered) or deferred",
	}, []string{"queue", "result"})

	queuePolledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_queue_polled_total",
		Help: "Entries handed to the consumer",
	}, []string{"queue"})

	queueEvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_queue_recent_evictions_total",
		Help: "Entries evicted from the front of the recent-offer window",
	}, []string{"queue"})

	queueWindowClearsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_queue_recent_clears_total",
		Help: "Times the recent-offer window was cleared on an internal ordering break",
	}, []string{"queue"})

	queueCatchUpRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_queue_catchup_runs_total",
		Help: "Catch-up tasks started",
	}, []string{"queue"})

	queueCatchUpEntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_queue_catchup_entries_total",
		Help: "Entries read from the log store by catch-up tasks",
	}, []string{"queue"})

	queueJoinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_queue_joins_total",
		Help: "Successful joins of the recent-offer window into the poll queue",
	}, []string{"queue"})

	queueErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_queue_errors_total",
		Help: "Queue errors by type: log_read, submit_rejected, ordering_violation",
	}, []string{"queue", "type"})
)

func init() {
	prometheus.MustRegister(queuePollSize)
	prometheus.MustRegister(queueRecentSize)
	prometheus.MustRegister(queueMaxSize)
	prometheus.MustRegister(queueFaulted)
	prometheus.MustRegister(queueReading)
	prometheus.MustRegister(queueOffersTotal)
	prometheus.MustRegister(queuePolledTotal)
	prometheus.MustRegister(queueEvictionsTotal)
	prometheus.MustRegister(queueWindowClearsTotal)
	prometheus.MustRegister(queueCatchUpRunsTotal)
	prometheus.MustRegister(queueCatchUpEntriesTotal)
	prometheus.MustRegister(queueJoinsTotal)
	prometheus.MustRegister(queueErrorsTotal)
}

// queueMetrics holds the label-bound children for one queue instance.
type queueMetrics struct {
	pollSize       prometheus.Gauge
	recentSize     prometheus.Gauge
	faulted        prometheus.Gauge
	reading        prometheus.Gauge
	accepted       prometheus.Counter
	absorbed       prometheus.Counter
	deferred       prometheus.Counter
	polled         prometheus.Counter
	evictions      prometheus.Counter
	windowClears   prometheus.Counter
	catchUpRuns    prometheus.Counter
	catchUpEntries prometheus.Counter
	joins          prometheus.Counter
	logReadErrors  prometheus.Counter
	submitRejected prometheus.Counter
	orderingErrors prometheus.Counter
}

func newQueueMetrics(name string, maxSize int64) *queueMetrics {
	queueMaxSize.WithLabelValues(name).Set(float64(maxSize))
	return &queueMetrics{
		pollSize:       queuePollSize.WithLabelValues(name),
		recentSize:     queueRecentSize.WithLabelValues(name),
		faulted:        queueFaulted.WithLabelValues(name),
		reading:        queueReading.WithLabelValues(name),
		accepted:       queueOffersTotal.WithLabelValues(name, offerAccepted),
		absorbed:       queueOffersTotal.WithLabelValues(name, offerAbsorbed),
		deferred:       queueOffersTotal.WithLabelValues(name, offerDeferred),
		polled:         queuePolledTotal.WithLabelValues(name),
		evictions:      queueEvictionsTotal.WithLabelValues(name),
		windowClears:   queueWindowClearsTotal.WithLabelValues(name),
		catchUpRuns:    queueCatchUpRunsTotal.WithLabelValues(name),
		catchUpEntries: queueCatchUpEntriesTotal.WithLabelValues(name),
		joins:          queueJoinsTotal.WithLabelValues(name),
		logReadErrors:  queueErrorsTotal.WithLabelValues(name, "log_read"),
		submitRejected: queueErrorsTotal.WithLabelValues(name, "submit_rejected"),
		orderingErrors: queueErrorsTotal.WithLabelValues(name, "ordering_violation"),
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
