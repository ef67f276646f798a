package pebblelog

import "github.com/prometheus/client_golang/prometheus"

var (
	pebbleAppendedRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_pebble_appended_records_total",
		Help: "Records appended to the pebble log store",
	})

	pebbleBytesWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_pebble_bytes_written_total",
		Help: "Batch bytes committed by appends",
	})

	pebbleReadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_pebble_reads_total",
		Help: "ReadLogs calls served by the pebble log store",
	})

	pebbleReadRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_pebble_read_records_total",
		Help: "Records returned by ReadLogs",
	})

	pebbleTruncatedRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_pebble_truncated_records_total",
		Help: "Records removed by TruncateBefore",
	})

	pebbleCommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "logrelay_pebble_commit_duration_seconds",
		Help:    "Batch commit latency including the configured fsync",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)

func init() {
	prometheus.MustRegister(
		pebbleAppendedRecordsTotal,
		pebbleBytesWrittenTotal,
		pebbleReadsTotal,
		pebbleReadRecordsTotal,
		pebbleTruncatedRecordsTotal,
		pebbleCommitDuration,
	)
}
