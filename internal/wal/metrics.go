package wal

import "github.com/prometheus/client_golang/prometheus"

var (
	walAppendsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_appends_total",
		Help: "Blocks appended to the write-ahead log",
	})

	walAppendedRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_appended_records_total",
		Help: "Records appended to the write-ahead log",
	})

	walBytesWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_bytes_written_total",
		Help: "Bytes written to chunk files, headers included",
	})

	walDiskBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "logrelay_wal_disk_bytes",
		Help: "Bytes held by retained chunk files",
	})

	walChunkRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_chunk_rotations_total",
		Help: "Chunk file rotations",
	})

	walChunksRemovedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_chunks_removed_total",
		Help: "Chunk files removed by truncation",
	})

	walSyncsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_syncs_total",
		Help: "fsync calls on the active chunk",
	})

	walReadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_reads_total",
		Help: "ReadLogs calls served from chunk files",
	})

	walReadRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_read_records_total",
		Help: "Records returned by ReadLogs",
	})

	walTornTruncationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_torn_truncations_total",
		Help: "Torn tail blocks truncated during recovery",
	})

	walDiskFullTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logrelay_wal_disk_full_total",
		Help: "Writes that failed because the disk was full",
	})
)

func init() {
	prometheus.MustRegister(
		walAppendsTotal,
		walAppendedRecordsTotal,
		walBytesWrittenTotal,
		walDiskBytes,
		walChunkRotationsTotal,
		walChunksRemovedTotal,
		walSyncsTotal,
		walReadsTotal,
		walReadRecordsTotal,
		walTornTruncationsTotal,
		walDiskFullTotal,
	)
}
