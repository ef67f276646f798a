package compression

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// Per-P memory the pools may hold: one zstd encoder plus one buffer.
const estimatedBytesPerProc = 256*1024 + 32*1024

func counterFunc(name, help string, v func() int64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v()) })
}

func init() {
	prometheus.MustRegister(
		counterFunc("logrelay_compression_pool_gets_total",
			"Codec pool Get() calls", compressionPoolGets.Load),
		counterFunc("logrelay_compression_pool_puts_total",
			"Codecs returned to the pool", compressionPoolPuts.Load),
		counterFunc("logrelay_compression_pool_discards_total",
			"Codecs or buffers discarded instead of pooled", compressionPoolDiscards.Load),
		counterFunc("logrelay_compression_pool_new_total",
			"Codecs created on a pool miss", compressionPoolNews.Load),
		counterFunc("logrelay_compression_buffer_pool_gets_total",
			"Buffer pool Get() calls", bufferPoolGets.Load),
		counterFunc("logrelay_compression_buffer_pool_puts_total",
			"Buffer pool Put() calls", bufferPoolPuts.Load),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "logrelay_compression_buffers_active",
			Help: "Compression buffers currently checked out from the pool",
		}, func() float64 { return float64(bufferActive.Load()) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "logrelay_compression_pool_estimated_bytes",
			Help: "Upper estimate of memory held by codec and buffer pools",
		}, func() float64 {
			return float64(runtime.GOMAXPROCS(0)) * estimatedBytesPerProc
		}),
	)
}
