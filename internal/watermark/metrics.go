package watermark

import "github.com/prometheus/client_golang/prometheus"

var (
	watermarkHighWater = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_watermark_high_water",
		Help: "Last high-water mark observed by the queue synchronizer",
	}, []string{"queue"})

	watermarkSourceErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_watermark_source_errors_total",
		Help: "High-water reads that failed and were treated as faulted",
	}, []string{"queue"})
)

func init() {
	prometheus.MustRegister(watermarkHighWater, watermarkSourceErrorsTotal)
}
