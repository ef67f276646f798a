package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	relayAppendedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_relay_appended_total",
		Help: "Records committed to the log store by the relay",
	}, []string{"relay"})

	relayAppendErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_relay_append_errors_total",
		Help: "Failed log store appends",
	}, []string{"relay"})

	relayIngestedLinesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_relay_ingested_lines_total",
		Help: "Input lines turned into records",
	}, []string{"relay"})

	relayDeliveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_relay_delivered_total",
		Help: "Records written to the sink",
	}, []string{"relay"})

	relaySinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_relay_sink_errors_total",
		Help: "Failed sink writes, including retried ones",
	}, []string{"relay"})

	relayOutOfOrderTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_relay_out_of_order_total",
		Help: "Records refused because they did not continue the delivered sequence",
	}, []string{"relay"})

	relayLastDelivered = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logrelay_relay_last_delivered_seq",
		Help: "End sequence of the last delivered record",
	}, []string{"relay"})

	relayTruncatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logrelay_relay_truncated_total",
		Help: "Units dropped by log store truncation: chunks for wal, records for pebble",
	}, []string{"relay"})
)

func init() {
	prometheus.MustRegister(
		relayAppendedTotal,
		relayAppendErrorsTotal,
		relayIngestedLinesTotal,
		relayDeliveredTotal,
		relaySinkErrorsTotal,
		relayOutOfOrderTotal,
		relayLastDelivered,
		relayTruncatedTotal,
	)
}
