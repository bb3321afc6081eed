package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netgauze_decode_errors_total",
			Help: "Decode failures by protocol and error code.",
		},
		[]string{"protocol", "code"},
	)

	MessagesDecodedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netgauze_messages_decoded_total",
			Help: "Successfully decoded messages by protocol and type.",
		},
		[]string{"protocol", "type"},
	)

	SessionsEstablished = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netgauze_sessions_established",
			Help: "Established BGP sessions (0/1) by peer.",
		},
		[]string{"peer"},
	)

	SessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netgauze_session_transitions_total",
			Help: "FSM state transitions by peer and resulting state.",
		},
		[]string{"peer", "state"},
	)

	SessionTerminationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netgauze_session_terminations_total",
			Help: "BGP session terminations by peer and reason.",
		},
		[]string{"peer", "reason"},
	)

	TemplateCacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netgauze_flow_template_cache_size",
			Help: "Installed NetFlow v9/IPFIX templates by exporter.",
		},
		[]string{"exporter"},
	)

	FlowPacketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netgauze_flow_packets_total",
			Help: "NetFlow v9/IPFIX packets received by exporter and version.",
		},
		[]string{"exporter", "version"},
	)

	FlowDataRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netgauze_flow_data_records_total",
			Help: "Decoded flow data records by exporter.",
		},
		[]string{"exporter"},
	)

	FlowDecodeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netgauze_flow_decode_latency_seconds",
			Help:    "Time to decode one flow packet.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"version"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DecodeErrorsTotal,
			MessagesDecodedTotal,
			SessionsEstablished,
			SessionTransitionsTotal,
			SessionTerminationsTotal,
			TemplateCacheSize,
			FlowPacketsTotal,
			FlowDataRecordsTotal,
			FlowDecodeLatency,
		)
	})
}
