// Package prometheus implements metrics.AMMetrics on top of
// client_golang, registering its constructor with pkg/rlc/metrics via an
// indirection function to avoid an import cycle (metrics -> prometheus
// would otherwise need prometheus -> metrics for the interface type).
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/rlcam/pkg/rlc/metrics"
)

type amMetrics struct {
	txWindowSize       *prometheus.GaugeVec
	bufferStateBytes   *prometheus.GaugeVec
	retransmissions    *prometheus.CounterVec
	maxRetx            *prometheus.CounterVec
	statusPDUs         *prometheus.CounterVec
	statusNackCount    *prometheus.HistogramVec
	reassemblyLostSDUs *prometheus.CounterVec
	pollLatency        *prometheus.HistogramVec
}

func init() {
	metrics.RegisterAMMetricsConstructor(newAMMetrics)
}

func newAMMetrics() metrics.AMMetrics {
	reg := metrics.GetRegistry()

	return &amMetrics{
		txWindowSize: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rlc_am_tx_window_size",
				Help: "Number of PDUs currently held in the Tx window",
			},
			[]string{"lcid"},
		),
		bufferStateBytes: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rlc_am_buffer_state_bytes",
				Help: "Estimated bytes pending transmission (status, retx, new data)",
			},
			[]string{"lcid"},
		),
		retransmissions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlc_am_retransmissions_total",
				Help: "Total number of PDU (re)transmissions, including segmented retransmissions",
			},
			[]string{"lcid"},
		),
		maxRetx: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlc_am_max_retx_total",
				Help: "Total number of SNs that reached max_retx_threshold",
			},
			[]string{"lcid"},
		),
		statusPDUs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlc_am_status_pdus_total",
				Help: "Total number of STATUS PDUs produced",
			},
			[]string{"lcid"},
		),
		statusNackCount: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rlc_am_status_nack_count",
				Help:    "Distribution of NACK list length per STATUS PDU",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
			[]string{"lcid"},
		),
		reassemblyLostSDUs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rlc_am_reassembly_lost_sdus_total",
				Help: "Total number of SDUs discarded because their start was lost",
			},
			[]string{"lcid"},
		),
		pollLatency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rlc_am_poll_to_status_latency_ms",
				Help:    "Time from sending a poll to receiving the responding STATUS",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"lcid"},
		),
	}
}

func (m *amMetrics) SetTxWindowSize(lcid string, size int) {
	m.txWindowSize.WithLabelValues(lcid).Set(float64(size))
}

func (m *amMetrics) SetBufferStateBytes(lcid string, bytes uint64) {
	m.bufferStateBytes.WithLabelValues(lcid).Set(float64(bytes))
}

func (m *amMetrics) ObserveRetransmission(lcid string) {
	m.retransmissions.WithLabelValues(lcid).Inc()
}

func (m *amMetrics) ObserveMaxRetx(lcid string) {
	m.maxRetx.WithLabelValues(lcid).Inc()
}

func (m *amMetrics) ObserveStatusPDU(lcid string, nackCount int) {
	m.statusPDUs.WithLabelValues(lcid).Inc()
	m.statusNackCount.WithLabelValues(lcid).Observe(float64(nackCount))
}

func (m *amMetrics) ObserveReassemblyLostSDU(lcid string) {
	m.reassemblyLostSDUs.WithLabelValues(lcid).Inc()
}

func (m *amMetrics) ObservePollLatency(lcid string, d time.Duration) {
	m.pollLatency.WithLabelValues(lcid).Observe(float64(d.Milliseconds()))
}
