// Package metrics defines the observability surface the AM entity reports
// through, following the teacher's split: the interface lives here next
// to its consumer, the concrete Prometheus implementation lives in the
// metrics/prometheus subpackage, and a package-level indirection function
// avoids an import cycle between them. A nil Metrics is valid and every
// call site treats it as a no-op, so entities created without metrics
// carry zero overhead.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AMMetrics is the metrics surface an am.Entity reports through.
type AMMetrics interface {
	SetTxWindowSize(lcid string, size int)
	SetBufferStateBytes(lcid string, bytes uint64)
	ObserveRetransmission(lcid string)
	ObserveMaxRetx(lcid string)
	ObserveStatusPDU(lcid string, nackCount int)
	ObserveReassemblyLostSDU(lcid string)
	ObservePollLatency(lcid string, d time.Duration)
}

// newPrometheusAMMetrics is populated by pkg/rlc/metrics/prometheus's
// init(), mirroring the teacher's RegisterXConstructor indirection.
var newPrometheusAMMetrics func() AMMetrics

// RegisterAMMetricsConstructor is called by the prometheus subpackage to
// register its constructor without this package importing it directly.
func RegisterAMMetricsConstructor(ctor func() AMMetrics) {
	newPrometheusAMMetrics = ctor
}

var (
	enabled  bool
	registry = prometheus.NewRegistry()
)

// Enable turns on metrics collection globally. Call before NewAMMetrics.
func Enable() { enabled = true }

// IsEnabled reports whether metrics collection was enabled.
func IsEnabled() bool { return enabled }

// GetRegistry returns the registry every Prometheus collector in this
// module registers against, so a single /metrics handler could serve
// them all if one were added.
func GetRegistry() *prometheus.Registry { return registry }

// NewAMMetrics returns the registered Prometheus-backed implementation,
// or nil if metrics are disabled or no implementation was registered
// (e.g. the prometheus subpackage was never imported).
func NewAMMetrics() AMMetrics {
	if !enabled || newPrometheusAMMetrics == nil {
		return nil
	}
	return newPrometheusAMMetrics()
}

// There is no no-op implementation: callers treat a nil AMMetrics as a
// no-op by checking it for nil before every call (see am.Entity).
