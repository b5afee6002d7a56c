package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the prometheus collectors anchr exposes. Field set is
// trimmed from the teacher's fuller catalogue (which also covers FEC and
// AEAD crypto, neither of which exist in this protocol) down to transfer,
// connection and auth categories.
type Metrics struct {
	ConnectionsTotal   *prometheus.CounterVec
	ConnectionsActive  prometheus.Gauge
	AuthAttemptsTotal  *prometheus.CounterVec
	UploadsTotal       *prometheus.CounterVec
	UploadBytesTotal   prometheus.Counter
	ChunksWrittenTotal *prometheus.CounterVec
	UploadDuration     prometheus.Histogram
}

// NewMetrics registers and returns the anchr collector set against the
// default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchr",
			Subsystem: "connection",
			Name:      "total",
			Help:      "Total QUIC connections accepted, by outcome.",
		}, []string{"outcome"}),
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "anchr",
			Subsystem: "connection",
			Name:      "active",
			Help:      "Currently open QUIC connections.",
		}),
		AuthAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchr",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Auth handshake attempts, by result.",
		}, []string{"result"}),
		UploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchr",
			Subsystem: "upload",
			Name:      "total",
			Help:      "Uploads finalized, by outcome.",
		}, []string{"outcome"}),
		UploadBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "anchr",
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Total bytes written to chunk storage.",
		}),
		ChunksWrittenTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchr",
			Subsystem: "upload",
			Name:      "chunks_total",
			Help:      "Chunks skipped on inquiry or stored from chunk data, by outcome.",
		}, []string{"outcome"}),
		UploadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "anchr",
			Subsystem: "upload",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of the finalize step (assembly and hash check).",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
