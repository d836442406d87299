package unbag

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record results.
const (
	resultDecoded      = "decoded"
	resultUnrecognized = "unrecognized"
	resultFiltered     = "filtered"
	resultError        = "error"
)

// Metrics holds the iterator's Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	recordsTotal   *prometheus.CounterVec
	chunksTotal    prometheus.Counter
	chunkRecords   prometheus.Histogram
	decodeDuration prometheus.Histogram
}

// NewMetrics creates the iterator metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		recordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unbag_records_total",
				Help: "Total number of bag records processed, by result",
			},
			[]string{"result"},
		),

		chunksTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "unbag_chunks_total",
				Help: "Total number of chunks loaded",
			},
		),

		chunkRecords: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "unbag_chunk_records",
				Help:    "Number of records per loaded chunk",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		decodeDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "unbag_decode_duration_seconds",
				Help:    "Record decode duration in seconds",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
		),
	}
}

func (m *Metrics) recordChunk(records int) {
	if m == nil {
		return
	}
	m.chunksTotal.Inc()
	m.chunkRecords.Observe(float64(records))
}

func (m *Metrics) recordResult(result string) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) recordDecode(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.recordsTotal.WithLabelValues(result).Inc()
	m.decodeDuration.Observe(d.Seconds())
}
