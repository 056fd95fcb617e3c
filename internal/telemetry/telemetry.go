// Package telemetry exposes the Prometheus metrics emitted while
// building, parsing, and decoding H4MK containers.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter, histogram, and gauge this package emits.
type Metrics struct {
	buildsTotal     *prometheus.CounterVec
	buildDuration   prometheus.Histogram
	parsesTotal     *prometheus.CounterVec
	parseErrors     *prometheus.CounterVec
	decodeChainLookupDuration *prometheus.HistogramVec
	decodeChainBlocks         prometheus.Histogram
	cipherRejections *prometheus.CounterVec
	activeCiphers    prometheus.Gauge
}

// NewMetrics registers a default instance against the global Prometheus
// registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers against a caller-supplied registerer,
// which tests use to avoid duplicate-registration panics across cases.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h4mk_container_builds_total",
				Help: "Total number of H4MK containers built",
			},
			[]string{"result"},
		),
		buildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "h4mk_container_build_duration_seconds",
				Help:    "Container build wall-clock duration",
				Buckets: prometheus.DefBuckets,
			},
		),
		parsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h4mk_container_parses_total",
				Help: "Total number of H4MK containers parsed",
			},
			[]string{"result"},
		),
		parseErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h4mk_container_parse_errors_total",
				Help: "Container parse failures by error kind",
			},
			[]string{"kind"},
		),
		decodeChainLookupDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "h4mk_decode_chain_lookup_duration_seconds",
				Help:    "Time spent resolving a decode chain for one (track, pts) query",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"track_id"},
		),
		decodeChainBlocks: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "h4mk_decode_chain_blocks",
				Help:    "Number of CORE blocks in a resolved decode chain",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
			},
		),
		cipherRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h4mk_cipher_rejections_total",
				Help: "Decrypt rejections by error kind (replay, too-far, transcript mismatch, auth)",
			},
			[]string{"kind"},
		),
		activeCiphers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "h4mk_active_cipher_states",
				Help: "Number of live ratchet.State instances held by this process",
			},
		),
	}
}

// RecordBuild records a container build attempt and its duration. A nil
// receiver is a no-op, so callers along the container.Build path can hold
// an optional *Metrics without branching on it.
func (m *Metrics) RecordBuild(err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.buildsTotal.WithLabelValues(result).Inc()
	m.buildDuration.Observe(duration.Seconds())
}

// RecordParse records a container parse attempt. errKind is the
// h4errors.Kind string for a failed parse, or "" on success.
func (m *Metrics) RecordParse(errKind string) {
	if m == nil {
		return
	}
	if errKind == "" {
		m.parsesTotal.WithLabelValues("ok").Inc()
		return
	}
	m.parsesTotal.WithLabelValues("error").Inc()
	m.parseErrors.WithLabelValues(errKind).Inc()
}

// RecordDecodeChainLookup records the latency and size of one resolved
// decode chain.
func (m *Metrics) RecordDecodeChainLookup(trackID string, duration time.Duration, blockCount int) {
	if m == nil {
		return
	}
	m.decodeChainLookupDuration.WithLabelValues(trackID).Observe(duration.Seconds())
	m.decodeChainBlocks.Observe(float64(blockCount))
}

// RecordCipherRejection records one rejected Decrypt call by error kind
// (an h4errors.Kind value such as "Replay", "TooFar", "TranscriptMismatch"
// or "Auth").
func (m *Metrics) RecordCipherRejection(kind string) {
	if m == nil {
		return
	}
	m.cipherRejections.WithLabelValues(kind).Inc()
}

// SetActiveCiphers sets the number of live cipher states tracked by the
// caller.
func (m *Metrics) SetActiveCiphers(n int) {
	if m == nil {
		return
	}
	m.activeCiphers.Set(float64(n))
}

// Handler returns promhttp.Handler(), which serves the default Prometheus
// registry; metrics registered on another registry through
// NewMetricsWithRegistry are not exposed by it.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
