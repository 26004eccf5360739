package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockberries/blockvault/blockstore"
)

// PrometheusMetrics implements blockstore.Metrics using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	writes            *prometheus.CounterVec // labels: type, result (ok|dedup|conflict|error)
	writeBytes        *prometheus.HistogramVec
	reads             *prometheus.CounterVec // labels: type, result (ok|error)
	readBytes         *prometheus.HistogramVec
	prunes            *prometheus.CounterVec // labels: type
	segmentsReclaimed *prometheus.CounterVec // labels: type

	recoveryRuns            prometheus.Counter
	recoverySegmentsScanned prometheus.Counter
	recoveryRecordsIndexed  prometheus.Counter
	recoveryTornTails       prometheus.Counter

	openSegments prometheus.Gauge
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance under
// namespace.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,

		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "writes_total",
				Help:      "Total number of write attempts, by payload type and result",
			},
			[]string{"type", "result"},
		),
		writeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "write_bytes",
				Help:      "Size of successfully written payloads",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 12),
			},
			[]string{"type"},
		),
		reads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reads_total",
				Help:      "Total number of read attempts, by payload type and result",
			},
			[]string{"type", "result"},
		),
		readBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "read_bytes",
				Help:      "Size of successfully read payloads",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 12),
			},
			[]string{"type"},
		),
		prunes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prunes_total",
				Help:      "Total number of successful prunes, by payload type",
			},
			[]string{"type"},
		),
		segmentsReclaimed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "segments_reclaimed_total",
				Help:      "Total number of segment files unlinked after their last live payload was pruned",
			},
			[]string{"type"},
		),
		recoveryRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_runs_total",
				Help:      "Total number of recovery scans performed on open",
			},
		),
		recoverySegmentsScanned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_segments_scanned_total",
				Help:      "Total number of segment files scanned during recovery",
			},
		),
		recoveryRecordsIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_records_indexed_total",
				Help:      "Total number of records re-indexed during recovery",
			},
		),
		recoveryTornTails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recovery_torn_tails_total",
				Help:      "Total number of torn tails truncated during recovery",
			},
		),
		openSegments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "open_segment_handles",
				Help:      "Current number of open segment file descriptors",
			},
		),
	}

	m.registry.MustRegister(
		m.writes,
		m.writeBytes,
		m.reads,
		m.readBytes,
		m.prunes,
		m.segmentsReclaimed,
		m.recoveryRuns,
		m.recoverySegmentsScanned,
		m.recoveryRecordsIndexed,
		m.recoveryTornTails,
		m.openSegments,
	)

	return m
}

func (m *PrometheusMetrics) WriteOK(t blockstore.PayloadType, bytes int) {
	m.writes.WithLabelValues(t.String(), "ok").Inc()
	m.writeBytes.WithLabelValues(t.String()).Observe(float64(bytes))
}

func (m *PrometheusMetrics) WriteDedup(t blockstore.PayloadType) {
	m.writes.WithLabelValues(t.String(), "dedup").Inc()
}

func (m *PrometheusMetrics) WriteConflict(t blockstore.PayloadType) {
	m.writes.WithLabelValues(t.String(), "conflict").Inc()
}

func (m *PrometheusMetrics) WriteError(t blockstore.PayloadType) {
	m.writes.WithLabelValues(t.String(), "error").Inc()
}

func (m *PrometheusMetrics) ReadOK(t blockstore.PayloadType, bytes int) {
	m.reads.WithLabelValues(t.String(), "ok").Inc()
	m.readBytes.WithLabelValues(t.String()).Observe(float64(bytes))
}

func (m *PrometheusMetrics) ReadError(t blockstore.PayloadType) {
	m.reads.WithLabelValues(t.String(), "error").Inc()
}

func (m *PrometheusMetrics) PruneOK(t blockstore.PayloadType) {
	m.prunes.WithLabelValues(t.String()).Inc()
}

func (m *PrometheusMetrics) SegmentReclaimed(t blockstore.PayloadType) {
	m.segmentsReclaimed.WithLabelValues(t.String()).Inc()
}

func (m *PrometheusMetrics) RecoveryRun(stats blockstore.RecoveryStats) {
	m.recoveryRuns.Inc()
	m.recoverySegmentsScanned.Add(float64(stats.SegmentsScanned))
	m.recoveryRecordsIndexed.Add(float64(stats.RecordsIndexed))
	m.recoveryTornTails.Add(float64(stats.TornTails))
}

func (m *PrometheusMetrics) SetOpenSegments(count int) {
	m.openSegments.Set(float64(count))
}

// Handler returns an HTTP handler for serving metrics.
func (m *PrometheusMetrics) Handler() any {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
