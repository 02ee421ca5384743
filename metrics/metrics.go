// Package metrics collects per-run Prometheus metrics and writes them in the
// node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithConstLabels adds labels attached to every metric (e.g. the run id).
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		for k, v := range labels {
			m.constLabels[k] = v
		}
	}
}

// WithRegistry sets the registry metrics are registered on.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Manager owns the metrics of one pipeline run. Every Manager registers on
// its own registry unless one is supplied, so runs never share state.
type Manager struct {
	namespace   string
	constLabels prometheus.Labels
	registry    *prometheus.Registry

	rowsLoaded     *prometheus.GaugeVec
	missingValues  *prometheus.GaugeVec
	stageDuration  *prometheus.GaugeVec
	encodedColumns prometheus.Gauge
	droppedColumns prometheus.Gauge
	treesFitted    prometheus.Counter
	rSquared       prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// NewManager creates a manager with its metrics registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:   "carprice",
		constLabels: prometheus.Labels{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.rowsLoaded = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Name:        "rows_loaded",
		Help:        "Rows read from each input file",
		ConstLabels: m.constLabels,
	}, []string{"split"})

	m.missingValues = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Name:        "missing_values",
		Help:        "Values missing after field normalization, per split and field",
		ConstLabels: m.constLabels,
	}, []string{"split", "field"})

	m.stageDuration = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Name:        "stage_duration_seconds",
		Help:        "Wall time spent in each pipeline stage",
		ConstLabels: m.constLabels,
	}, []string{"stage"})

	m.encodedColumns = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Name:        "encoded_columns",
		Help:        "Predictor columns kept after encoding",
		ConstLabels: m.constLabels,
	})

	m.droppedColumns = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Name:        "dropped_columns",
		Help:        "Encoded columns removed as zero-variance",
		ConstLabels: m.constLabels,
	})

	m.treesFitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Name:        "trees_fitted_total",
		Help:        "Regression trees fitted",
		ConstLabels: m.constLabels,
	})

	m.rSquared = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Name:        "r_squared",
		Help:        "In-sample coefficient of determination on log price",
		ConstLabels: m.constLabels,
	})

	m.lastSuccess = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Name:        "last_success_timestamp_seconds",
		Help:        "Unix time the run finished successfully",
		ConstLabels: m.constLabels,
	})
}

// Registry returns the registry backing this manager.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// RecordRows records how many rows a split loaded.
func (m *Manager) RecordRows(split string, n int) {
	m.rowsLoaded.WithLabelValues(split).Set(float64(n))
}

// RecordMissing records per-field missing counts for a split.
func (m *Manager) RecordMissing(split string, counts map[string]int) {
	for field, n := range counts {
		m.missingValues.WithLabelValues(split, field).Set(float64(n))
	}
}

// ObserveStage records the duration of a named stage.
func (m *Manager) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// RecordColumns records the encoded and dropped column counts.
func (m *Manager) RecordColumns(kept, dropped int) {
	m.encodedColumns.Set(float64(kept))
	m.droppedColumns.Set(float64(dropped))
}

// IncTrees counts one fitted tree. Safe for concurrent use.
func (m *Manager) IncTrees() { m.treesFitted.Inc() }

// RecordRSquared records the fit-quality score.
func (m *Manager) RecordRSquared(r2 float64) { m.rSquared.Set(r2) }

// MarkSuccess stamps the successful completion time.
func (m *Manager) MarkSuccess(t time.Time) {
	m.lastSuccess.Set(float64(t.UnixNano()) / 1e9)
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics %s: %w", path, err)
	}
	return nil
}
