package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a container of metrics for one execution engine instance.
type Metrics struct {
	// registry to collect metrics as a unit.
	reg *prometheus.Registry

	batchesTotal *prometheus.CounterVec
	rowsTotal    *prometheus.CounterVec

	rowsFilteredTotal prometheus.Counter
}

// NewMetrics creates a new metrics container.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	return &Metrics{
		reg: reg,

		batchesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "drift_engine_executor_batches_total",
			Help: "Total number of batches emitted, by operator",
		}, []string{"operator"}),
		rowsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "drift_engine_executor_rows_total",
			Help: "Total number of rows emitted, by operator",
		}, []string{"operator"}),

		rowsFilteredTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "drift_engine_executor_rows_filtered_total",
			Help: "Total number of rows discarded by filter operators",
		}),
	}
}

// Register registers metrics to report to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error { return reg.Register(m.reg) }

// Unregister unregisters metrics from the provided Registerer.
func (m *Metrics) Unregister(reg prometheus.Registerer) { reg.Unregister(m.reg) }

// observeBatch records one emitted batch. Safe to call on a nil receiver.
func (m *Metrics) observeBatch(operator string, rows int64) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(operator).Inc()
	m.rowsTotal.WithLabelValues(operator).Add(float64(rows))
}

// observeFiltered records rows discarded by a filter. Safe to call on a nil
// receiver.
func (m *Metrics) observeFiltered(rows int64) {
	if m == nil {
		return
	}
	m.rowsFilteredTotal.Add(float64(rows))
}
