package pitfeat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records per-stage pipeline measurements.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageRows     *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics with reg. A nil reg leaves them
// unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pitfeat_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"stage"}),
		stageRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pitfeat_stage_rows_total",
			Help: "Rows produced by pipeline stages",
		}, []string{"stage"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pitfeat_stage_failures_total",
			Help: "Failed pipeline stage runs",
		}, []string{"stage"}),
	}
}

func (m *Metrics) observe(stage string, seconds float64, rows int, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
	if err != nil {
		m.stageFailures.WithLabelValues(stage).Inc()
		return
	}
	m.stageRows.WithLabelValues(stage).Add(float64(rows))
}
