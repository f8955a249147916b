package migration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rowmigrate"

// Metrics 迁移运行指标，nil 值可安全使用
type Metrics struct {
	records       *prometheus.CounterVec
	batches       *prometheus.CounterVec
	runs          *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	inFlight      *prometheus.GaugeVec
}

// NewMetrics 创建指标并注册到 reg，reg 为 nil 时不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "migration",
			Name:      "records_processed_total",
			Help:      "Number of records updated by data migrations.",
		}, []string{"migration"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "migration",
			Name:      "batches_total",
			Help:      "Number of batches processed by data migrations.",
		}, []string{"migration", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "migration",
			Name:      "runs_total",
			Help:      "Number of finished migration runs.",
		}, []string{"migration", "outcome"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "migration",
			Name:      "batch_duration_seconds",
			Help:      "Time spent writing one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"migration"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "migration",
			Name:      "running",
			Help:      "Whether a migration run is currently in progress.",
		}, []string{"migration"}),
	}
	if reg != nil {
		reg.MustRegister(m.records, m.batches, m.runs, m.batchDuration, m.inFlight)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) observeBatch(name string, n int, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(name, outcome(err)).Inc()
	m.batchDuration.WithLabelValues(name).Observe(took.Seconds())
	if err == nil {
		m.records.WithLabelValues(name).Add(float64(n))
	}
}

func (m *Metrics) runStarted(name string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(name).Set(1)
}

func (m *Metrics) runFinished(name string, err error) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(name).Set(0)
	m.runs.WithLabelValues(name, outcome(err)).Inc()
}
