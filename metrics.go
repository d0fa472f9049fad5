package settings

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a Manager. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	saves         *prometheus.CounterVec
	fieldsWritten *prometheus.CounterVec
	fieldsSkipped *prometheus.CounterVec
	renders       *prometheus.CounterVec
	saveDuration  *prometheus.HistogramVec
}

// NewMetrics builds collectors under namespace (default "settings").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "settings"
	}
	return &Metrics{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "saves_total",
			Help:      "Settings saves by page and status",
		}, []string{"page", "status"}),
		fieldsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "fields_written_total",
			Help:      "Fields staged for write during saves",
		}, []string{"page"}),
		fieldsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "fields_skipped_total",
			Help:      "Fields skipped during saves by reason",
		}, []string{"page", "reason"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "renders_total",
			Help:      "Handled settings requests by outcome",
		}, []string{"page", "outcome"}),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "save_duration_seconds",
			Help:      "Time spent persisting a settings section",
			Buckets:   prometheus.DefBuckets,
		}, []string{"page"}),
	}
}

// Register adds every collector to reg. Collectors already registered are
// tolerated.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil || reg == nil {
		return nil
	}
	for _, collector := range []prometheus.Collector{m.saves, m.fieldsWritten, m.fieldsSkipped, m.renders, m.saveDuration} {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Metrics) observeSave(page string, result SaveResult, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.saves.WithLabelValues(page, status).Inc()
	m.saveDuration.WithLabelValues(page).Observe(elapsed.Seconds())
	m.fieldsWritten.WithLabelValues(page).Add(float64(len(result.Written)))
	for _, skipped := range result.Skipped {
		m.fieldsSkipped.WithLabelValues(page, string(skipped.Reason)).Inc()
	}
}

func (m *Metrics) observeRequest(page, outcome string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(page, outcome).Inc()
}

// WithMetrics records save and request metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = m
	}
}
