package observability

import (
	"log/slog"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tendril"

// Metrics holds the pipeline collectors.
type Metrics struct {
	Parses      prometheus.Counter
	GuardTrips  prometheus.Counter
	ParseNodes  prometheus.Histogram
	Executions  *prometheus.CounterVec
	ExecuteTime *prometheus.HistogramVec
	Reconciles  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Parses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parses_total",
			Help:      "Total number of source texts parsed",
		}),
		GuardTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_guard_trips_total",
			Help:      "Times a rule failed to advance the parser",
		}),
		ParseNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_nodes",
			Help:      "Number of parse tree nodes per parse",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "macro_executions_total",
			Help:      "Macro executions by macro and result",
		}, []string{"macro", "result"}),
		ExecuteTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "macro_execute_seconds",
			Help:      "Duration of macro executions, including their output",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"macro"}),
		Reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_nodes_total",
			Help:      "Reconciler decisions by outcome",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.Parses, m.GuardTrips, m.ParseNodes, m.Executions, m.ExecuteTime, m.Reconciles} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnParse: func(e *domain.ParseEvent) {
			m.Parses.Inc()
			m.GuardTrips.Add(float64(e.Guarded))
			m.ParseNodes.Observe(float64(e.Nodes))
		},
		OnExecute: func(e *domain.ExecuteEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			m.Executions.WithLabelValues(e.Macro, result).Inc()
			m.ExecuteTime.WithLabelValues(e.Macro).Observe(e.Duration.Seconds())
		},
		OnReconcile: func(e *domain.ReconcileEvent) {
			m.Reconciles.WithLabelValues(string(e.Outcome)).Inc()
		},
	}
}

// LogHooks returns lifecycle hooks writing every event to logger at debug level.
// Failed executions are logged at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnParse: func(e *domain.ParseEvent) {
			logger.Debug("parse", "length", e.Length, "nodes", e.Nodes, "guarded", e.Guarded, "duration", e.Duration)
		},
		OnExecute: func(e *domain.ExecuteEvent) {
			if e.Err != nil {
				logger.Warn("macro failed", "title", e.Title, "macro", e.Macro, "error", e.Err)
				return
			}
			logger.Debug("execute", "title", e.Title, "macro", e.Macro, "duration", e.Duration)
		},
		OnReconcile: func(e *domain.ReconcileEvent) {
			logger.Debug("reconcile", "title", e.Title, "macro", e.Macro, "outcome", e.Outcome)
		},
	}
}
