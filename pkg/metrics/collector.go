// Package metrics exports lazyconf evaluation events as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goliatone/go-lazyconf"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeCycle = "cycle"
)

// Option configures a Collector.
type Option func(*config)

type config struct {
	namespace string
	buckets   []float64
}

// WithNamespace prefixes metric names. The default is "lazyconf".
func WithNamespace(namespace string) Option {
	return func(cfg *config) {
		cfg.namespace = namespace
	}
}

// WithBuckets overrides the duration histogram buckets, in seconds.
func WithBuckets(buckets ...float64) Option {
	return func(cfg *config) {
		if len(buckets) > 0 {
			cfg.buckets = buckets
		}
	}
}

// Collector is a lazyconf.EvaluationLogger that counts evaluations by engine
// and outcome and records their duration.
type Collector struct {
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewCollector registers its metrics with reg. A nil reg leaves them
// unregistered.
func NewCollector(reg prometheus.Registerer, opts ...Option) *Collector {
	cfg := config{
		namespace: "lazyconf",
		buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	factory := promauto.With(reg)
	return &Collector{
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "slot_evaluations_total",
			Help:      "Attribute factory and expression runs by engine and outcome",
		}, []string{"engine", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "slot_evaluation_seconds",
			Help:      "Time spent in attribute factories and expressions",
			Buckets:   cfg.buckets,
		}, []string{"engine"}),
	}
}

// LogEvaluation implements lazyconf.EvaluationLogger.
func (c *Collector) LogEvaluation(event lazyconf.EvaluationEvent) {
	if c == nil {
		return
	}
	engine := event.Engine
	if engine == "" {
		engine = "unknown"
	}
	c.evaluations.WithLabelValues(engine, outcome(event.Err)).Inc()
	c.duration.WithLabelValues(engine).Observe(event.Duration.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, lazyconf.ErrCyclicEvaluation):
		return OutcomeCycle
	default:
		return OutcomeError
	}
}
