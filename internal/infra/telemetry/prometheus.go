package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes forwarded invocations. A nil *PrometheusMetrics is a
// usable no-op, so callers never need to branch on whether observability is
// enabled.
type PrometheusMetrics struct {
	forwardDuration        *prometheus.HistogramVec
	forwardedCalls         *prometheus.CounterVec
	registeredCapabilities *prometheus.GaugeVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		forwardDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcprelay_forward_duration_seconds",
				Help:    "Duration of forwarded remote calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind", "outcome"},
		),
		forwardedCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcprelay_forwarded_calls_total",
				Help: "Total number of forwarded invocations",
			},
			[]string{"kind", "outcome"},
		),
		registeredCapabilities: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcprelay_registered_capabilities",
				Help: "Number of capabilities registered at startup",
			},
			[]string{"kind"},
		),
	}
}

func (p *PrometheusMetrics) ObserveForward(kind string, duration time.Duration, err error) {
	if p == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	p.forwardDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
	p.forwardedCalls.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusMetrics) SetRegisteredCapabilities(kind string, count int) {
	if p == nil {
		return
	}
	p.registeredCapabilities.WithLabelValues(kind).Set(float64(count))
}
