package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics counts tool invocations and their durations by tool and outcome.
type PrometheusMetrics struct {
	gatherer    prometheus.Gatherer
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the invocation collectors on a fresh registry when reg is nil.
func NewPrometheusMetrics(reg *prometheus.Registry) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		gatherer: reg,
		invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recruitcrm_mcp_tool_invocations_total",
				Help: "Total number of tool invocations by outcome",
			},
			[]string{"tool", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recruitcrm_mcp_tool_duration_seconds",
				Help:    "Duration of tool invocations in seconds, including the CRM call",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tool", "outcome"},
		),
	}
}

// ObserveInvocation increments the invocation counter and records the duration in seconds.
func (p *PrometheusMetrics) ObserveInvocation(tool, outcome string, duration time.Duration) {
	p.invocations.WithLabelValues(tool, outcome).Inc()
	p.duration.WithLabelValues(tool, outcome).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

var _ Metrics = (*PrometheusMetrics)(nil)
