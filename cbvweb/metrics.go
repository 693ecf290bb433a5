package cbvweb

import (
	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbvproxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics describe the work done by a toolbar. A nil *Metrics is valid, and
// records nothing.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CallsPerRequest prometheus.Histogram
	Calls           *prometheus.CounterVec
	Panels          *prometheus.CounterVec
}

// NewMetrics registers toolbar metrics with the registerer, which is typically
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cbvtrc_requests_total",
			Help: "Requests seen by the toolbar, by result",
		}, []string{"result"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cbvtrc_request_duration_seconds",
			Help:    "Duration of traced requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"route"}),

		CallsPerRequest: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cbvtrc_request_calls",
			Help:    "Logged view method calls per traced request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cbvtrc_calls_total",
			Help: "Intercepted view method calls, by result",
		}, []string{"result"}),

		Panels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cbvtrc_panels_total",
			Help: "Panel insertion attempts, by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) skipped(reason string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(reason).Inc()
}

func (m *Metrics) traced(md *cbvtrc.RequestMetadata, stats cbvproxy.Stats) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues("traced").Inc()
	m.RequestDuration.WithLabelValues(md.RouteName).Observe(md.Duration.Seconds())
	m.CallsPerRequest.Observe(float64(stats.Logged))
	m.Calls.WithLabelValues("logged").Add(float64(stats.Logged - stats.Failed))
	m.Calls.WithLabelValues("failed").Add(float64(stats.Failed))
	m.Calls.WithLabelValues("skipped").Add(float64(stats.Skipped))
}

func (m *Metrics) inserted(result string) {
	if m == nil {
		return
	}
	m.Panels.WithLabelValues(result).Inc()
}
