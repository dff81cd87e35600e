package mockserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the mock server's collectors
type Metrics struct {
	requests  *prometheus.CounterVec
	fragments prometheus.Counter
}

// NewMetrics creates the server collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mistral_mock_requests_total",
				Help: "Requests served by the mock API",
			},
			[]string{"method", "route", "status"},
		),
		fragments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mistral_mock_stream_fragments_total",
				Help: "SSE fragments written by the mock API",
			},
		),
	}

	reg.MustRegister(m.requests, m.fragments)
	return m
}
