package mistral

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels used on client metrics
const (
	opListModels = "list_models"
	opEmbeddings = "embeddings"
	opChat       = "chat"
	opChatStream = "chat_stream"
)

// latencyBuckets covers LLM round trips from 100ms to 2 minutes
var latencyBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Metrics records client-side request metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	fragments prometheus.Counter
}

// NewMetrics creates the client collectors and registers them with reg.
// Passing nil registers with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mistral_client_requests_total",
				Help: "Requests sent to the Mistral API",
			},
			[]string{"operation", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mistral_client_request_duration_seconds",
				Help:    "Time until response headers were received",
				Buckets: latencyBuckets,
			},
			[]string{"operation"},
		),
		fragments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mistral_client_stream_fragments_total",
				Help: "Streamed chat fragments decoded",
			},
		),
	}

	reg.MustRegister(m.requests, m.latency, m.fragments)
	return m
}

// observe records one request. status is the HTTP status code, or 0 when
// the request never got a response.
func (m *Metrics) observe(operation string, status int, start time.Time) {
	if m == nil {
		return
	}

	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(operation, label).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) fragment() {
	if m == nil {
		return
	}
	m.fragments.Inc()
}
