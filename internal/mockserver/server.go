// Package mockserver is a deterministic local stand-in for the Mistral
// API. It serves the model list, embeddings and chat completions (unary
// and SSE) so the SDK and CLI can be exercised offline.
package mockserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the mock server
type Options struct {
	// APIKey is the only accepted bearer token. Empty accepts any token.
	APIKey string

	// RequestsPerSecond and Burst bound each API key. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// FragmentDelay is slept between streamed fragments
	FragmentDelay time.Duration

	// Registry receives the server metrics. Default: a fresh registry.
	Registry *prometheus.Registry
}

// New builds the mock API router
func New(opts Options) *gin.Engine {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	metrics := NewMetrics(opts.Registry)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(Instrument(metrics))
	router.Use(CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))

	h := &handler{
		fragmentDelay: opts.FragmentDelay,
		metrics:       metrics,
	}

	v1 := router.Group("/v1")
	v1.Use(BearerAuth(opts.APIKey))
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		v1.Use(PerKey(opts.RequestsPerSecond, burst))
	}
	{
		v1.GET("/models", h.ListModels)
		v1.POST("/embeddings", h.Embeddings)
		v1.POST("/chat/completions", h.ChatCompletions)
	}

	return router
}
