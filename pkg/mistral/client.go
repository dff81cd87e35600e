package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the public Mistral API
	DefaultEndpoint = "https://api.mistral.ai"

	// APIKeyEnv is read when Config.APIKey is empty
	APIKeyEnv = "MISTRAL_API_KEY"

	pathModels          = "v1/models"
	pathEmbeddings      = "v1/embeddings"
	pathChatCompletions = "v1/chat/completions"
)

// HTTPClient implements the Client interface using HTTP requests.
// It holds no mutable state and is safe for concurrent use.
type HTTPClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *log.Logger
	metrics    *Metrics
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)

// Config holds configuration for the Mistral client
type Config struct {
	APIKey   string        // Default: $MISTRAL_API_KEY
	Endpoint string        // Default: https://api.mistral.ai
	Timeout  time.Duration // Default: none; applies to unary calls only

	HTTPClient *http.Client // Default: pooled client without timeout
	Logger     *log.Logger  // Default: log.Default()
	Metrics    *Metrics     // Optional
}

// NewHTTPClient creates a new Mistral HTTP client
func NewHTTPClient(config Config) *HTTPClient {
	if config.APIKey == "" {
		config.APIKey = os.Getenv(APIKeyEnv)
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		// No client timeout; streams are bounded by the caller's context
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
			},
		}
	}

	return &HTTPClient{
		apiKey:     config.APIKey,
		endpoint:   strings.TrimRight(config.Endpoint, "/"),
		httpClient: httpClient,
		timeout:    config.Timeout,
		logger:     config.Logger,
		metrics:    config.Metrics,
	}
}

// ListModels implements Client.ListModels
func (c *HTTPClient) ListModels(ctx context.Context) (*ListResponse, error) {
	var list ListResponse
	if err := c.fetchAPI(ctx, opListModels, http.MethodGet, pathModels, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Embeddings implements Client.Embeddings. Only the embedding model is
// accepted; anything else fails before a request is sent.
func (c *HTTPClient) Embeddings(ctx context.Context, req EmbeddingsRequest) (*EmbeddingsResponse, error) {
	if req.Model != ModelEmbed {
		return nil, fmt.Errorf("%w: use %q for embeddings requests, got %q", ErrInvalidModel, ModelEmbed, req.Model)
	}

	var embeddings EmbeddingsResponse
	if err := c.fetchAPI(ctx, opEmbeddings, http.MethodPost, pathEmbeddings, req, &embeddings); err != nil {
		return nil, err
	}
	return &embeddings, nil
}

// Chat implements Client.Chat. A request with the stream flag set fails
// before a request is sent; use ChatStream instead.
func (c *HTTPClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Stream != nil && *req.Stream {
		return nil, fmt.Errorf("%w: use ChatStream for streaming requests", ErrInvalidMode)
	}

	var chatResp ChatResponse
	if err := c.fetchAPI(ctx, opChat, http.MethodPost, pathChatCompletions, req, &chatResp); err != nil {
		return nil, err
	}
	return &chatResp, nil
}

// ChatStream implements Client.ChatStream. An unset stream flag defaults to
// true on a copy of req; an explicit false fails before a request is sent.
//
// The returned stream must be drained or closed. Config.Timeout is not
// applied here; cancel ctx to bound the stream's lifetime.
func (c *HTTPClient) ChatStream(ctx context.Context, req ChatRequest) (*Stream[ChatResponse], error) {
	if req.Stream == nil {
		req = req.WithStream(true)
	}
	if !*req.Stream {
		return nil, fmt.Errorf("%w: use Chat for non-streaming requests", ErrInvalidMode)
	}

	resp, err := c.send(ctx, opChatStream, http.MethodPost, pathChatCompletions, req)
	if err != nil {
		return nil, err
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrNoResponseBody
	}

	stream := NewStream[ChatResponse](resp.Body)
	stream.onFragment = c.metrics.fragment
	return stream, nil
}

// fetchAPI performs a unary request and decodes the JSON body into out
func (c *HTTPClient) fetchAPI(ctx context.Context, operation, method, path string, request, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.send(ctx, operation, method, path, request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send issues one request with the standard headers. A non-2xx status is
// logged and returned as *APIError with the body already closed.
func (c *HTTPClient) send(ctx context.Context, operation, method, path string, request any) (*http.Response, error) {
	var body io.Reader
	if request != nil {
		payload, err := json.Marshal(request)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.endpoint+"/"+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observe(operation, 0, start)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	c.metrics.observe(operation, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("[ERROR] HTTP error! Status: %d", resp.StatusCode)
		apiErr := newAPIError(resp)
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, apiErr
	}

	return resp, nil
}
