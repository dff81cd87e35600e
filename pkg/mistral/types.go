package mistral

import (
	"context"
	"encoding/json"
)

// Model identifiers accepted by the Mistral API
const (
	ModelTiny   = "mistral-tiny"
	ModelSmall  = "mistral-small"
	ModelMedium = "mistral-medium"
	ModelEmbed  = "mistral-embed"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reasons reported on a choice
const (
	FinishReasonStop   = "stop"
	FinishReasonLength = "length"
)

// ChatMessage represents a message in the conversation
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// ChatRequest represents a request to the chat completions endpoint.
// Optional sampling fields are pointers so an unset value is omitted
// rather than sent as zero.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	RandomSeed  *int          `json:"random_seed,omitempty"`
	Stream      *bool         `json:"stream,omitempty"`
	SafePrompt  *bool         `json:"safe_prompt,omitempty"`
}

// WithStream returns a copy of the request with the stream flag set.
// The receiver is left untouched.
func (r ChatRequest) WithStream(stream bool) ChatRequest {
	r.Stream = &stream
	return r
}

// EmbeddingsRequest represents a request to the embeddings endpoint
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// Message is a complete assistant (or echoed) message in a choice
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Delta represents the incremental content in a stream
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Choice is one entry of a chat response. Unary responses carry Message,
// streamed fragments carry Delta.
type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	Delta        *Delta   `json:"delta,omitempty"`
	FinishReason *string  `json:"finish_reason"`
}

// Usage reports token accounting
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse represents both a unary chat completion and a single
// streamed fragment.
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Model describes one entry of the model list
type Model struct {
	ID         string            `json:"id"`
	Object     string            `json:"object"`
	Created    int64             `json:"created"`
	OwnedBy    string            `json:"owned_by"`
	Root       json.RawMessage   `json:"root,omitempty"`
	Parent     json.RawMessage   `json:"parent,omitempty"`
	Permission []json.RawMessage `json:"permission"`
}

// ListResponse is returned by GET /v1/models
type ListResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Embedding is one vector of an embeddings response
type Embedding struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingsResponse is returned by POST /v1/embeddings
type EmbeddingsResponse struct {
	ID     string      `json:"id"`
	Object string      `json:"object"`
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
	Usage  Usage       `json:"usage"`
}

// Client interface for Mistral API interactions
type Client interface {
	// ListModels returns the models available to the credential
	ListModels(ctx context.Context) (*ListResponse, error)

	// Embeddings computes one vector per input string
	Embeddings(ctx context.Context, req EmbeddingsRequest) (*EmbeddingsResponse, error)

	// Chat sends a non-streaming chat completion request
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream sends a streaming chat completion request
	ChatStream(ctx context.Context, req ChatRequest) (*Stream[ChatResponse], error)
}
