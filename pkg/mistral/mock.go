package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MockClient implements the Client interface for testing
type MockClient struct {
	mu sync.Mutex

	// Override funcs allow customizing each operation
	ListModelsFunc func(context.Context) (*ListResponse, error)
	EmbeddingsFunc func(context.Context, EmbeddingsRequest) (*EmbeddingsResponse, error)
	ChatFunc       func(context.Context, ChatRequest) (*ChatResponse, error)
	StreamFunc     func(context.Context, ChatRequest) (*Stream[ChatResponse], error)

	// Tracking for assertions
	ListModelsCalls int
	EmbeddingsCalls []EmbeddingsRequest
	ChatCalls       []ChatRequest
	StreamCalls     []ChatRequest
}

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock client with default behavior
func NewMockClient() *MockClient {
	return &MockClient{
		EmbeddingsCalls: make([]EmbeddingsRequest, 0),
		ChatCalls:       make([]ChatRequest, 0),
		StreamCalls:     make([]ChatRequest, 0),
	}
}

// ListModels implements Client.ListModels
func (m *MockClient) ListModels(ctx context.Context) (*ListResponse, error) {
	m.mu.Lock()
	m.ListModelsCalls++
	m.mu.Unlock()

	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}

	list := &ListResponse{Object: "list"}
	for _, id := range []string{ModelTiny, ModelSmall, ModelMedium, ModelEmbed} {
		list.Data = append(list.Data, Model{
			ID:      id,
			Object:  "model",
			Created: 1234567890,
			OwnedBy: "mistralai",
		})
	}
	return list, nil
}

// Embeddings implements Client.Embeddings
func (m *MockClient) Embeddings(ctx context.Context, req EmbeddingsRequest) (*EmbeddingsResponse, error) {
	m.mu.Lock()
	m.EmbeddingsCalls = append(m.EmbeddingsCalls, req)
	m.mu.Unlock()

	if m.EmbeddingsFunc != nil {
		return m.EmbeddingsFunc(ctx, req)
	}
	if req.Model != ModelEmbed {
		return nil, fmt.Errorf("%w: use %q for embeddings requests, got %q", ErrInvalidModel, ModelEmbed, req.Model)
	}

	resp := &EmbeddingsResponse{
		ID:     "mock-embd-1",
		Object: "list",
		Model:  req.Model,
	}
	for i := range req.Input {
		resp.Data = append(resp.Data, Embedding{
			Object:    "embedding",
			Embedding: []float64{0.1, 0.2, 0.3},
			Index:     i,
		})
	}
	resp.Usage = Usage{PromptTokens: len(req.Input), TotalTokens: len(req.Input)}
	return resp, nil
}

// Chat implements Client.Chat
func (m *MockClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, req)
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if req.Stream != nil && *req.Stream {
		return nil, fmt.Errorf("%w: use ChatStream for streaming requests", ErrInvalidMode)
	}

	stop := FinishReasonStop
	return &ChatResponse{
		ID:      "mock-response-1",
		Object:  "chat.completion",
		Created: 1234567890,
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &Message{
					Role:    RoleAssistant,
					Content: "This is a mock response.",
				},
				FinishReason: &stop,
			},
		},
		Usage: &Usage{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		},
	}, nil
}

// ChatStream implements Client.ChatStream
func (m *MockClient) ChatStream(ctx context.Context, req ChatRequest) (*Stream[ChatResponse], error) {
	m.mu.Lock()
	m.StreamCalls = append(m.StreamCalls, req)
	m.mu.Unlock()

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	if req.Stream != nil && !*req.Stream {
		return nil, fmt.Errorf("%w: use Chat for non-streaming requests", ErrInvalidMode)
	}

	stop := FinishReasonStop
	fragments := []ChatResponse{
		mockFragment(req.Model, "mock-chunk-1", &Delta{Role: RoleAssistant, Content: "This is "}, nil),
		mockFragment(req.Model, "mock-chunk-2", &Delta{Content: "a mock response."}, nil),
		mockFragment(req.Model, "mock-chunk-3", &Delta{}, &stop),
	}
	return StreamOf(fragments...)
}

// StreamOf builds an in-memory stream that yields the given fragments
// in order, framed exactly as the API would send them.
func StreamOf(fragments ...ChatResponse) (*Stream[ChatResponse], error) {
	var buf bytes.Buffer
	for _, f := range fragments {
		payload, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal fragment: %w", err)
		}
		fmt.Fprintf(&buf, "data: %s\n\n", payload)
	}
	buf.WriteString("data: [DONE]\n\n")

	return NewStream[ChatResponse](io.NopCloser(&buf)), nil
}

func mockFragment(model, id string, delta *Delta, finish *string) ChatResponse {
	return ChatResponse{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: 1234567890,
		Model:   model,
		Choices: []Choice{
			{Index: 0, Delta: delta, FinishReason: finish},
		},
	}
}

// Reset clears the call history
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListModelsCalls = 0
	m.EmbeddingsCalls = make([]EmbeddingsRequest, 0)
	m.ChatCalls = make([]ChatRequest, 0)
	m.StreamCalls = make([]ChatRequest, 0)
}

// GetStreamCallCount returns the number of stream calls made
func (m *MockClient) GetStreamCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.StreamCalls)
}

// GetChatCallCount returns the number of chat calls made
func (m *MockClient) GetChatCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatCalls)
}
