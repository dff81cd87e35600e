package mistral

import (
	"context"
	"errors"
	"testing"
)

func TestMockClient_ChatStream(t *testing.T) {
	mock := NewMockClient()

	req := ChatRequest{
		Model: ModelTiny,
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "Hello"},
		},
	}

	ctx := context.Background()
	stream, err := mock.ChatStream(ctx, req)
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	// Collect all fragments
	var content string
	fragments := 0
	for stream.Next() {
		fragments++
		if d := stream.Current().Choices[0].Delta; d != nil {
			content += d.Content
		}
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error = %v", err)
	}

	if fragments != 3 {
		t.Errorf("Expected 3 fragments, got %d", fragments)
	}
	if content != "This is a mock response." {
		t.Errorf("Unexpected content %q", content)
	}

	// Verify call was tracked
	if mock.GetStreamCallCount() != 1 {
		t.Errorf("Expected 1 stream call, got %d", mock.GetStreamCallCount())
	}
}

func TestMockClient_Chat(t *testing.T) {
	mock := NewMockClient()

	req := ChatRequest{
		Model: ModelSmall,
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "Extract facts"},
		},
	}

	ctx := context.Background()
	resp, err := mock.Chat(ctx, req)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if resp == nil {
		t.Fatal("Expected response, got nil")
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		t.Fatal("Expected a choice with a message")
	}

	// Verify call was tracked
	if mock.GetChatCallCount() != 1 {
		t.Errorf("Expected 1 chat call, got %d", mock.GetChatCallCount())
	}
}

func TestMockClient_ModeChecks(t *testing.T) {
	mock := NewMockClient()
	ctx := context.Background()

	if _, err := mock.Chat(ctx, ChatRequest{Model: ModelTiny}.WithStream(true)); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("Chat(stream=true) error = %v, want ErrInvalidMode", err)
	}
	if _, err := mock.ChatStream(ctx, ChatRequest{Model: ModelTiny}.WithStream(false)); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ChatStream(stream=false) error = %v, want ErrInvalidMode", err)
	}
	if _, err := mock.Embeddings(ctx, EmbeddingsRequest{Model: ModelTiny}); !errors.Is(err, ErrInvalidModel) {
		t.Errorf("Embeddings(mistral-tiny) error = %v, want ErrInvalidModel", err)
	}
}

func TestMockClient_Embeddings(t *testing.T) {
	mock := NewMockClient()

	resp, err := mock.Embeddings(context.Background(), EmbeddingsRequest{
		Model: ModelEmbed,
		Input: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Embeddings() error = %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[1].Index != 1 {
		t.Errorf("Unexpected embeddings %+v", resp.Data)
	}
}

func TestMockClient_CustomStreamFunc(t *testing.T) {
	mock := NewMockClient()

	// Custom streaming behavior
	mock.StreamFunc = func(ctx context.Context, req ChatRequest) (*Stream[ChatResponse], error) {
		return StreamOf(ChatResponse{ID: "custom-chunk", Model: "custom-model"})
	}

	ctx := context.Background()
	req := ChatRequest{Model: "test"}

	stream, err := mock.ChatStream(ctx, req)
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	defer stream.Close()

	if !stream.Next() {
		t.Fatalf("Expected a fragment, err = %v", stream.Err())
	}
	if stream.Current().ID != "custom-chunk" {
		t.Errorf("Expected custom-chunk, got %s", stream.Current().ID)
	}
}

func TestMockClient_Reset(t *testing.T) {
	mock := NewMockClient()

	ctx := context.Background()
	req := ChatRequest{Model: "test"}

	// Make some calls
	_, _ = mock.ChatStream(ctx, req)
	_, _ = mock.Chat(ctx, req)
	_, _ = mock.ListModels(ctx)

	if mock.GetStreamCallCount() != 1 || mock.GetChatCallCount() != 1 || mock.ListModelsCalls != 1 {
		t.Error("Calls not tracked before reset")
	}

	// Reset
	mock.Reset()

	if mock.GetStreamCallCount() != 0 || mock.GetChatCallCount() != 0 || mock.ListModelsCalls != 0 {
		t.Error("Reset did not clear call history")
	}
}
