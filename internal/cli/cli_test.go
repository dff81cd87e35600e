package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themobileprof/mistral-go/internal/config"
	"github.com/themobileprof/mistral-go/internal/mockserver"
	"github.com/themobileprof/mistral-go/pkg/mistral"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestApp isolates config loading and wires the app to mock
func newTestApp(t *testing.T, mock *mistral.MockClient) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	t.Chdir(t.TempDir())
	for _, key := range []string{config.EnvConfigPath, config.EnvEndpoint, config.EnvModel, config.EnvTimeout} {
		t.Setenv(key, "")
	}
	t.Setenv(config.EnvAPIKey, "test-key")

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	if mock != nil {
		app.NewClient = func(mistral.Config) mistral.Client { return mock }
	}
	return app, &stdout, &stderr
}

func TestPrintStream(t *testing.T) {
	frag := func(index int, content string) mistral.ChatResponse {
		return mistral.ChatResponse{Choices: []mistral.Choice{{Index: index, Delta: &mistral.Delta{Content: content}}}}
	}

	stream, err := mistral.StreamOf(
		frag(0, "Hello"),
		frag(0, " world"),
		mistral.ChatResponse{},
		frag(1, "Bye"),
		frag(1, "!"),
	)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, PrintStream(&out, stream))

	assert.Equal(t, "Hello world\nBye!\n", out.String())
}

func TestPrintStream_Closed(t *testing.T) {
	mock := mistral.NewMockClient()
	mock.StreamFunc = func(context.Context, mistral.ChatRequest) (*mistral.Stream[mistral.ChatResponse], error) {
		return mistral.StreamOf(mistral.ChatResponse{ID: "ok"})
	}
	stream, err := mock.ChatStream(context.Background(), mistral.ChatRequest{})
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	var out bytes.Buffer
	assert.NoError(t, PrintStream(&out, stream))
	assert.Equal(t, "\n", out.String())
}

func TestRun_Models(t *testing.T) {
	mock := mistral.NewMockClient()
	app, stdout, _ := newTestApp(t, mock)

	err := app.Run(context.Background(), []string{"models"})

	require.NoError(t, err)
	assert.Equal(t, 1, mock.ListModelsCalls)
	assert.Contains(t, stdout.String(), `"id": "mistral-tiny"`)
}

func TestRun_Embed(t *testing.T) {
	mock := mistral.NewMockClient()
	app, stdout, _ := newTestApp(t, mock)

	err := app.Run(context.Background(), []string{"embed", "life", "death"})

	require.NoError(t, err)
	require.Len(t, mock.EmbeddingsCalls, 1)
	assert.Equal(t, mistral.ModelEmbed, mock.EmbeddingsCalls[0].Model)
	assert.Equal(t, []string{"life", "death"}, mock.EmbeddingsCalls[0].Input)
	assert.Contains(t, stdout.String(), `"object": "embedding"`)
}

func TestRun_Chat(t *testing.T) {
	mock := mistral.NewMockClient()
	app, stdout, _ := newTestApp(t, mock)

	err := app.Run(context.Background(), []string{
		"-model", mistral.ModelSmall,
		"-system", "Be brief.",
		"-temperature", "0.2",
		"-max-tokens", "5",
		"-top-p", "0.9",
		"-seed", "7",
		"-safe-prompt",
		"chat", "What is", "the meaning of life?",
	})

	require.NoError(t, err)
	require.Equal(t, 1, mock.GetChatCallCount())

	req := mock.ChatCalls[0]
	assert.Equal(t, mistral.ModelSmall, req.Model)
	assert.Equal(t, []mistral.ChatMessage{
		{Role: mistral.RoleSystem, Content: "Be brief."},
		{Role: mistral.RoleUser, Content: "What is the meaning of life?"},
	}, req.Messages)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.2, *req.Temperature)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 5, *req.MaxTokens)
	assert.Equal(t, 0.9, *req.TopP)
	assert.Equal(t, 7, *req.RandomSeed)
	assert.True(t, *req.SafePrompt)
	assert.Nil(t, req.Stream)

	assert.Contains(t, stdout.String(), "This is a mock response.")
}

func TestRun_Stream(t *testing.T) {
	for _, args := range [][]string{
		{"stream", "hello", "there"},
		{"hello", "there"},
	} {
		mock := mistral.NewMockClient()
		app, stdout, _ := newTestApp(t, mock)

		err := app.Run(context.Background(), args)

		require.NoError(t, err)
		require.Equal(t, 1, mock.GetStreamCallCount())
		assert.Equal(t, "hello there", mock.StreamCalls[0].Messages[0].Content)
		assert.Equal(t, mistral.ModelTiny, mock.StreamCalls[0].Model)
		assert.Equal(t, "This is a mock response.\n", stdout.String())
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "embed without input", args: []string{"embed"}},
		{name: "chat without prompt", args: []string{"chat", "  "}},
		{name: "stream without prompt", args: []string{"stream"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := mistral.NewMockClient()
			app, _, _ := newTestApp(t, mock)

			err := app.Run(context.Background(), tt.args)

			assert.ErrorIs(t, err, ErrUsage)
			assert.Zero(t, mock.GetChatCallCount()+mock.GetStreamCallCount()+len(mock.EmbeddingsCalls))
		})
	}
}

func TestRun_Flags(t *testing.T) {
	app, _, stderr := newTestApp(t, mistral.NewMockClient())

	err := app.Run(context.Background(), []string{"-help"})
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, stderr.String(), "Usage: mistral")

	err = app.Run(context.Background(), []string{"-temperature", "warm", "chat", "hi"})
	assert.Error(t, err)
}

func TestRun_InvalidEndpointFlag(t *testing.T) {
	for _, endpoint := range []string{"foo", "ftp://example.com", "http://"} {
		mock := mistral.NewMockClient()
		app, _, _ := newTestApp(t, mock)

		err := app.Run(context.Background(), []string{"-endpoint", endpoint, "models"})

		assert.ErrorIs(t, err, ErrUsage, endpoint)
		assert.Zero(t, mock.ListModelsCalls, endpoint)
	}
}

func TestRun_ClientError(t *testing.T) {
	mock := mistral.NewMockClient()
	mock.ListModelsFunc = func(context.Context) (*mistral.ListResponse, error) {
		return nil, &mistral.APIError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	app, stdout, _ := newTestApp(t, mock)

	err := app.Run(context.Background(), []string{"models"})

	var apiErr *mistral.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Empty(t, stdout.String())
}

func TestRun_AgainstMockServer(t *testing.T) {
	server := httptest.NewServer(mockserver.New(mockserver.Options{APIKey: "test-key"}))
	defer server.Close()

	app, stdout, _ := newTestApp(t, nil)

	err := app.Run(context.Background(), []string{"-endpoint", server.URL, "stream", "hi"})

	require.NoError(t, err)
	assert.Equal(t, "You said: hi\n", stdout.String())
}

func TestRun_AgainstMockServer_Unauthorized(t *testing.T) {
	server := httptest.NewServer(mockserver.New(mockserver.Options{APIKey: "other-key"}))
	defer server.Close()

	app, _, stderr := newTestApp(t, nil)

	err := app.Run(context.Background(), []string{"-endpoint", server.URL, "models"})

	assert.True(t, mistral.IsAPIError(err, http.StatusUnauthorized))
	assert.Contains(t, stderr.String(), "HTTP error! Status: 401")
}
