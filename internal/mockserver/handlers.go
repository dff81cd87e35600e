package mockserver

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/themobileprof/mistral-go/pkg/mistral"
)

// EmbeddingDim matches the vector size of mistral-embed
const EmbeddingDim = 1024

// modelsCreated is a fixed timestamp so model listings are stable
const modelsCreated = 1702166400

var chatModels = map[string]bool{
	mistral.ModelTiny:   true,
	mistral.ModelSmall:  true,
	mistral.ModelMedium: true,
}

type handler struct {
	fragmentDelay time.Duration
	metrics       *Metrics
}

// ListModels serves GET /v1/models
func (h *handler) ListModels(c *gin.Context) {
	list := mistral.ListResponse{Object: "list"}
	for _, id := range []string{mistral.ModelTiny, mistral.ModelSmall, mistral.ModelMedium, mistral.ModelEmbed} {
		list.Data = append(list.Data, mistral.Model{
			ID:         id,
			Object:     "model",
			Created:    modelsCreated,
			OwnedBy:    "mistralai",
			Root:       json.RawMessage("null"),
			Parent:     json.RawMessage("null"),
			Permission: []json.RawMessage{},
		})
	}
	c.JSON(http.StatusOK, list)
}

// Embeddings serves POST /v1/embeddings with deterministic unit vectors
func (h *handler) Embeddings(c *gin.Context) {
	var req mistral.EmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Model != mistral.ModelEmbed {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid model: %s", req.Model))
		return
	}
	if len(req.Input) == 0 {
		abortWithError(c, http.StatusUnprocessableEntity, "input must not be empty")
		return
	}

	resp := mistral.EmbeddingsResponse{
		ID:     newID("embd"),
		Object: "list",
		Model:  req.Model,
	}
	tokens := 0
	for i, text := range req.Input {
		resp.Data = append(resp.Data, mistral.Embedding{
			Object:    "embedding",
			Embedding: embed(text),
			Index:     i,
		})
		tokens += countTokens(text)
	}
	resp.Usage = mistral.Usage{PromptTokens: tokens, TotalTokens: tokens}

	c.JSON(http.StatusOK, resp)
}

// ChatCompletions serves POST /v1/chat/completions. The reply echoes the
// last user message; with stream=true it is sent word by word over SSE.
func (h *handler) ChatCompletions(c *gin.Context) {
	var req mistral.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !chatModels[req.Model] {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid model: %s", req.Model))
		return
	}
	if len(req.Messages) == 0 {
		abortWithError(c, http.StatusUnprocessableEntity, "messages must not be empty")
		return
	}

	words := strings.SplitAfter(replyFor(req.Messages), " ")
	finish := mistral.FinishReasonStop
	if req.MaxTokens != nil && *req.MaxTokens < len(words) {
		words = words[:max(*req.MaxTokens, 0)]
		finish = mistral.FinishReasonLength
	}

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += countTokens(m.Content)
	}
	usage := &mistral.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: len(words),
		TotalTokens:      promptTokens + len(words),
	}

	base := mistral.ChatResponse{
		ID:      newID("cmpl"),
		Created: time.Now().Unix(),
		Model:   req.Model,
	}

	if req.Stream != nil && *req.Stream {
		h.stream(c, base, words, finish, usage)
		return
	}

	base.Object = "chat.completion"
	base.Choices = []mistral.Choice{{
		Index: 0,
		Message: &mistral.Message{
			Role:    mistral.RoleAssistant,
			Content: strings.Join(words, ""),
		},
		FinishReason: &finish,
	}}
	base.Usage = usage
	c.JSON(http.StatusOK, base)
}

func (h *handler) stream(c *gin.Context, base mistral.ChatResponse, words []string, finish string, usage *mistral.Usage) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	base.Object = "chat.completion.chunk"
	fragment := func(delta mistral.Delta, finishReason *string, u *mistral.Usage) mistral.ChatResponse {
		f := base
		f.Choices = []mistral.Choice{{Index: 0, Delta: &delta, FinishReason: finishReason}}
		f.Usage = u
		return f
	}

	events := make([]mistral.ChatResponse, 0, len(words)+2)
	events = append(events, fragment(mistral.Delta{Role: mistral.RoleAssistant}, nil, nil))
	for _, w := range words {
		events = append(events, fragment(mistral.Delta{Content: w}, nil, nil))
	}
	events = append(events, fragment(mistral.Delta{}, &finish, usage))

	ctx := c.Request.Context()
	for i, event := range events {
		if i > 0 && h.fragmentDelay > 0 {
			select {
			case <-time.After(h.fragmentDelay):
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("[ERROR] mock stream failed to marshal fragment: %v", err)
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		c.Writer.Flush()
		h.metrics.fragments.Inc()
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

// replyFor builds the echo reply for a conversation
func replyFor(messages []mistral.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == mistral.RoleUser && strings.TrimSpace(messages[i].Content) != "" {
			return "You said: " + strings.TrimSpace(messages[i].Content)
		}
	}
	return "Hello! How can I help you today?"
}

func countTokens(s string) int {
	return len(strings.Fields(s))
}

func newID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// embed derives a unit vector from text so identical inputs always map
// to identical embeddings.
func embed(text string) []float64 {
	vec := make([]float64, EmbeddingDim)
	var norm float64
	var idx [8]byte
	for i := range vec {
		h := fnv.New64a()
		h.Write([]byte(text))
		binary.LittleEndian.PutUint64(idx[:], uint64(i))
		h.Write(idx[:])
		v := float64(h.Sum64())/math.MaxUint64*2 - 1
		vec[i] = v
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
