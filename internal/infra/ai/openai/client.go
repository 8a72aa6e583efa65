package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/voiceops-ai/callground/internal/domain/ai"
	"github.com/voiceops-ai/callground/internal/domain/errs"
)

const maxTokens = 2048

// Client wraps the OpenAI API behind the Embedder and Generator ports.
type Client struct {
	*openai.Client
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int
}

// NewClient builds a Client for the given models. baseURL is empty in
// production; it points the client at a stand-in server in tests.
func NewClient(apiKey, baseURL, chatModel, embeddingModel string, embeddingDim int) *Client {
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	if embeddingModel == "" {
		embeddingModel = string(openai.SmallEmbedding3)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		Client:         openai.NewClientWithConfig(cfg),
		ChatModel:      chatModel,
		EmbeddingModel: embeddingModel,
		EmbeddingDim:   embeddingDim,
	}
}

// Embed returns the embedding vector for text. One transient failure
// (a transport error or a 5xx) is retried before the error is surfaced
// as a dependency failure; 4xx responses fail immediately.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.EmbeddingModel),
		Input: []string{text},
	}

	resp, err := c.CreateEmbeddings(ctx, req)
	if err != nil && isTransient(err) {
		resp, err = c.CreateEmbeddings(ctx, req)
	}
	if err != nil {
		if isQuotaError(err) {
			return nil, ai.ErrQuotaExceeded
		}
		return nil, &errs.DependencyError{Op: "embedding provider", Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &errs.DependencyError{Op: "embedding provider", Err: fmt.Errorf("empty embedding response")}
	}

	vec := resp.Data[0].Embedding
	if c.EmbeddingDim > 0 && len(vec) != c.EmbeddingDim {
		return nil, &errs.DependencyError{
			Op:  "embedding provider",
			Err: fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(vec), c.EmbeddingDim),
		}
	}
	return vec, nil
}

// Generate runs one chat completion constrained to a JSON object body.
func (c *Client) Generate(ctx context.Context, system, user string) (*ai.Generation, error) {
	req := openai.ChatCompletionRequest{
		Model: c.ChatModel,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(c.ChatModel, "o1") || strings.HasPrefix(c.ChatModel, "o3") || strings.HasPrefix(c.ChatModel, "o4") || strings.HasPrefix(c.ChatModel, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		if isQuotaError(err) {
			return nil, ai.ErrQuotaExceeded
		}
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &ai.Generation{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func isQuotaError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	return false
}

// isTransient reports whether a failed request is worth retrying.
// Anything the server rejected with a 4xx (bad key, quota, malformed
// request) will fail the same way again.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500
	}
	// transport-level failure, no response at all
	return true
}
