package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/kurtb/curator/pkg/config"
)

// Hosted is a provider backed by a hosted OpenAI-compatible API.
// It tolerates concurrent requests, so batch scoring runs parallel workers.
type Hosted struct {
	client *openai.Client
	cfg    config.LLMConfig
}

// NewHosted creates a provider for a hosted API endpoint
func NewHosted(cfg config.LLMConfig) *Hosted {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Hosted{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}
}

// Call sends one prompt pair to the hosted backend
func (h *Hosted) Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       h.cfg.Model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if h.cfg.UseJSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := h.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("hosted llm request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("no response from llm")
	}

	return Response{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Model returns the configured model name
func (h *Hosted) Model() string { return h.cfg.Model }

// DefaultWorkers returns the worker pool size for batch scoring
func (h *Hosted) DefaultWorkers() int {
	if h.cfg.MaxWorkers > 0 {
		return h.cfg.MaxWorkers
	}
	return 4
}
