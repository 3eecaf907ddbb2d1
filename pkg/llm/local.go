package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-pkgz/lgr"
	"github.com/sashabaranov/go-openai"

	"github.com/kurtb/curator/pkg/config"
)

// defaults for a local LM Studio style inference server
const (
	defaultLocalEndpoint = "http://localhost:1234/v1"
	defaultLocalAPIKey   = "lm-studio"
)

// Local is a provider backed by a local OpenAI-compatible inference server
// (LM Studio, llama.cpp server). Local servers usually handle one request
// at a time, so batch scoring defaults to a single worker. JSON response
// mode is attempted and disabled on the first bad-request rejection.
type Local struct {
	client *openai.Client
	cfg    config.LLMConfig
	model  string

	mu       sync.Mutex
	jsonMode bool
}

// NewLocal creates a provider for a local inference server. When no model
// is configured it queries the server and picks the first loaded model;
// an unreachable server is a hard error, not something to retry per item.
func NewLocal(ctx context.Context, cfg config.LLMConfig) (*Local, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultLocalEndpoint
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = defaultLocalAPIKey
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = endpoint
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	client := openai.NewClientWithConfig(clientConfig)

	model := cfg.Model
	if model == "" {
		detected, err := autoDetectModel(ctx, client, endpoint)
		if err != nil {
			return nil, err
		}
		model = detected
	}

	return &Local{
		client:   client,
		cfg:      cfg,
		model:    model,
		jsonMode: cfg.UseJSONMode,
	}, nil
}

// autoDetectModel queries the local server for loaded models and picks the first
func autoDetectModel(ctx context.Context, client *openai.Client, endpoint string) (string, error) {
	models, err := client.ListModels(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot reach local inference server at %s: %w", endpoint, err)
	}
	if len(models.Models) == 0 {
		return "", fmt.Errorf("local inference server at %s has no models loaded", endpoint)
	}
	lgr.Printf("[INFO] auto-detected local model: %s", models.Models[0].ID)
	return models.Models[0].ID, nil
}

// Call sends one prompt pair to the local backend. JSON response mode is
// tried first and permanently disabled if the server rejects it.
func (l *Local) Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       l.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	if l.jsonModeEnabled() {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
		resp, err := l.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return toResponse(resp)
		}
		if !isBadRequest(err) || IsContextOverflow(err) {
			return Response{}, fmt.Errorf("local llm request: %w", err)
		}
		// server doesn't support response_format, fall back without it
		lgr.Printf("[WARN] local server rejected json mode, disabling: %v", err)
		l.disableJSONMode()
		req.ResponseFormat = nil
	}

	resp, err := l.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("local llm request: %w", err)
	}
	return toResponse(resp)
}

// Model returns the model in use, configured or auto-detected
func (l *Local) Model() string { return l.model }

// DefaultWorkers returns the worker pool size for batch scoring
func (l *Local) DefaultWorkers() int {
	if l.cfg.MaxWorkers > 0 {
		return l.cfg.MaxWorkers
	}
	return 1
}

func (l *Local) jsonModeEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jsonMode
}

func (l *Local) disableJSONMode() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jsonMode = false
}

func toResponse(resp openai.ChatCompletionResponse) (Response, error) {
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("no response from llm")
	}
	return Response{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func isBadRequest(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 400
	}
	return false
}
