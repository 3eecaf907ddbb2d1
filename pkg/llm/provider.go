package llm

import (
	"context"
)

// Response is the raw result of one model call
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider is a pluggable model backend. Implementations must support a
// JSON-biased response mode when the backend allows it and fall back
// gracefully when it doesn't.
type Provider interface {
	// Call sends one system+user prompt pair and returns the raw text
	// along with token usage
	Call(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (Response, error)

	// Model returns the model identifier in use
	Model() string

	// DefaultWorkers returns how many concurrent calls the backend tolerates
	DefaultWorkers() int
}
