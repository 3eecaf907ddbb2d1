package llm

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// failure taxonomy for model calls: context overflow is retried with a
// smaller prompt, connectivity failures abort the whole batch, anything
// else is treated as a transient per-item error

// IsContextOverflow reports whether the error indicates the prompt exceeded
// the model's context window
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "context_length_exceeded" {
			return true
		}
		msg := strings.ToLower(apiErr.Message)
		// local servers (llama.cpp, LM Studio) report overflow in free text
		if strings.Contains(msg, "context") || strings.Contains(msg, "n_ctx") || strings.Contains(msg, "n_keep") {
			return true
		}
	}
	return false
}

// IsConnectivity reports whether the error indicates the backend is
// unreachable or systematically failing, as opposed to a bad single request
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		// 5xx means the server itself is down or broken
		return reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode >= 500
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}

	return false
}
