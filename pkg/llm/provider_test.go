package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurtb/curator/pkg/config"
)

// completionResponse builds a minimal chat completion payload
func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "test-model",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120},
	}
}

func TestHosted_Call(t *testing.T) {
	var gotReq struct {
		Model          string `json:"model"`
		MaxTokens      int    `json:"max_tokens"`
		ResponseFormat *struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(completionResponse(`{"score": 5}`)))
	}))
	defer server.Close()

	provider := NewHosted(config.LLMConfig{
		Backend:     "hosted",
		Endpoint:    server.URL,
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		Timeout:     5 * time.Second,
		UseJSONMode: true,
	})

	resp, err := provider.Call(context.Background(), "system prompt", "user prompt", 512, 0.2)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 5}`, resp.Text)
	assert.Equal(t, 100, resp.InputTokens)
	assert.Equal(t, 20, resp.OutputTokens)

	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	assert.Equal(t, 512, gotReq.MaxTokens)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
}

func TestHosted_DefaultWorkers(t *testing.T) {
	assert.Equal(t, 4, NewHosted(config.LLMConfig{}).DefaultWorkers())
	assert.Equal(t, 8, NewHosted(config.LLMConfig{MaxWorkers: 8}).DefaultWorkers())
}

func TestLocal_AutoDetectModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"object": "list", "data": [{"id": "qwen2.5-7b-instruct", "object": "model"}]}`))
		require.NoError(t, err)
	}))
	defer server.Close()

	provider, err := NewLocal(context.Background(), config.LLMConfig{Endpoint: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-7b-instruct", provider.Model())
	assert.Equal(t, 1, provider.DefaultWorkers())
}

func TestLocal_AutoDetectNoModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"object": "list", "data": []}`))
		require.NoError(t, err)
	}))
	defer server.Close()

	_, err := NewLocal(context.Background(), config.LLMConfig{Endpoint: server.URL, Timeout: 5 * time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no models loaded")
}

func TestLocal_AutoDetectUnreachable(t *testing.T) {
	_, err := NewLocal(context.Background(), config.LLMConfig{
		Endpoint: "http://127.0.0.1:1", // nothing listens here
		Timeout:  time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach local inference server")
}

func TestLocal_JSONModeFallback(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		calls++

		// reject any request carrying response_format, like llama.cpp builds
		// without json schema support
		if _, hasFormat := req["response_format"]; hasFormat {
			w.WriteHeader(http.StatusBadRequest)
			_, err := w.Write([]byte(`{"error": {"message": "response_format is not supported", "type": "invalid_request_error"}}`))
			require.NoError(t, err)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(completionResponse(`{"score": 1}`)))
	}))
	defer server.Close()

	provider, err := NewLocal(context.Background(), config.LLMConfig{
		Endpoint:    server.URL,
		Model:       "test-model",
		Timeout:     5 * time.Second,
		UseJSONMode: true,
	})
	require.NoError(t, err)

	// first call: json mode rejected, retried without, succeeds
	resp, err := provider.Call(context.Background(), "sys", "user", 128, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 1}`, resp.Text)
	assert.Equal(t, 2, calls)

	// second call: json mode is disabled for good, single request
	_, err = provider.Call(context.Background(), "sys", "user", 128, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
