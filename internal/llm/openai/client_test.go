package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legislens/internal/llm"
	"legislens/internal/shared/telemetry"
)

func quietLogs(t *testing.T) {
	t.Helper()
	t.Cleanup(telemetry.SetOutput(&bytes.Buffer{}))
}

func testPrompt(t *testing.T) llm.Prompt {
	t.Helper()
	p, err := llm.BuildPrompt("The Supplier may terminate at any time.")
	require.NoError(t, err)
	return p
}

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isGPT5(tt.model))
		})
	}
}

func TestNewClientRequiresModelAndKey(t *testing.T) {
	_, err := NewClient("key", "", Options{})
	require.Error(t, err)
	_, err = NewClient("", "gpt-4o-mini", Options{})
	require.Error(t, err)
}

func TestCompleteSendsPromptAndReturnsContent(t *testing.T) {
	quietLogs(t)
	var lastBody map[string]any
	var lastAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  {\"summary\":\"ok\"}  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "gpt-4o-mini", Options{Endpoint: server.URL, JSONMode: true})
	require.NoError(t, err)

	p := testPrompt(t)
	got, err := client.Complete(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, got)

	assert.Equal(t, "Bearer test-key", lastAuth)
	assert.Equal(t, "gpt-4o-mini", lastBody["model"])
	assert.Equal(t, float64(0), lastBody["temperature"])
	assert.Equal(t, map[string]any{"type": "json_object"}, lastBody["response_format"])
	messages, ok := lastBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, p.System, messages[0].(map[string]any)["content"])
	assert.Equal(t, p.User, messages[1].(map[string]any)["content"])
}

func TestCompleteOmitsResponseFormatWithoutJSONMode(t *testing.T) {
	quietLogs(t)
	var lastBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "gpt-5-mini", Options{Endpoint: server.URL})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), testPrompt(t))
	require.NoError(t, err)

	_, hasFormat := lastBody["response_format"]
	_, hasTemp := lastBody["temperature"]
	assert.False(t, hasFormat)
	assert.False(t, hasTemp)
}

func TestCompleteRetriesWithoutTemperature(t *testing.T) {
	quietLogs(t)
	var mu sync.Mutex
	var bodies []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		bodies = append(bodies, payload)
		n := len(bodies)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Unsupported value: 'temperature' does not support 0 with this model.","type":"invalid_request_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "o3-mini", Options{Endpoint: server.URL})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), testPrompt(t))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	_, firstHasTemp := bodies[0]["temperature"]
	_, secondHasTemp := bodies[1]["temperature"]
	assert.True(t, firstHasTemp)
	assert.False(t, secondHasTemp)
}

func TestCompleteRateLimited(t *testing.T) {
	quietLogs(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", "gpt-4o-mini", Options{Endpoint: server.URL})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), testPrompt(t))
	require.ErrorIs(t, err, llm.ErrRateLimited)

	var rl *llm.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 12*time.Second, rl.RetryAfter)
}

func TestCompleteTransportErrors(t *testing.T) {
	quietLogs(t)
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusBadGateway, body: `upstream failure`},
		{name: "api error", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"invalid_request_error"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"   "}}]}`},
		{name: "garbage envelope", status: http.StatusOK, body: `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient("test-key", "gpt-4o-mini", Options{Endpoint: server.URL})
			require.NoError(t, err)
			_, err = client.Complete(context.Background(), testPrompt(t))
			require.ErrorIs(t, err, llm.ErrTransport)
			assert.False(t, errors.Is(err, llm.ErrRateLimited))
		})
	}
}

func TestCompleteUnreachable(t *testing.T) {
	quietLogs(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient("test-key", "gpt-4o-mini", Options{Endpoint: url})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), testPrompt(t))
	require.ErrorIs(t, err, llm.ErrTransport)
}

func TestCompleteCanceledContext(t *testing.T) {
	quietLogs(t)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient("test-key", "gpt-4o-mini", Options{Endpoint: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Complete(ctx, testPrompt(t))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, llm.ErrTransport))
}
