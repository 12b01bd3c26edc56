package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legislens/internal/llm"
	"legislens/internal/shared/telemetry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	t.Cleanup(telemetry.SetOutput(&bytes.Buffer{}))
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient("test-key", "", Options{Endpoint: server.URL})
	require.NoError(t, err)
	return client
}

func testPrompt(t *testing.T) llm.Prompt {
	t.Helper()
	p, err := llm.BuildPrompt("Either party may terminate on 30 days notice.")
	require.NoError(t, err)
	return p
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(" ", "claude-3-haiku-20240307", Options{})
	require.Error(t, err)
}

func TestCompleteSendsMessagesRequest(t *testing.T) {
	var got messagesRequest
	var headers http.Header
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Here you go: "},{"type":"text","text":"{\"summary\":\"ok\"}"}],"stop_reason":"end_turn","usage":{"input_tokens":20,"output_tokens":8}}`))
	})

	p := testPrompt(t)
	out, err := client.Complete(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, `Here you go: {"summary":"ok"}`, out)

	assert.Equal(t, "test-key", headers.Get("x-api-key"))
	assert.Equal(t, apiVersion, headers.Get("anthropic-version"))
	assert.Equal(t, defaultModel, got.Model)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	assert.Equal(t, p.System, got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, p.User, got.Messages[0].Content)
}

func TestCompleteRateLimitedStatuses(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, statusOverloaded} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
		})
		_, err := client.Complete(context.Background(), testPrompt(t))
		require.ErrorIs(t, err, llm.ErrRateLimited)
		var rl *llm.RateLimitError
		require.ErrorAs(t, err, &rl)
		assert.Equal(t, 3*time.Second, rl.RetryAfter)
	}
}

func TestCompleteTransportErrors(t *testing.T) {
	bodies := map[int]string{
		http.StatusInternalServerError: `{"type":"error","error":{"type":"api_error","message":"boom"}}`,
		http.StatusOK:                  `{"content":[{"type":"tool_use"}]}`,
	}
	for status, body := range bodies {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		})
		_, err := client.Complete(context.Background(), testPrompt(t))
		require.ErrorIs(t, err, llm.ErrTransport)
		assert.False(t, errors.Is(err, llm.ErrRateLimited))
	}
}
