package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"legislens/internal/llm"
	"legislens/internal/shared/telemetry"
)

const (
	provider       = "openai"
	defaultTimeout = 120 * time.Second
)

var apiURL = "https://api.openai.com/v1/chat/completions"

// Options tunes a Client beyond its credentials.
type Options struct {
	Timeout time.Duration
	// JSONMode requests response_format json_object.
	JSONMode  bool
	MaxTokens int
	Endpoint  string
}

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	jsonMode   bool
	maxTokens  int
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string, opts Options) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = apiURL
	}
	return &Client{
		apiKey:    apiKey,
		model:     model,
		endpoint:  endpoint,
		jsonMode:  opts.JSONMode,
		maxTokens: opts.MaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_completion_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete returns the raw model response for the prompt.
func (c *Client) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	withTemperature := !isGPT5(c.model)
	content, err := c.completeOnce(ctx, prompt, withTemperature)
	if err != nil && withTemperature && isTemperatureUnsupported(err) {
		telemetry.Warn("llm.temperature_unsupported", map[string]any{"provider": provider, "model": c.model})
		return c.completeOnce(ctx, prompt, false)
	}
	return content, err
}

func (c *Client) completeOnce(ctx context.Context, prompt llm.Prompt, withTemperature bool) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: prompt.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt.User})

	reqBody := chatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	}
	if withTemperature {
		temp := float32(0)
		reqBody.Temperature = &temp
	}
	if c.jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openai request encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", llm.TransportError(provider, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("openai request: %w", ctxErr)
		}
		return "", llm.TransportError(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.TransportError(provider, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := llm.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return "", llm.NewRateLimitError(provider, fmt.Errorf("openai http status %d: %s", resp.StatusCode, truncate(body)), retryAfter)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return "", llm.Transportf("openai http status %d: %s", resp.StatusCode, truncate(body))
		}
		return "", llm.Transportf("openai response parse: %v", err)
	}
	if parsed.Error != nil {
		return "", llm.Transportf("openai http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 400 {
		return "", llm.Transportf("openai http status %d: %s", resp.StatusCode, truncate(body))
	}
	if len(parsed.Choices) == 0 {
		return "", llm.Transportf("openai response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", llm.Transportf("openai response empty content")
	}
	logUsage(c.model, prompt.Hash(), parsed)
	return content, nil
}

func logUsage(model, promptHash string, resp chatResponse) {
	fields := map[string]any{
		"provider":    provider,
		"model":       model,
		"prompt_hash": promptHash,
	}
	if len(resp.Choices) > 0 {
		fields["finish_reason"] = resp.Choices[0].FinishReason
	}
	if resp.Usage != nil {
		fields["prompt_tokens"] = resp.Usage.PromptTokens
		fields["completion_tokens"] = resp.Usage.CompletionTokens
		fields["total_tokens"] = resp.Usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func isTemperatureUnsupported(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "temperature") && (strings.Contains(msg, "unsupported") || strings.Contains(msg, "does not support"))
}

func truncate(body []byte) string {
	const maxLen = 500
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

var _ llm.Client = (*Client)(nil)
