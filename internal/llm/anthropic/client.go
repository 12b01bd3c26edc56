package anthropic

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
	provider         = "anthropic"
	apiURL           = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
	defaultModel     = "claude-3-haiku-20240307"
	defaultMaxTokens = 4096
	defaultTimeout   = 120 * time.Second
	statusOverloaded = 529
)

// Options tunes a Client beyond its credentials.
type Options struct {
	Timeout   time.Duration
	MaxTokens int
	Endpoint  string
}

// Client implements llm.Client using the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	maxTokens  int
	httpClient *http.Client
}

// NewClient creates a Messages API client. An empty model selects Claude 3 Haiku.
func NewClient(apiKey, model string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = apiURL
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the prompt as one user turn and returns the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	bodyBytes, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    prompt.System,
		Messages:  []message{{Role: "user", Content: prompt.User}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", llm.TransportError(provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("calling anthropic API: %w", ctxErr)
		}
		return "", llm.TransportError(provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llm.TransportError(provider, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == statusOverloaded {
			retryAfter := llm.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			return "", llm.NewRateLimitError(provider, baseErr, retryAfter)
		}
		return "", llm.TransportError(provider, baseErr)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", llm.Transportf("anthropic response parse: %v", err)
	}
	if parsed.Error != nil {
		return "", llm.Transportf("anthropic error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return "", llm.Transportf("anthropic response empty content")
	}

	fields := map[string]any{
		"provider":    provider,
		"model":       c.model,
		"prompt_hash": prompt.Hash(),
		"stop_reason": parsed.StopReason,
	}
	if parsed.Usage != nil {
		fields["prompt_tokens"] = parsed.Usage.InputTokens
		fields["completion_tokens"] = parsed.Usage.OutputTokens
	}
	telemetry.Info("llm.response", fields)
	return content, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ llm.Client = (*Client)(nil)
