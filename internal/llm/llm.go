package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client abstracts LLM providers for contract analysis. Implementations return
// the raw completion text and never interpret it.
type Client interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

var (
	// ErrEmptyDocument is returned when there is no text worth sending to the model.
	ErrEmptyDocument = errors.New("empty document")
	// ErrTransport covers network failures and unusable responses from the model service.
	ErrTransport = errors.New("llm transport error")
	// ErrRateLimited is returned when the model service signals throttling.
	ErrRateLimited = errors.New("llm rate limited")
)

const defaultRetryAfter = 60 * time.Second

// RateLimitError indicates a provider returned HTTP 429.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	// Hinted is true when RetryAfter came from the provider rather than the default.
	Hinted bool
	Err    error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

// Unwrap exposes both ErrRateLimited and the provider error.
func (e *RateLimitError) Unwrap() []error {
	return []error{ErrRateLimited, e.Err}
}

// NewRateLimitError creates a RateLimitError. A zero or negative retryAfter
// means the provider sent no hint; RetryAfter then defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfter time.Duration) *RateLimitError {
	hinted := retryAfter > 0
	if !hinted {
		retryAfter = defaultRetryAfter
	}
	return &RateLimitError{Provider: provider, RetryAfter: retryAfter, Hinted: hinted, Err: err}
}

// ParseRetryAfter parses a Retry-After header given in seconds or as an HTTP date.
// Returns 0 when the value is empty or invalid.
func ParseRetryAfter(val string, now time.Time) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(val); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// Transportf wraps a provider failure as ErrTransport.
func Transportf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransport, fmt.Sprintf(format, args...))
}

// TransportError wraps err as ErrTransport, keeping it inspectable with errors.Is/As.
func TransportError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, provider, err)
}
