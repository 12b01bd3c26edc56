package analyses

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"legislens/internal/llm"
	"legislens/internal/shared/metrics"
	"legislens/internal/shared/telemetry"
)

const (
	defaultRetryMaxAttempts     = 3
	defaultRetryInitialInterval = 500 * time.Millisecond
	defaultRetryMaxInterval     = 8 * time.Second
	defaultRetryMaxWait         = 30 * time.Second
)

// RetryPolicy bounds how a retrying client repeats failed model calls.
// Zero fields take the package defaults.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxWait caps a provider Retry-After hint. A longer hint ends retrying
	// and surfaces the rate-limit error to the caller. Rate limits without a
	// hint follow the exponential schedule.
	MaxWait time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultRetryMaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaultRetryInitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = defaultRetryMaxInterval
	}
	if p.MaxWait <= 0 {
		p.MaxWait = defaultRetryMaxWait
	}
	return p
}

type retryingLLM struct {
	base   llm.Client
	policy RetryPolicy
}

// NewRetryingClient wraps base so transport and rate-limit failures are
// retried with exponential backoff. Other errors return immediately.
func NewRetryingClient(base llm.Client, policy RetryPolicy) llm.Client {
	if base == nil {
		return nil
	}
	return &retryingLLM{base: base, policy: policy.withDefaults()}
}

func (r *retryingLLM) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.InitialInterval
	exp.MaxInterval = r.policy.MaxInterval
	exp.MaxElapsedTime = 0

	hinted := &retryAfterBackOff{BackOff: backoff.WithMaxRetries(exp, uint64(r.policy.MaxAttempts-1))}
	b := backoff.WithContext(hinted, ctx)

	attempt := 0
	var out string
	operation := func() error {
		attempt++
		text, err := r.base.Complete(ctx, prompt)
		if err == nil {
			out = text
			return nil
		}
		if !shouldRetryLLM(err) {
			return backoff.Permanent(err)
		}
		var rl *llm.RateLimitError
		if errors.As(err, &rl) && rl.Hinted {
			if rl.RetryAfter > r.policy.MaxWait {
				return backoff.Permanent(err)
			}
			hinted.hint = rl.RetryAfter
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.IncLLMRetry()
		telemetry.Warn("llm.retry", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"prompt_hash": prompt.Hash(),
			"attempt":     attempt,
			"wait_ms":     wait.Milliseconds(),
			"error":       sanitizeError(err),
		})
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return "", err
	}
	return out, nil
}

func shouldRetryLLM(err error) bool {
	return errors.Is(err, llm.ErrTransport) || errors.Is(err, llm.ErrRateLimited)
}

// retryAfterBackOff waits at least the last provider hint before the next attempt.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func (b *retryAfterBackOff) Reset() {
	b.hint = 0
	b.BackOff.Reset()
}
