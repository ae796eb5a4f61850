// Package retry runs provider calls again on throttling and transient failures.
//
// Providers never retry on their own: a RateLimitError or TransportError is
// returned to the caller, who opts in to retries by wrapping the call with Do.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg", "retry")

// Policy configures retries.
type Policy struct {
	// MaxAttempts is the number of calls, including the first.
	MaxAttempts int
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration
	// Multiplier grows the delay after each retry.
	Multiplier float64
	// Jitter randomizes the delay, from 0 to 1.
	Jitter float64
	// MaxRetryAfter caps the delay a provider can ask for with Retry-After,
	// zero means no cap.
	MaxRetryAfter time.Duration
	// RetryIf reports whether the error is worth another attempt,
	// llms.IsRetryable by default.
	RetryIf func(error) bool
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns three attempts with exponential backoff from 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		Jitter:          0.1,
		MaxRetryAfter:   time.Minute,
		RetryIf:         llms.IsRetryable,
	}
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.Jitter
	// attempts are bounded by MaxAttempts, not by elapsed time
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return backoff.WithMaxRetries(b, uint64(attempts-1))
}

// Do calls fn until it succeeds, returns an error the policy does not retry,
// or runs out of attempts. The delay before the next attempt is the larger of
// the backoff interval and the Retry-After of a RateLimitError.
// The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = llms.IsRetryable
	}
	b := p.backOff()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		if !retryIf(err) {
			return zero, err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return zero, err
		}
		if ra := llms.RetryAfter(err); ra > wait {
			wait = ra
			if p.MaxRetryAfter > 0 && wait > p.MaxRetryAfter {
				wait = p.MaxRetryAfter
			}
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "retry",
			"attempt", attempt,
			"wait", wait.String(),
			"err", err.Error())
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// GenerateContent calls model.GenerateContent under the policy.
func GenerateContent(ctx context.Context, p Policy, model llms.Model, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return Do(ctx, p, func(ctx context.Context) (*llms.ContentResponse, error) {
		return model.GenerateContent(ctx, messages, options...)
	})
}

// CreateEmbedding calls embedder.CreateEmbedding under the policy.
func CreateEmbedding(ctx context.Context, p Policy, embedder llms.Embedder, texts []string) ([][]float32, error) {
	return Do(ctx, p, func(ctx context.Context) ([][]float32, error) {
		return embedder.CreateEmbedding(ctx, texts)
	})
}
