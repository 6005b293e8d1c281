package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy is exponential backoff with a longer fixed wait for rate limits.
type RetryPolicy struct {
	MaxRetries     int           // retries after the first attempt
	BaseDelay      time.Duration // first backoff, doubled on each retry
	RateLimitDelay time.Duration // used instead of the backoff when the error contains "429"
	Sleep          SleepFunc
}

// DefaultRetryPolicy returns 3 retries at 1s, 2s, 4s with a 4s rate-limit wait.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		RateLimitDelay: 4 * time.Second,
		Sleep:          Sleep,
	}
}

// Delay returns the wait after failed attempt n (1-based) that ended with err.
func (p RetryPolicy) Delay(n int, err error) time.Duration {
	if err != nil && strings.Contains(err.Error(), "429") && p.RateLimitDelay > 0 {
		return p.RateLimitDelay
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
	}
	return d
}

// retryable reports whether err may be retried: configuration errors and
// capability gaps are final. A timeout of a single attempt is retried.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	return !IsConfigurationError(err) && !errors.Is(err, ErrUnsupported)
}

// Retry runs op until it succeeds or the policy is exhausted. The last error is
// returned unchanged so callers can inspect its message.
func Retry[T any](ctx context.Context, p RetryPolicy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	var zero T
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		// Only the caller's context ends the loop early.
		if ctx.Err() != nil || !retryable(err) || attempt > p.MaxRetries {
			return zero, err
		}
		delay := p.Delay(attempt, err)
		log.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Int("retries_left", p.MaxRetries-attempt+1).
			Dur("delay", delay).
			Msg("Operation failed, retrying")
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, err
		}
	}
}
