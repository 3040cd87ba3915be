package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

type Class int

const (
	Retryable Class = iota
	Fatal
)

// Policy is shared by every RPC call site of a sweep run.
type Policy struct {
	MaxAttempts int           // total calls, first one included
	BaseDelay   time.Duration // doubled after each failed attempt
	MaxDelay    time.Duration // backoff cap
	Jitter      time.Duration // random extra wait in [0, Jitter)

	// Classify decides whether an error is worth another attempt.
	// Nil retries every error.
	Classify func(error) Class

	// OnRetry is an optional hook for logging/metrics.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Default matches the sweep defaults: 3 attempts, 500ms doubling up to 5s.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      100 * time.Millisecond,
		Classify:    ClassifyRPC,
	}
}

// Backoff returns the wait before attempt+1, without jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	base, max := p.BaseDelay, p.MaxDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if max <= 0 {
		max = 5 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return max
	}
	wait := base << (attempt - 1)
	if wait > max || wait <= 0 {
		wait = max
	}
	return wait
}

// Do calls fn until it succeeds, the error is classified Fatal,
// attempts run out or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return Retryable }
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Wrapf(err, "after %v", lastErr)
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Fatal {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.Backoff(attempt)
		if p.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(p.Jitter)))
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(ctx.Err(), "after %v", lastErr)
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = errors.New("retry: exhausted with no error")
	}
	return lastErr
}
