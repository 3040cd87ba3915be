package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/wallet-sweep/internal/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	var retries []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) }

	err := retry.Do(context.Background(), p, func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDoFatalIsNotRetried(t *testing.T) {
	calls := 0
	p := fastPolicy(5)
	p.Classify = retry.ClassifyRPC
	err := retry.Do(context.Background(), p, func(context.Context) error {
		calls++
		return errors.New("nonce too low")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := retry.Do(ctx, fastPolicy(3), func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestBackoffIsCapped(t *testing.T) {
	p := retry.Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(64))
}

func TestClassification(t *testing.T) {
	assert.True(t, retry.Transient(errors.New("read tcp: i/o timeout")))
	assert.True(t, retry.Transient(errors.Wrap(context.DeadlineExceeded, "balance")))
	assert.False(t, retry.Transient(errors.New("nonce too low")))
	assert.False(t, retry.Transient(nil))

	assert.Equal(t, retry.Fatal, retry.ClassifyRPC(errors.New("insufficient funds for gas * price + value")))
	assert.Equal(t, retry.Fatal, retry.ClassifyRPC(context.Canceled))
	assert.Equal(t, retry.Retryable, retry.ClassifyRPC(errors.New("502 bad gateway")))
}
