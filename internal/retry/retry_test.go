package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/internal/apperr"
	"marketlens/internal/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:     attempts,
		CallTimeout:     time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	out, err := retry.Do(context.Background(), fastPolicy(3), "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", apperr.Transient("test", errors.New("flaky"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy(2), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, apperr.Transient("test", errors.New("down"))
	})

	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.Equal(t, 2, calls)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy(5), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, apperr.Configuration("test", errors.New("bad key"))
	})

	assert.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Equal(t, 1, calls)
}

func TestDo_DeadlineBecomesTransient(t *testing.T) {
	p := fastPolicy(2)
	p.CallTimeout = 5 * time.Millisecond

	calls := 0
	err := retry.Run(context.Background(), p, "slow", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestDo_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry.Run(ctx, fastPolicy(5), "test", func(ctx context.Context) error {
		calls++
		cancel()
		return apperr.Transient("test", errors.New("flaky"))
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
