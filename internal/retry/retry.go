// Package retry runs collaborator calls with a per-attempt deadline and
// bounded exponential backoff. Only transient failures are retried.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"marketlens/internal/apperr"
)

type Policy struct {
	MaxAttempts     int
	CallTimeout     time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		CallTimeout:     30 * time.Second,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		expo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		expo.MaxInterval = p.MaxInterval
	}
	expo.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)
}

// Do calls fn until it succeeds, returns a non-transient error, or the
// attempts run out. A call exceeding CallTimeout counts as transient.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		callCtx := ctx
		if p.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
			defer cancel()
		}

		res, err := fn(callCtx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, backoff.Permanent(apperr.Transient(op, ctx.Err()))
		}
		var kinded *apperr.Error
		if errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &kinded) {
			err = apperr.Transient(op, err)
		}
		if !apperr.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "retrying call", "op", op, "attempt", attempt, "wait", wait, "error", err)
	}

	return backoff.RetryNotifyWithData(operation, p.backOff(ctx), notify)
}

// Run is Do for calls without a result.
func Run(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
