package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how often an idempotent provider call is repeated.
type Policy struct {
	Attempts       int // extra attempts after the first call
	InitialBackoff time.Duration
	// Timeout applies to every single attempt, not to the whole sequence.
	Timeout time.Duration
}

// Permanent marks err as not worth retrying (auth failures, bad requests).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the attempts run
// out or ctx is done. Each attempt gets its own timeout.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	b.MaxInterval = 10 * b.InitialInterval

	attempt := func() (T, error) {
		callCtx, cancel := withTimeout(ctx, p.Timeout)
		defer cancel()
		res, err := op(callCtx)
		if err != nil && ctx.Err() != nil {
			// caller gave up, no point in trying again
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.Attempts+1)),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return res, err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
