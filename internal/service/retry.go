package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRetriesExhausted is the terminal error of a write cycle; the UI shows
	// it as a generic failure regardless of which attempt error came last.
	ErrRetriesExhausted = errors.New("sync failed after several retries")

	// ErrVerifyTimeout means the written value never showed up in the
	// verification re-reads of a single attempt.
	ErrVerifyTimeout = errors.New("write not observable after verification re-reads")
)

// attempt runs fn up to retries times, pausing delay between attempts. The
// delay is constant: the channel gives no signal to distinguish persistent
// failure from propagation lag, so backoff growth buys nothing. Cancelling ctx
// aborts between attempts, so a retry in flight at teardown stops at the next
// pause instead of running out its budget.
func attempt(ctx context.Context, fn func(context.Context) error, retries int, delay time.Duration) error {
	var lastErr error
	for i := 0; i < retries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if i < retries-1 {
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

// sleepCtx waits d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
