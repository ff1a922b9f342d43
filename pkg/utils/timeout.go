package utils

import (
	"context"
	"errors"
	"time"
)

// ErrTimedOut reports that the raced operation lost to its timer.
var ErrTimedOut = errors.New("operation timed out")

// WithTimeout races fn against a fixed delay and returns whichever settles
// first. A losing fn is not retried; its eventual result is discarded. The
// context handed to fn is cancelled once the race is decided, so a slow
// model call stops burning the connection.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, 1)
	go func() {
		value, err := fn(raceCtx)
		results <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case result := <-results:
		return result.value, result.err
	case <-timer.C:
		return zero, ErrTimedOut
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
