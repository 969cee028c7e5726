package session

import (
	"context"
	"time"
)

// Race runs fn against a timeout and returns whichever settles first. The
// losing side's eventual result is discarded; fn observes the cancelled
// context and is expected to give up, but even if it keeps running its
// result goes nowhere.
func Race[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type settled struct {
		value T
		err   error
	}

	done := make(chan settled, 1)
	go func() {
		value, err := fn(ctx)
		done <- settled{value, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case s := <-done:
		return s.value, s.err
	}
}
