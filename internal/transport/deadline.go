package transport

import (
	"context"
	"time"
)

// WithDeadline runs fn in its own goroutine and stops waiting for it when ctx
// is done or timeout elapses, whichever comes first. An abandoned fn keeps
// running; callers must make sure its late result cannot be mistaken for a
// later exchange. Abandonment is reported as ErrUnavailable.
func WithDeadline[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, unavailable("exchange abandoned: %v", ctx.Err())
	}
}

// slot is a one-request-in-flight semaphore.
type slot chan struct{}

func newSlot() slot { return make(slot, 1) }

func (s slot) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return unavailable("previous exchange still pending: %v", ctx.Err())
	}
}

func (s slot) release() { <-s }
