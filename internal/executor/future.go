package executor

import (
	"context"
	"fmt"

	"github.com/nkiryanov/usersvc/internal/apperrors"
)

// Future is a handle to the result of submitted work
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve must be called exactly once
func (f *Future[T]) resolve(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed when the result is ready
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the work is finished or ctx is done.
// If ctx is done first the work keeps running and Wait returns ErrOperationCanceled.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	// Prefer ready result over canceled ctx
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", apperrors.ErrOperationCanceled, context.Cause(ctx))
	}
}
