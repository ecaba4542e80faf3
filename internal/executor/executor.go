// Package executor runs blocking work (store calls) on a fixed set of worker
// goroutines so request goroutines only ever wait on a Future.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/nkiryanov/usersvc/internal/apperrors"
	"github.com/nkiryanov/usersvc/internal/logger"
)

const (
	DefaultWorkers   = 10
	DefaultQueueSize = 100
)

type Config struct {
	// Number of worker goroutines
	Workers int

	// Number of accepted tasks that may wait for a free worker
	QueueSize int
}

type Executor struct {
	tasks chan func()

	// mu guards closed and sends to tasks
	mu     sync.RWMutex
	closed bool

	idleStopped chan struct{}
	logger      logger.Logger
}

func New(c Config, l logger.Logger) *Executor {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize < 0 {
		c.QueueSize = DefaultQueueSize
	}

	e := &Executor{
		tasks:       make(chan func(), c.QueueSize),
		idleStopped: make(chan struct{}),
		logger:      l,
	}

	var wg sync.WaitGroup
	for i := 0; i < c.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker()
		}()
	}

	go func() {
		defer close(e.idleStopped)
		wg.Wait()
		e.logger.Debug("Executor stopped")
	}()

	e.logger.Debug("Executor started", "workers", c.Workers, "queue_size", c.QueueSize)

	return e
}

func (e *Executor) worker() {
	for task := range e.tasks {
		task()
	}
}

// Close stops accepting new tasks and waits until already accepted ones are done
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.tasks)
	}
	e.mu.Unlock()

	select {
	case <-e.idleStopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor stop: %w", ctx.Err())
	}
}

// enqueue hands task to workers.
// Returns error if the executor is closed or ctx is done before a queue slot is free.
func (e *Executor) enqueue(ctx context.Context, task func()) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return fmt.Errorf("%w: executor is closed", apperrors.ErrOperationCanceled)
	}

	select {
	case e.tasks <- task:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", apperrors.ErrOperationCanceled, context.Cause(ctx))
	}
}

// Submit schedules work on the executor and returns its Future immediately.
//
// Accepted work runs exactly once. It gets a context detached from ctx cancellation,
// so a caller that stops waiting never interrupts an in-flight store transaction.
// Work that could not be accepted never runs and its Future reports ErrOperationCanceled.
// A panic in work is reported as DatabaseError.
func Submit[T any](ctx context.Context, e *Executor, work func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	workCtx := context.WithoutCancel(ctx)

	err := e.enqueue(ctx, func() {
		var (
			value T
			err   error
		)

		defer func() {
			if p := recover(); p != nil {
				e.logger.Error("Executor task panic", "panic", p, "stack", string(debug.Stack()))
				err = apperrors.NewDatabaseError(fmt.Errorf("task panic: %v", p))
			}
			f.resolve(value, err)
		}()

		value, err = work(workCtx)
	})
	if err != nil {
		var zero T
		f.resolve(zero, err)
	}

	return f
}
