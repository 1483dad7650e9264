// Package pool runs tasks on a bounded number of goroutines. Tasks are
// cancelled cooperatively: a task whose context is done before it acquires a
// slot never runs, but a running task is only told to stop through its
// context.
package pool

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of tasks that run at the same time.
type Pool struct {
	size int64
	sem  *semaphore.Weighted
}

// Task is a handle to a submitted function.
type Task struct {
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started int32
}

// New creates a pool that runs at most `size` tasks at once. A size of zero
// or less sizes the pool to the number of CPUs.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int {
	return int(p.size)
}

// Submit schedules `fn` to run once a slot is free. The context passed to
// `fn` is cancelled when `ctx` is, or when the task is cancelled.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context)) *Task {
	taskCtx, cancel := context.WithCancel(ctx)
	task := &Task{
		ctx:    taskCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(task.done)
		defer cancel()

		if err := p.sem.Acquire(taskCtx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)

		// Acquire can succeed even if the context is already done.
		if taskCtx.Err() != nil {
			return
		}

		atomic.StoreInt32(&task.started, 1)
		fn(taskCtx)
	}()
	return task
}

// Done is closed once the task has either run or been dropped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task is done or `ctx` is cancelled, in which case the
// context's error is returned.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel drops the task if it hasn't started yet, and cancels its context
// otherwise.
func (t *Task) Cancel() {
	t.cancel()
}

// Started returns whether the task's function was invoked.
func (t *Task) Started() bool {
	return atomic.LoadInt32(&t.started) == 1
}
