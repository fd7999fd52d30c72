package host

import (
	"context"
	"errors"
)

// Dispatcher runs host operations on whatever thread the host requires.
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
}

// Inline runs fn on the calling goroutine.
type Inline struct{}

func (Inline) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

var ErrStopped = errors.New("main thread loop stopped")

type job struct {
	fn   func()
	done chan struct{}
}

// MainThread queues work for a single loop goroutine, normally the process
// main goroutine, while prompt building and model calls run elsewhere.
type MainThread struct {
	jobs    chan job
	stopped chan struct{}
}

func NewMainThread() *MainThread {
	return &MainThread{
		jobs:    make(chan job),
		stopped: make(chan struct{}),
	}
}

// Loop executes queued work until ctx is done. It must be called exactly once.
func (m *MainThread) Loop(ctx context.Context) {
	defer close(m.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-m.jobs:
			j.fn()
			close(j.done)
		}
	}
}

// Do blocks until fn has run on the loop goroutine.
func (m *MainThread) Do(ctx context.Context, fn func()) error {
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case m.jobs <- j:
	case <-m.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-j.done
	return nil
}
