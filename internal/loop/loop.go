// Package loop implements the single-goroutine event loop that owns all
// controller-visible state. Background work never mutates that state directly;
// it posts closures which run, in order, on the next loop tick.
package loop

import (
	"context"
	"errors"
	"sync"
)

// DefaultQueueSize is the number of pending closures a Loop buffers before
// Post blocks.
const DefaultQueueSize = 256

// ErrStopped is returned when work is submitted to a loop that has stopped.
var ErrStopped = errors.New("event loop stopped")

// Poster accepts closures to be executed on the event loop.
type Poster interface {
	Post(fn func()) bool
}

// Loop runs posted closures sequentially on the goroutine that called Run.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// New creates a loop with the given queue size. A non-positive size uses
// DefaultQueueSize.
func New(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post queues fn for execution. It blocks while the queue is full and
// returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do posts fn and waits until it has run on the loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted closures until ctx is cancelled or Stop is called.
// Closures still queued when the loop stops are discarded.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Stop terminates the loop. It is safe to call more than once and from
// closures running on the loop.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Stopped returns a channel closed once the loop has stopped.
func (l *Loop) Stopped() <-chan struct{} {
	return l.done
}
