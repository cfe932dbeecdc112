package service

import (
	"context"
	"errors"
)

// ErrStopped is returned by calls made after the client has shut down.
var ErrStopped = errors.New("client stopped")

const loopBacklog = 256

// eventLoop serializes every state mutation onto one goroutine. Transport
// readers, dial results and timers post closures; API callers use call.
type eventLoop struct {
	events chan func()
	done   chan struct{}
}

func newEventLoop() *eventLoop {
	return &eventLoop{
		events: make(chan func(), loopBacklog),
		done:   make(chan struct{}),
	}
}

// run executes posted closures until ctx is cancelled.
func (l *eventLoop) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.events:
			fn()
		}
	}
}

// post queues fn. It reports false once the loop has stopped.
func (l *eventLoop) post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

// call runs fn on the loop and waits for it to finish.
func (l *eventLoop) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}
