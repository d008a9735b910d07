package processor

import (
	"context"
	"sync"
	"time"
)

// dispatcher runs observer notifications on one goroutine, in the order they
// were queued. Queueing never blocks, so neither Handle nor the apply loop
// waits on journal or notification I/O.
type dispatcher struct {
	observers []Observer
	timeout   time.Duration

	mu     sync.Mutex
	queue  []func(ctx context.Context, o Observer)
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newDispatcher(observers []Observer, timeout time.Duration) *dispatcher {
	d := &dispatcher{
		observers: observers,
		timeout:   timeout,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// post queues fn for every observer. It is a no-op after close.
func (d *dispatcher) post(fn func(ctx context.Context, o Observer)) {
	if len(d.observers) == 0 {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, fn := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			for _, o := range d.observers {
				fn(ctx, o)
			}
			cancel()
		}

		if len(batch) == 0 {
			if closed {
				return
			}
			<-d.wake
		}
	}
}

// close stops accepting notifications and waits for the queue to drain.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}
