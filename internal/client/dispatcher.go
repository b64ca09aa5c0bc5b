// Package client is the subscriber side: a local replica of the task list,
// the cooperative edit protocol and the transport adapters that feed them.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Dispatcher runs posted functions one at a time, in order, on a single
// goroutine. State owned by that goroutine needs no locks.
//
// Invoke must not be called from a function running on the dispatcher.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake    chan struct{}
	stopped chan struct{}
	log     *slog.Logger
}

func NewDispatcher(log *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		log:     log.With("component", "dispatcher"),
	}
	go d.loop()
	return d
}

// Post queues fn and returns immediately. It reports false once the
// dispatcher is closed.
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	select {
	case d.wake <- struct{}{}:
	default:
	}
	d.mu.Unlock()
	return true
}

// Invoke runs fn on the dispatcher and waits for it to finish.
func (d *Dispatcher) Invoke(fn func()) error {
	finished := make(chan struct{})
	if !d.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrDispatcherClosed
	}
	<-finished
	return nil
}

// Close runs what is already queued, then stops the goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.wake)
	}
	d.mu.Unlock()
	<-d.stopped
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for {
		_, open := <-d.wake
		for _, fn := range d.take() {
			d.run(fn)
		}
		if !open {
			return
		}
	}
}

func (d *Dispatcher) take() []func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := d.queue
	d.queue = nil
	return batch
}

func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatched function panicked", "error", fmt.Sprint(r))
		}
	}()
	fn()
}
