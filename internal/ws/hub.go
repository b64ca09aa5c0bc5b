package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"tasksync/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Subscriber is the push contract: one-way, no acknowledgment. A returned
// error (or panic) only affects delivery to that subscriber.
type Subscriber interface {
	OnTaskAdded(task domain.Task) error
	OnTaskUpdated(task domain.Task) error
	OnTaskDeleted(id string) error
}

// Hub is the notification fan-out. Subscribers are opaque handles and must be
// comparable (pointers in practice).
type Hub struct {
	subscribers sync.Map // Subscriber -> struct{}
	count       atomic.Int64

	events      chan domain.ChangeEvent
	concurrency int

	done      chan struct{}
	closeOnce sync.Once

	log *slog.Logger
}

func NewHub(queueSize, concurrency int, log *slog.Logger) *Hub {
	return &Hub{
		events:      make(chan domain.ChangeEvent, queueSize),
		concurrency: concurrency,
		done:        make(chan struct{}),
		log:         log.With("component", "hub"),
	}
}

// Subscribe registers s. It returns false if s was already registered.
func (h *Hub) Subscribe(s Subscriber) bool {
	if _, loaded := h.subscribers.LoadOrStore(s, struct{}{}); loaded {
		return false
	}
	h.count.Add(1)
	Subscribers.Inc()
	h.log.Info("subscriber registered", "subscriber", describe(s), "subscribers", h.count.Load())
	return true
}

// Unsubscribe removes s; unknown handles are ignored.
func (h *Hub) Unsubscribe(s Subscriber) {
	if _, loaded := h.subscribers.LoadAndDelete(s); !loaded {
		return
	}
	h.count.Add(-1)
	Subscribers.Dec()
	h.log.Info("subscriber removed", "subscriber", describe(s), "subscribers", h.count.Load())
}

func (h *Hub) Count() int {
	return int(h.count.Load())
}

func (h *Hub) snapshot() []Subscriber {
	var subs []Subscriber
	h.subscribers.Range(func(k, _ any) bool {
		subs = append(subs, k.(Subscriber))
		return true
	})
	return subs
}

// Broadcast delivers ev to every subscriber registered when it starts and
// waits for all deliveries. It returns how many deliveries failed; failing
// subscribers stay registered.
func (h *Hub) Broadcast(ev domain.ChangeEvent) int {
	subs := h.snapshot()
	if len(subs) == 0 {
		return 0
	}

	var failed atomic.Int64
	g := new(errgroup.Group)
	if h.concurrency > 0 {
		g.SetLimit(h.concurrency)
	}
	for _, s := range subs {
		s := s
		g.Go(func() error {
			if err := deliver(s, ev); err != nil {
				failed.Add(1)
				Deliveries.WithLabelValues(string(ev.Kind), "error").Inc()
				h.log.Error("failed to notify subscriber",
					"event", ev.Kind, "task_id", ev.ID, "subscriber", describe(s), "error", err)
				return nil
			}
			Deliveries.WithLabelValues(string(ev.Kind), "ok").Inc()
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load())
}

func deliver(s Subscriber, ev domain.ChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrDelivery, r)
		}
	}()

	switch ev.Kind {
	case domain.EventAdded:
		err = s.OnTaskAdded(ev.Task)
	case domain.EventUpdated:
		err = s.OnTaskUpdated(ev.Task)
	case domain.EventDeleted:
		err = s.OnTaskDeleted(ev.ID)
	default:
		return fmt.Errorf("%w: unknown event kind %q", domain.ErrDelivery, ev.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	return nil
}

// Publish queues ev for Run and returns immediately. When the queue is full
// or the hub is closed the event is dropped: delivery is best-effort.
func (h *Hub) Publish(ev domain.ChangeEvent) {
	select {
	case <-h.done:
		Dropped.Inc()
		h.log.Warn("hub closed, event dropped", "event", ev.Kind, "task_id", ev.ID)
		return
	default:
	}

	select {
	case h.events <- ev:
	default:
		Dropped.Inc()
		h.log.Error("event queue full, event dropped", "event", ev.Kind, "task_id", ev.ID)
	}
}

// Run broadcasts queued events one at a time, so every subscriber observes
// them in the order they were published.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("hub started")
	for {
		select {
		case ev := <-h.events:
			h.Broadcast(ev)
		case <-ctx.Done():
			h.log.Info("hub stopped", "reason", ctx.Err())
			return
		case <-h.done:
			h.log.Info("hub stopped", "reason", "closed")
			return
		}
	}
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func describe(s Subscriber) string {
	if c, ok := s.(*Client); ok {
		return c.ID
	}
	return fmt.Sprintf("%T", s)
}
