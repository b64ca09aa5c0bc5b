package client

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"tasksync/internal/domain"

	"github.com/google/uuid"
)

// ModifyAPI is the request/response contract the replica sends its
// mutations through. Both the HTTP client and the in-process service
// satisfy it.
type ModifyAPI interface {
	AddTask(ctx context.Context, t domain.Task) (bool, error)
	UpdateTask(ctx context.Context, t domain.Task) (bool, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	GetAllTasks(ctx context.Context) ([]domain.Task, error)
}

// Observer is called on the dispatcher goroutine after an event changed the
// replica. It must not call the replica's blocking read methods.
type Observer func(ev domain.ChangeEvent)

// Replica is a client's local mirror of the task list. All of its state is
// owned by the dispatcher goroutine; events and reads are marshaled there.
//
// Outgoing requests do not touch local state. The replica only changes
// when the server's event comes back, including for this client's own
// mutations.
//
// Until a Sync succeeds every event is kept as well as applied, so it can
// be replayed on top of the snapshot the Sync fetched.
type Replica struct {
	api ModifyAPI
	d   *Dispatcher
	log *slog.Logger

	// dispatcher-owned
	byID      map[string]*domain.Task
	order     []*domain.Task
	selected  *domain.Task
	observers []Observer
	synced    bool
	pending   []domain.ChangeEvent
}

func NewReplica(api ModifyAPI, d *Dispatcher, log *slog.Logger) *Replica {
	return &Replica{
		api:  api,
		d:    d,
		log:  log.With("component", "replica"),
		byID: make(map[string]*domain.Task),
	}
}

// Sync replaces the local list with the server's and replays every event
// received since the fetch began (since construction, for the first Sync).
// It can be called again at any time to resync. Observers are not told
// about the replacement.
func (r *Replica) Sync(ctx context.Context) error {
	if err := r.d.Invoke(func() { r.synced = false }); err != nil {
		return err
	}
	tasks, err := r.api.GetAllTasks(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return r.d.Invoke(func() {
		r.reset(tasks)
		for _, ev := range r.pending {
			r.mutate(ev)
		}
		replayed := len(r.pending)
		r.pending = nil
		r.synced = true
		r.selectFirst()
		r.log.Info("replica synced", "fetched", len(tasks), "replayed", replayed)
	})
}

// reset makes tasks the whole list, keeping the selection when its task
// is still there.
func (r *Replica) reset(tasks []domain.Task) {
	sel := ""
	if r.selected != nil {
		sel = r.selected.ID
	}
	r.byID = make(map[string]*domain.Task, len(tasks))
	r.order = r.order[:0]
	r.selected = nil
	for _, t := range tasks {
		r.add(t)
	}
	if t, ok := r.byID[sel]; ok {
		r.selected = t
	}
}

// HandleEvent queues ev for the dispatcher and returns at once.
func (r *Replica) HandleEvent(ev domain.ChangeEvent) error {
	if !r.d.Post(func() { r.apply(ev) }) {
		return ErrDispatcherClosed
	}
	return nil
}

func (r *Replica) OnTaskAdded(t domain.Task) error   { return r.HandleEvent(domain.Added(t)) }
func (r *Replica) OnTaskUpdated(t domain.Task) error { return r.HandleEvent(domain.Updated(t)) }
func (r *Replica) OnTaskDeleted(id string) error     { return r.HandleEvent(domain.Deleted(id)) }

func (r *Replica) apply(ev domain.ChangeEvent) {
	if !r.synced {
		r.pending = append(r.pending, ev)
	}
	changed, known := r.mutate(ev)
	if !known {
		r.warnUnknown(ev)
		return
	}
	if !changed {
		return
	}
	r.selectFirst()
	for _, fn := range r.observers {
		fn(ev)
	}
}

// mutate changes local state for ev. known is false for an Updated or
// Deleted naming a task that is not listed.
func (r *Replica) mutate(ev domain.ChangeEvent) (changed, known bool) {
	switch ev.Kind {
	case domain.EventAdded:
		return r.add(ev.Task), true
	case domain.EventUpdated:
		t, ok := r.byID[ev.ID]
		if !ok {
			return false, false
		}
		t.CopyFieldsFrom(ev.Task)
		return true, true
	case domain.EventDeleted:
		ok := r.remove(ev.ID)
		return ok, ok
	default:
		r.log.Warn("unknown event kind", "event", ev.Kind, "task_id", ev.ID)
		return false, true
	}
}

func (r *Replica) add(t domain.Task) bool {
	if t.ID == "" {
		return false
	}
	if _, ok := r.byID[t.ID]; ok {
		return false
	}
	p := &t
	r.byID[t.ID] = p
	r.order = append(r.order, p)
	return true
}

func (r *Replica) remove(id string) bool {
	t, ok := r.byID[id]
	if !ok {
		return false
	}
	if r.selected == t {
		r.selected = nil
	}
	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(x *domain.Task) bool { return x == t })
	return true
}

// selectFirst selects the first task when something is listed and nothing
// is selected.
func (r *Replica) selectFirst() {
	if r.selected == nil && len(r.order) > 0 {
		r.selected = r.order[0]
	}
}

func (r *Replica) warnUnknown(ev domain.ChangeEvent) {
	r.log.Warn("event for unknown task ignored",
		"event", ev.Kind, "task_id", ev.ID,
		"error", fmt.Errorf("%w: %s for %q", domain.ErrReplicaInconsistency, ev.Kind, ev.ID))
}

// amend changes a local task without going through the server. Used by the
// editor for draft text.
func (r *Replica) amend(id string, fn func(t *domain.Task)) bool {
	found := false
	err := r.d.Invoke(func() {
		if t, ok := r.byID[id]; ok {
			fn(t)
			found = true
		}
	})
	return err == nil && found
}

// Observe registers fn for every applied change.
func (r *Replica) Observe(fn Observer) {
	_ = r.d.Invoke(func() { r.observers = append(r.observers, fn) })
}

// Tasks returns copies of the listed tasks in arrival order.
func (r *Replica) Tasks() []domain.Task {
	var out []domain.Task
	_ = r.d.Invoke(func() {
		out = make([]domain.Task, 0, len(r.order))
		for _, t := range r.order {
			out = append(out, *t)
		}
	})
	return out
}

func (r *Replica) Task(id string) (domain.Task, bool) {
	var (
		out domain.Task
		ok  bool
	)
	_ = r.d.Invoke(func() {
		var t *domain.Task
		if t, ok = r.byID[id]; ok {
			out = *t
		}
	})
	return out, ok
}

func (r *Replica) Len() int {
	n := 0
	_ = r.d.Invoke(func() { n = len(r.order) })
	return n
}

func (r *Replica) Selected() (domain.Task, bool) {
	var (
		out domain.Task
		ok  bool
	)
	_ = r.d.Invoke(func() {
		if r.selected != nil {
			out, ok = *r.selected, true
		}
	})
	return out, ok
}

// Select makes id the selected task. An empty id clears the selection.
func (r *Replica) Select(id string) bool {
	ok := false
	_ = r.d.Invoke(func() {
		if id == "" {
			r.selected, ok = nil, true
			return
		}
		if t, found := r.byID[id]; found {
			r.selected, ok = t, true
		}
	})
	return ok
}

// Flush waits until every event queued so far has been applied.
func (r *Replica) Flush() {
	_ = r.d.Invoke(func() {})
}

// AddTask creates a task with a fresh id. The local list changes when the
// Added event arrives.
func (r *Replica) AddTask(ctx context.Context, description string) (domain.Task, error) {
	t := domain.Task{ID: uuid.NewString(), Description: description}
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	if _, err := r.api.AddTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (r *Replica) UpdateTask(ctx context.Context, t domain.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.api.UpdateTask(ctx, t)
	return err
}

func (r *Replica) DeleteTask(ctx context.Context, id string) error {
	_, err := r.api.DeleteTask(ctx, id)
	return err
}

// ToggleComplete flips the completion flag of the last known version of id.
func (r *Replica) ToggleComplete(ctx context.Context, id string) error {
	t, ok := r.Task(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	t.IsCompleted = !t.IsCompleted
	_, err := r.api.UpdateTask(ctx, t)
	return err
}
