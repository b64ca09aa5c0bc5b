// Package store holds the authoritative task collection and its durable mirror.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"tasksync/internal/domain"
	"tasksync/internal/repository"
)

// Publisher receives one event per committed mutation. Publish must not block.
type Publisher interface {
	Publish(ev domain.ChangeEvent)
}

type entry struct {
	task domain.Task
	seq  uint64
}

// TaskStore is safe for concurrent use. Every mutation writes the durable
// mirror first and touches memory only after that write succeeded, so a
// failed mirror write leaves both copies unchanged.
//
// Update does not look at IsLocked: the lock flag is advisory and enforced
// by clients only.
type TaskStore struct {
	tasks  sync.Map // id -> *entry
	locks  keyLocks
	seq    atomic.Uint64
	mirror repository.TaskMirror
	pub    Publisher
	log    *slog.Logger
}

func NewTaskStore(mirror repository.TaskMirror, pub Publisher, log *slog.Logger) *TaskStore {
	return &TaskStore{
		mirror: mirror,
		pub:    pub,
		log:    log.With("component", "store"),
	}
}

// Load fills memory from the mirror. Rows without an id are skipped.
func (s *TaskStore) Load(ctx context.Context) error {
	rows, err := s.mirror.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load tasks from durable store: %w", err)
	}

	loaded := 0
	for _, t := range rows {
		if t.ID == "" {
			s.log.Error("invalid task row in durable store", "description", t.Description)
			continue
		}
		if _, exists := s.tasks.LoadOrStore(t.ID, &entry{task: t, seq: s.seq.Add(1)}); !exists {
			loaded++
			TaskCount.Inc()
		}
	}
	s.log.Info("task store loaded", "tasks", loaded)
	return nil
}

func (s *TaskStore) Add(ctx context.Context, t domain.Task) error {
	if err := t.Validate(); err != nil {
		return s.fail("add", t.ID, err)
	}

	unlock := s.locks.lock(t.ID)
	defer unlock()

	if _, ok := s.tasks.Load(t.ID); ok {
		return s.fail("add", t.ID, fmt.Errorf("%w: %s", domain.ErrDuplicateID, t.ID))
	}
	if err := s.mirror.Insert(ctx, t); err != nil {
		return s.fail("add", t.ID, fmt.Errorf("%w: insert: %w", domain.ErrPersistence, err))
	}

	s.tasks.Store(t.ID, &entry{task: t, seq: s.seq.Add(1)})
	TaskCount.Inc()
	s.commit("add", domain.Added(t))
	return nil
}

func (s *TaskStore) Update(ctx context.Context, t domain.Task) error {
	if err := t.Validate(); err != nil {
		return s.fail("update", t.ID, err)
	}

	unlock := s.locks.lock(t.ID)
	defer unlock()

	cur, ok := s.load(t.ID)
	if !ok {
		return s.fail("update", t.ID, fmt.Errorf("%w: %s", domain.ErrNotFound, t.ID))
	}

	next := cur.task
	next.CopyFieldsFrom(t)
	if err := s.mirror.Update(ctx, next); err != nil {
		return s.fail("update", t.ID, fmt.Errorf("%w: update: %w", domain.ErrPersistence, err))
	}

	s.tasks.Store(t.ID, &entry{task: next, seq: cur.seq})
	s.commit("update", domain.Updated(next))
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return s.fail("delete", id, fmt.Errorf("%w: empty task id", domain.ErrValidation))
	}

	unlock := s.locks.lock(id)
	defer unlock()

	if _, ok := s.load(id); !ok {
		return s.fail("delete", id, fmt.Errorf("%w: %s", domain.ErrNotFound, id))
	}
	if err := s.mirror.Delete(ctx, id); err != nil {
		return s.fail("delete", id, fmt.Errorf("%w: delete: %w", domain.ErrPersistence, err))
	}

	s.tasks.Delete(id)
	TaskCount.Dec()
	s.commit("delete", domain.Deleted(id))
	return nil
}

func (s *TaskStore) Get(_ context.Context, id string) (domain.Task, error) {
	e, ok := s.load(id)
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return e.task, nil
}

// GetAll returns a snapshot in creation order.
func (s *TaskStore) GetAll(_ context.Context) ([]domain.Task, error) {
	var entries []*entry
	s.tasks.Range(func(_, v any) bool {
		entries = append(entries, v.(*entry))
		return true
	})
	slices.SortFunc(entries, func(a, b *entry) int {
		return cmp.Compare(a.seq, b.seq)
	})

	res := make([]domain.Task, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.task)
	}
	return res, nil
}

// Ping reports whether the durable mirror is reachable.
func (s *TaskStore) Ping(ctx context.Context) error {
	return s.mirror.Ping(ctx)
}

func (s *TaskStore) load(id string) (*entry, bool) {
	v, ok := s.tasks.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

// commit publishes while the id lock is still held, so events for one id
// are queued in commit order.
func (s *TaskStore) commit(op string, ev domain.ChangeEvent) {
	Mutations.WithLabelValues(op, "ok").Inc()
	s.log.Debug("task committed", "op", op, "id", ev.ID)
	if s.pub != nil {
		s.pub.Publish(ev)
	}
}

func (s *TaskStore) fail(op, id string, err error) error {
	Mutations.WithLabelValues(op, string(domain.CodeOf(err))).Inc()
	if errors.Is(err, domain.ErrPersistence) {
		s.log.Error("durable write failed", "op", op, "id", id, "error", err)
	} else {
		s.log.Warn("task mutation rejected", "op", op, "id", id, "error", err)
	}
	return err
}
