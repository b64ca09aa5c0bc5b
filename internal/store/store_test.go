package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"tasksync/internal/domain"
	"tasksync/internal/logger"
	"tasksync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMirror is an in-memory TaskMirror with error injection.
type fakeMirror struct {
	mu   sync.Mutex
	rows map[string]domain.Task
	// writes records every successful durable write in completion order.
	writes []domain.Task

	LoadErr   error
	InsertErr error
	UpdateErr error
	DeleteErr error
}

func newFakeMirror(rows ...domain.Task) *fakeMirror {
	m := &fakeMirror{rows: make(map[string]domain.Task)}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *fakeMirror) LoadAll(context.Context) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	var res []domain.Task
	for _, r := range m.rows {
		res = append(res, r)
	}
	return res, nil
}

func (m *fakeMirror) Insert(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.rows[t.ID] = t
	m.writes = append(m.writes, t)
	return nil
}

func (m *fakeMirror) Update(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.rows[t.ID]; !ok {
		return repository.ErrRowMissing
	}
	m.rows[t.ID] = t
	m.writes = append(m.writes, t)
	return nil
}

func (m *fakeMirror) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.rows, id)
	return nil
}

func (m *fakeMirror) Ping(context.Context) error { return nil }

func (m *fakeMirror) row(id string) (domain.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	return t, ok
}

func (m *fakeMirror) lastWrite() domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[len(m.writes)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (p *recordingPublisher) Publish(ev domain.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) all() []domain.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ChangeEvent(nil), p.events...)
}

func newTestStore(t *testing.T, rows ...domain.Task) (*TaskStore, *fakeMirror, *recordingPublisher) {
	t.Helper()
	mirror := newFakeMirror(rows...)
	pub := &recordingPublisher{}
	s := NewTaskStore(mirror, pub, logger.Discard())
	require.NoError(t, s.Load(context.Background()))
	return s, mirror, pub
}

func TestAddThenGet(t *testing.T) {
	s, mirror, pub := newTestStore(t)
	ctx := context.Background()

	task := domain.Task{ID: "A", Description: "Buy milk", IsCompleted: true}
	require.NoError(t, s.Add(ctx, task))

	got, err := s.Get(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, task, got)

	row, ok := mirror.row("A")
	require.True(t, ok)
	require.Equal(t, task, row)

	require.Equal(t, []domain.ChangeEvent{domain.Added(task)}, pub.all())
}

func TestAdd_Validation(t *testing.T) {
	s, _, pub := newTestStore(t)
	ctx := context.Background()

	cases := []domain.Task{
		{ID: "", Description: "no id"},
		{ID: "x", Description: ""},
		{ID: "y", Description: strings.Repeat("é", domain.MaxDescriptionLength+1)},
	}
	for _, tc := range cases {
		require.ErrorIs(t, s.Add(ctx, tc), domain.ErrValidation)
	}

	// 500 multi-byte characters is still valid
	require.NoError(t, s.Add(ctx, domain.Task{ID: "z", Description: strings.Repeat("é", domain.MaxDescriptionLength)}))
	require.Len(t, pub.all(), 1)
}

func TestAdd_DuplicateLeavesStoreUnchanged(t *testing.T) {
	s, _, pub := newTestStore(t)
	ctx := context.Background()

	first := domain.Task{ID: "A", Description: "first"}
	require.NoError(t, s.Add(ctx, first))

	err := s.Add(ctx, domain.Task{ID: "A", Description: "second"})
	require.ErrorIs(t, err, domain.ErrDuplicateID)

	got, err := s.Get(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, first, got)
	require.Len(t, pub.all(), 1, "failed add must not emit")
}

func TestAdd_ConcurrentSameIDOnlyOneWins(t *testing.T) {
	s, _, pub := newTestStore(t)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Add(ctx, domain.Task{ID: "race", Description: "contender"})
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, domain.ErrDuplicateID)
	}
	require.Equal(t, 1, ok)
	require.Len(t, pub.all(), 1)
}

func TestUpdate_NotFound(t *testing.T) {
	s, _, pub := newTestStore(t)

	err := s.Update(context.Background(), domain.Task{ID: "ghost", Description: "boo"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, pub.all())
}

func TestUpdate_IgnoresLockFlag(t *testing.T) {
	locked := domain.Task{ID: "L", Description: "being edited", IsLocked: true}
	s, _, pub := newTestStore(t, locked)
	ctx := context.Background()

	next := domain.Task{ID: "L", Description: "overwritten anyway", IsLocked: true}
	require.NoError(t, s.Update(ctx, next))

	got, err := s.Get(ctx, "L")
	require.NoError(t, err)
	require.Equal(t, next, got)
	require.Equal(t, []domain.ChangeEvent{domain.Updated(next)}, pub.all())
}

func TestConcurrentUpdates_LastDurableWriteWins(t *testing.T) {
	s, mirror, pub := newTestStore(t, domain.Task{ID: "A", Description: "start"})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, desc := range []string{"from client one", "from client two"} {
		desc := desc
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, domain.Task{ID: "A", Description: desc}))
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, mirror.lastWrite(), got)

	events := pub.all()
	require.Len(t, events, 2, "no update event may be lost")
	require.Equal(t, got, events[1].Task)
}

func TestDelete(t *testing.T) {
	s, mirror, pub := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, domain.Task{ID: "A", Description: "Buy milk"}))
	require.NoError(t, s.Delete(ctx, "A"))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
	_, ok := mirror.row("A")
	require.False(t, ok)

	events := pub.all()
	require.Len(t, events, 2)
	require.Equal(t, domain.Deleted("A"), events[1])

	require.ErrorIs(t, s.Delete(ctx, "A"), domain.ErrNotFound)
	require.Len(t, pub.all(), 2)
}

func TestPersistenceFailure_MemoryUnchanged(t *testing.T) {
	s, mirror, pub := newTestStore(t, domain.Task{ID: "A", Description: "kept"})
	ctx := context.Background()
	boom := errors.New("disk full")

	mirror.InsertErr = boom
	err := s.Add(ctx, domain.Task{ID: "B", Description: "lost"})
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.ErrorIs(t, err, boom)
	_, err = s.Get(ctx, "B")
	require.ErrorIs(t, err, domain.ErrNotFound)

	mirror.UpdateErr = boom
	require.ErrorIs(t, s.Update(ctx, domain.Task{ID: "A", Description: "changed"}), domain.ErrPersistence)
	got, err := s.Get(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, "kept", got.Description)

	mirror.DeleteErr = boom
	require.ErrorIs(t, s.Delete(ctx, "A"), domain.ErrPersistence)
	_, err = s.Get(ctx, "A")
	require.NoError(t, err)

	require.Empty(t, pub.all())
}

func TestLoad_SkipsRowsWithoutID(t *testing.T) {
	s, _, _ := newTestStore(t,
		domain.Task{ID: "A", Description: "good"},
		domain.Task{ID: "", Description: "orphan"},
	)
	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "A", all[0].ID)
}

func TestLoad_Error(t *testing.T) {
	mirror := newFakeMirror()
	mirror.LoadErr = errors.New("connection refused")
	s := NewTaskStore(mirror, nil, logger.Discard())
	require.Error(t, s.Load(context.Background()))
}

func TestGetAll_CreationOrder(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	ids := []string{"c", "a", "b", "d"}
	for _, id := range ids {
		require.NoError(t, s.Add(ctx, domain.Task{ID: id, Description: "task " + id}))
	}
	require.NoError(t, s.Update(ctx, domain.Task{ID: "c", Description: "updated keeps position"}))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	var got []string
	for _, task := range all {
		got = append(got, task.ID)
	}
	require.Equal(t, ids, got)
}
