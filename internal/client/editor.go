package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tasksync/internal/domain"
)

var (
	ErrTaskLocked     = errors.New("task is locked by another editor")
	ErrAlreadyEditing = errors.New("task is already being edited")
	ErrNotEditing     = errors.New("task is not being edited")
)

type EditState int

const (
	Idle EditState = iota
	Editing
)

func (s EditState) String() string {
	if s == Editing {
		return "editing"
	}
	return "idle"
}

type editSession struct {
	original domain.Task
	saving   bool
}

// Editor drives the advisory lock around free-text edits:
//
//	Idle -BeginEdit-> Editing -Save-> Idle
//	Idle -BeginEdit-> Editing -Cancel-> Idle
//
// The server never checks the flag. Two clients that both see an unlocked
// task before either lock update arrives can both start editing.
type Editor struct {
	replica *Replica
	api     ModifyAPI
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*editSession
}

func NewEditor(replica *Replica, api ModifyAPI, log *slog.Logger) *Editor {
	return &Editor{
		replica:  replica,
		api:      api,
		log:      log.With("component", "editor"),
		sessions: make(map[string]*editSession),
	}
}

func (e *Editor) State(id string) EditState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[id]; ok {
		return Editing
	}
	return Idle
}

// CanEdit reports whether id exists locally and is not locked.
func (e *Editor) CanEdit(id string) bool {
	t, ok := e.replica.Task(id)
	return ok && !t.IsLocked
}

func (e *Editor) CanDelete(id string) bool {
	return e.CanEdit(id)
}

// BeginEdit locks id on the server. If the push fails the session is
// dropped and the task stays Idle.
func (e *Editor) BeginEdit(ctx context.Context, id string) error {
	t, ok := e.replica.Task(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if t.IsLocked {
		return ErrTaskLocked
	}

	e.mu.Lock()
	if _, busy := e.sessions[id]; busy {
		e.mu.Unlock()
		return ErrAlreadyEditing
	}
	e.sessions[id] = &editSession{original: t}
	e.mu.Unlock()

	t.IsLocked = true
	if _, err := e.api.UpdateTask(ctx, t); err != nil {
		e.end(id)
		e.log.Warn("lock push failed", "task_id", id, "error", err)
		return err
	}
	e.log.Debug("editing started", "task_id", id)
	return nil
}

// Draft changes the local description while editing.
func (e *Editor) Draft(id, text string) error {
	if _, err := e.session(id); err != nil {
		return err
	}
	if !e.replica.amend(id, func(t *domain.Task) { t.Description = text }) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return nil
}

// BeginSave marks a save in progress; Cancel is ignored until it ends.
func (e *Editor) BeginSave(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return ErrNotEditing
	}
	s.saving = true
	return nil
}

// Save pushes description and releases the lock. On failure the task stays
// in Editing so the save or a cancel can be retried.
func (e *Editor) Save(ctx context.Context, id, description string) error {
	if err := e.BeginSave(id); err != nil {
		return err
	}
	if err := domain.ValidateDescription(description); err != nil {
		e.endSave(id)
		return err
	}

	t, ok := e.replica.Task(id)
	if !ok {
		// deleted while editing
		e.end(id)
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	t.Description = description
	t.IsLocked = false
	if _, err := e.api.UpdateTask(ctx, t); err != nil {
		e.endSave(id)
		return err
	}
	e.end(id)
	return nil
}

// Cancel reverts the local description and releases the lock.
func (e *Editor) Cancel(ctx context.Context, id string) error {
	s, err := e.session(id)
	if err != nil {
		return err
	}
	if s.saving {
		e.log.Debug("cancel ignored while saving", "task_id", id)
		return nil
	}

	original := s.original.Description
	if !e.replica.amend(id, func(t *domain.Task) { t.Description = original }) {
		e.end(id)
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	t, ok := e.replica.Task(id)
	if !ok {
		e.end(id)
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	t.IsLocked = false
	if _, err := e.api.UpdateTask(ctx, t); err != nil {
		return err
	}
	e.end(id)
	return nil
}

// session returns a copy of the session for id.
func (e *Editor) session(id string) (editSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return editSession{}, ErrNotEditing
	}
	return *s, nil
}

func (e *Editor) endSave(id string) {
	e.mu.Lock()
	if s, ok := e.sessions[id]; ok {
		s.saving = false
	}
	e.mu.Unlock()
}

func (e *Editor) end(id string) {
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
}
