package service

import (
	"context"
	"log/slog"

	"tasksync/internal/domain"
)

// TaskStore is what the modify contract needs from the authoritative store.
type TaskStore interface {
	Add(ctx context.Context, t domain.Task) error
	Update(ctx context.Context, t domain.Task) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (domain.Task, error)
	GetAll(ctx context.Context) ([]domain.Task, error)
}

// ModifyService exposes the store over the request/response contract.
// Every error it returns is a *domain.Fault.
type ModifyService struct {
	store TaskStore
	log   *slog.Logger
}

func NewModifyService(store TaskStore, log *slog.Logger) *ModifyService {
	return &ModifyService{store: store, log: log.With("component", "modify_service")}
}

func (s *ModifyService) AddTask(ctx context.Context, t domain.Task) (bool, error) {
	if err := s.store.Add(ctx, t); err != nil {
		return false, s.fault("error while adding new task", err)
	}
	return true, nil
}

func (s *ModifyService) UpdateTask(ctx context.Context, t domain.Task) (bool, error) {
	if err := s.store.Update(ctx, t); err != nil {
		return false, s.fault("error while updating task", err)
	}
	return true, nil
}

func (s *ModifyService) DeleteTask(ctx context.Context, id string) (bool, error) {
	if err := s.store.Delete(ctx, id); err != nil {
		return false, s.fault("error while deleting task", err)
	}
	return true, nil
}

func (s *ModifyService) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Task{}, s.fault("error while retrieving task", err)
	}
	return t, nil
}

func (s *ModifyService) GetAllTasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, s.fault("error while retrieving existing tasks", err)
	}
	return tasks, nil
}

func (s *ModifyService) fault(message string, err error) *domain.Fault {
	f := domain.NewFault(message, err)
	s.log.Info("returning fault", "code", f.Code, "message", f.Message, "cause", f.Cause)
	return f
}
