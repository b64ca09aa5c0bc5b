package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tasksync/internal/domain"
	"tasksync/internal/logger"

	"github.com/stretchr/testify/require"
)

type stubStore struct {
	err   error
	tasks []domain.Task
}

func (s *stubStore) Add(context.Context, domain.Task) error    { return s.err }
func (s *stubStore) Update(context.Context, domain.Task) error { return s.err }
func (s *stubStore) Delete(context.Context, string) error      { return s.err }
func (s *stubStore) Get(_ context.Context, id string) (domain.Task, error) {
	if s.err != nil {
		return domain.Task{}, s.err
	}
	return domain.Task{ID: id, Description: "found"}, nil
}
func (s *stubStore) GetAll(context.Context) ([]domain.Task, error) { return s.tasks, s.err }

func TestModifyService_Success(t *testing.T) {
	svc := NewModifyService(&stubStore{tasks: []domain.Task{{ID: "A", Description: "x"}}}, logger.Discard())
	ctx := context.Background()

	ok, err := svc.AddTask(ctx, domain.Task{ID: "A", Description: "x"})
	require.NoError(t, err)
	require.True(t, ok)

	all, err := svc.GetAllTasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestModifyService_Faults(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code domain.FaultCode
		is   error
	}{
		{"validation", fmt.Errorf("%w: empty id", domain.ErrValidation), domain.FaultValidation, domain.ErrValidation},
		{"not found", fmt.Errorf("%w: A", domain.ErrNotFound), domain.FaultNotFound, domain.ErrNotFound},
		{"duplicate", fmt.Errorf("%w: A", domain.ErrDuplicateID), domain.FaultDuplicateID, domain.ErrDuplicateID},
		{"persistence", fmt.Errorf("%w: insert: %w", domain.ErrPersistence, errors.New("disk full")), domain.FaultPersistence, domain.ErrPersistence},
		{"unexpected", errors.New("boom"), domain.FaultInternal, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewModifyService(&stubStore{err: tc.err}, logger.Discard())

			ok, err := svc.UpdateTask(context.Background(), domain.Task{ID: "A", Description: "x"})
			require.False(t, ok)

			var f *domain.Fault
			require.ErrorAs(t, err, &f)
			require.Equal(t, tc.code, f.Code)
			require.Equal(t, "error while updating task", f.Message)
			require.Equal(t, tc.err.Error(), f.Cause)
			if tc.is != nil {
				require.ErrorIs(t, err, tc.is)
			}
		})
	}
}
