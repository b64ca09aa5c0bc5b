package repository

import (
	"context"
	"errors"

	"tasksync/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRowMissing is returned when an update or delete finds no durable row.
// The store reports it as a persistence failure: memory and mirror disagree.
var ErrRowMissing = errors.New("task row missing from durable store")

// TaskMirror is the durable copy of the task table.
type TaskMirror interface {
	LoadAll(ctx context.Context) ([]domain.Task, error)
	Insert(ctx context.Context, t domain.Task) error
	Update(ctx context.Context, t domain.Task) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// TaskRepository is the Postgres mirror.
type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) LoadAll(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.db.Query(ctx, `SELECT id, description, is_completed, is_locked FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.Description, &t.IsCompleted, &t.IsLocked); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r *TaskRepository) Insert(ctx context.Context, t domain.Task) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tasks (id, description, is_completed, is_locked) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Description, t.IsCompleted, t.IsLocked,
	)
	return err
}

func (r *TaskRepository) Update(ctx context.Context, t domain.Task) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET description = $2, is_completed = $3, is_locked = $4 WHERE id = $1`,
		t.ID, t.Description, t.IsCompleted, t.IsLocked,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRowMissing
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRowMissing
	}
	return nil
}

func (r *TaskRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
