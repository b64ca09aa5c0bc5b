package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tasksync/internal/domain"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL CHECK (length(description) BETWEEN 1 AND 500),
	is_completed INTEGER NOT NULL DEFAULT 0,
	is_locked INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);`

// SQLiteTaskRepository is the single-node mirror used by local deployments
// and by tests that need a real durable store without a server.
type SQLiteTaskRepository struct {
	db *sql.DB
}

func NewSQLiteTaskRepository(db *sql.DB) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{db: db}
}

func (r *SQLiteTaskRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

func (r *SQLiteTaskRepository) LoadAll(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, description, is_completed, is_locked FROM tasks ORDER BY created_at, rowid`)
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

func (r *SQLiteTaskRepository) Insert(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, description, is_completed, is_locked) VALUES (?, ?, ?, ?)`,
		t.ID, t.Description, t.IsCompleted, t.IsLocked,
	)
	return err
}

func (r *SQLiteTaskRepository) Update(ctx context.Context, t domain.Task) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET description = ?, is_completed = ?, is_locked = ? WHERE id = ?`,
		t.Description, t.IsCompleted, t.IsLocked, t.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLiteTaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *SQLiteTaskRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRowMissing
	}
	return nil
}
