package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/manus-bridge/internal/errs"
	"github.com/and161185/manus-bridge/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// TaskRepo implements TaskRepository using PostgreSQL.
// Conversation history lives in a jsonb column; concurrent writers to the
// same row are serialized by the single UPDATE, last write wins.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

const taskColumns = `id, user_id, account_id, remote_task_id, title, status, agent_profile,
task_mode, project_id, task_url, share_url, credit_usage, history, created_at, updated_at`

// Create inserts a new task row.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	hist, err := marshalHistory(t.History)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO tasks (id, user_id, account_id, remote_task_id, title, status, agent_profile,
	task_mode, project_id, task_url, share_url, credit_usage, history)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = r.db.Pool.Exec(ctx, q,
		t.ID, t.UserID, t.AccountID, t.RemoteTaskID, t.Title, string(t.Status), t.AgentProfile,
		t.TaskMode, t.ProjectID, t.TaskURL, t.ShareURL, t.CreditUsage, hist)
	return err
}

// Get selects one task scoped by owning user.
func (r *TaskRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id=$1 AND id=$2`
	row := r.db.Pool.QueryRow(ctx, q, userID, id)
	t, err := scanTask(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// Update overwrites the mutable columns of one row (no version check).
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	hist, err := marshalHistory(t.History)
	if err != nil {
		return err
	}
	const q = `
UPDATE tasks
SET remote_task_id=$3, title=$4, status=$5, task_url=$6, share_url=$7,
	credit_usage=$8, history=$9, updated_at=now()
WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q,
		t.UserID, t.ID, t.RemoteTaskID, t.Title, string(t.Status), t.TaskURL, t.ShareURL,
		t.CreditUsage, hist)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UpdateStatus persists only the status column.
func (r *TaskRepo) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status model.TaskStatus) error {
	const q = `UPDATE tasks SET status=$3, updated_at=now() WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListByUser returns the user's tasks, newest first.
func (r *TaskRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Delete removes one task row.
func (r *TaskRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	const q = `DELETE FROM tasks WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func marshalHistory(msgs []model.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []model.Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return b, nil
}

func scanTask(scan func(dest ...any) error) (*model.Task, error) {
	var (
		t      model.Task
		status string
		hist   []byte
	)
	err := scan(&t.ID, &t.UserID, &t.AccountID, &t.RemoteTaskID, &t.Title, &status, &t.AgentProfile,
		&t.TaskMode, &t.ProjectID, &t.TaskURL, &t.ShareURL, &t.CreditUsage, &hist, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = model.TaskStatus(status)
	if len(hist) > 0 {
		if err := json.Unmarshal(hist, &t.History); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	if t.History == nil {
		t.History = []model.Message{}
	}
	return &t, nil
}
