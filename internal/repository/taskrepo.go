package repository

import (
	"context"

	"github.com/and161185/manus-bridge/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TaskRepository persists the local view of upstream conversation threads.
type TaskRepository interface {
	// Create inserts a new task row.
	Create(ctx context.Context, t *model.Task) error
	// Get loads one task owned by the user.
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Task, error)
	// Update overwrites the mutable columns of one row. Last write wins:
	// there is no optimistic concurrency check on tasks.
	Update(ctx context.Context, t *model.Task) error
	// UpdateStatus persists only the status column.
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, status model.TaskStatus) error
	// ListByUser returns all tasks of a user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Task, error)
	// Delete removes one task row.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
