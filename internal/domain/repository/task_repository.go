package repository

import (
	"context"

	"github.com/oksasatya/go-task-manager/internal/domain/entity"
)

// TaskRepository persists tasks. Every method is scoped by the owner's user
// ID; there is deliberately no way to read or mutate a task by ID alone.
type TaskRepository interface {
	Create(ctx context.Context, t *entity.Task) error
	ListByOwner(ctx context.Context, ownerID string) ([]entity.Task, error)
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*entity.Task, error)
	// Update writes title, description and status of t where both t.ID and
	// t.UserID match. ErrNotFound when no such row exists.
	Update(ctx context.Context, t *entity.Task) error
	DeleteForOwner(ctx context.Context, id, ownerID string) error
	// SearchByOwner matches query against title and description.
	SearchByOwner(ctx context.Context, ownerID, query string, limit int) ([]entity.Task, error)
}
