package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-task-manager/internal/domain/entity"
	repo "github.com/oksasatya/go-task-manager/internal/domain/repository"
	"github.com/oksasatya/go-task-manager/pkg/metrics"
)

const (
	defaultSearchSize = 10
	maxSearchSize     = 50
)

// TaskIndex is an optional full-text index of tasks. Implementations must
// restrict Search to ownerID's documents.
type TaskIndex interface {
	Index(ctx context.Context, t *entity.Task) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, ownerID, query string, size int) ([]entity.Task, error)
}

// TaskService is the ownership guard in front of the task store: every
// method takes the caller's user ID and never reaches a task through any
// other key.
type TaskService struct {
	Repo    repo.TaskRepository
	Index   TaskIndex
	Logger  *logrus.Logger
	Metrics *metrics.Collector
}

func NewTaskService(repo repo.TaskRepository, index TaskIndex, logger *logrus.Logger) *TaskService {
	return &TaskService{Repo: repo, Index: index, Logger: logger}
}

type CreateTaskInput struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=10000"`
}

// UpdateTaskInput holds the fields to merge; nil fields are left untouched.
type UpdateTaskInput struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Status      *string `json:"status" validate:"omitempty,taskstatus"`
}

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrInvalidToken
	}
	return nil
}

func (s *TaskService) record(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrTaskNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrInvalidInput):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.Metrics.RecordTaskOp(op, outcome)
}

// Create stores a new OPEN task owned by ownerID.
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput, ownerID string) (t *entity.Task, err error) {
	defer func() { s.record("create", err) }()
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	t = &entity.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      entity.TaskOpen,
		UserID:      ownerID,
	}
	if err := s.Repo.Create(ctx, t); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// the token outlived its user
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.index(ctx, t)
	return t, nil
}

// FindAll lists ownerID's tasks, newest first.
func (s *TaskService) FindAll(ctx context.Context, ownerID string) ([]entity.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	tasks, err := s.Repo.ListByOwner(ctx, ownerID)
	if err != nil {
		s.record("list", err)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	s.record("list", nil)
	return tasks, nil
}

// FindOne returns the task only if ownerID owns it. A foreign task and a
// missing one both yield ErrTaskNotFound.
func (s *TaskService) FindOne(ctx context.Context, id, ownerID string) (t *entity.Task, err error) {
	defer func() { s.record("get", err) }()
	return s.findOne(ctx, id, ownerID)
}

func (s *TaskService) findOne(ctx context.Context, id, ownerID string) (*entity.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	t, err := s.Repo.GetByIDForOwner(ctx, id, ownerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if !t.OwnedBy(ownerID) {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// Update merges the non-nil fields of in into ownerID's task.
func (s *TaskService) Update(ctx context.Context, id string, in UpdateTaskInput, ownerID string) (t *entity.Task, err error) {
	defer func() { s.record("update", err) }()
	if err := validate(in); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			if _, bad := verr.Fields["status"]; bad {
				verr.Cause = ErrInvalidStatus
			}
		}
		return nil, err
	}
	if in.Status != nil && !entity.TaskStatus(*in.Status).Valid() {
		return nil, &ValidationError{
			Fields: map[string]string{"status": "must be one of OPEN, IN_PROGRESS, DONE"},
			Cause:  ErrInvalidStatus,
		}
	}

	t, err = s.findOne(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Status != nil {
		t.Status = entity.TaskStatus(*in.Status)
	}

	if err := s.Repo.Update(ctx, t); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// deleted between the read and the write
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	s.index(ctx, t)
	return t, nil
}

// Remove hard-deletes ownerID's task.
func (s *TaskService) Remove(ctx context.Context, id, ownerID string) (err error) {
	defer func() { s.record("delete", err) }()
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if err := s.Repo.DeleteForOwner(ctx, id, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	if s.Index != nil {
		if err := s.Index.Remove(ctx, id); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("task_id", id).Warn("remove task from index failed")
		}
	}
	return nil
}

// Search finds ownerID's tasks matching query. The index is used when
// configured; the store's own search is the fallback.
func (s *TaskService) Search(ctx context.Context, ownerID, query string, size int) ([]entity.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Fields: map[string]string{"q": "is required"}}
	}
	switch {
	case size <= 0:
		size = defaultSearchSize
	case size > maxSearchSize:
		size = maxSearchSize
	}

	if s.Index != nil {
		found, err := s.Index.Search(ctx, ownerID, query, size)
		if err == nil {
			out := make([]entity.Task, 0, len(found))
			for i := range found {
				if found[i].OwnedBy(ownerID) {
					out = append(out, found[i])
				}
			}
			s.record("search", nil)
			return out, nil
		}
		if s.Logger != nil {
			s.Logger.WithError(err).Warn("task index search failed, falling back to store")
		}
	}

	tasks, err := s.Repo.SearchByOwner(ctx, ownerID, query, size)
	if err != nil {
		s.record("search", err)
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	s.record("search", nil)
	return tasks, nil
}

func (s *TaskService) index(ctx context.Context, t *entity.Task) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, t); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("task_id", t.ID).Warn("index task failed")
	}
}
