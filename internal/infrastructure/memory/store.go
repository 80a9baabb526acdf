// Package memory provides map-backed repositories with the same uniqueness
// and ownership rules as the postgres ones. It backs tests and the
// STORAGE_DRIVER=memory mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-task-manager/internal/domain/entity"
	"github.com/oksasatya/go-task-manager/internal/domain/repository"
)

// Store holds users and tasks behind one lock so that deleting a user can
// cascade to its tasks atomically.
type Store struct {
	mu      sync.RWMutex
	users   map[string]entity.User
	byEmail map[string]string
	tasks   map[string]entity.Task
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:   make(map[string]entity.User),
		byEmail: make(map[string]string),
		tasks:   make(map[string]entity.Task),
		now:     time.Now,
	}
}

func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }
func (s *Store) Tasks() *TaskRepository { return &TaskRepository{s: s} }

// DeleteUser removes a user and every task it owns.
func (s *Store) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return
	}
	delete(s.byEmail, u.Email)
	delete(s.users, id)
	for tid, t := range s.tasks {
		if t.UserID == id {
			delete(s.tasks, tid)
		}
	}
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.byEmail[u.Email]; taken {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	u.ID = uuid.NewString()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	r.s.byEmail[u.Email] = u.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := r.s.users[id]
	return &u, nil
}

type TaskRepository struct {
	s *Store
}

func (r *TaskRepository) Create(_ context.Context, t *entity.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[t.UserID]; !ok {
		// mirrors the tasks.user_id foreign key
		return repository.ErrNotFound
	}
	if t.Status == "" {
		t.Status = entity.TaskOpen
	}
	now := r.s.now()
	t.ID = uuid.NewString()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.tasks[t.ID] = *t
	return nil
}

func (r *TaskRepository) ListByOwner(_ context.Context, ownerID string) ([]entity.Task, error) {
	return r.filter(ownerID, 0, func(entity.Task) bool { return true }), nil
}

func (r *TaskRepository) GetByIDForOwner(_ context.Context, id, ownerID string) (*entity.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tasks[id]
	if !ok || t.UserID != ownerID {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *TaskRepository) Update(_ context.Context, t *entity.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.tasks[t.ID]
	if !ok || cur.UserID != t.UserID {
		return repository.ErrNotFound
	}
	cur.Title = t.Title
	cur.Description = t.Description
	cur.Status = t.Status
	cur.UpdatedAt = r.s.now()
	r.s.tasks[t.ID] = cur
	t.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *TaskRepository) DeleteForOwner(_ context.Context, id, ownerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || t.UserID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

func (r *TaskRepository) SearchByOwner(_ context.Context, ownerID, query string, limit int) ([]entity.Task, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return r.filter(ownerID, limit, func(t entity.Task) bool {
		return strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Description), q)
	}), nil
}

// filter returns the owner's tasks accepted by keep, newest first.
func (r *TaskRepository) filter(ownerID string, limit int, keep func(entity.Task) bool) []entity.Task {
	r.s.mu.RLock()
	out := make([]entity.Task, 0)
	for _, t := range r.s.tasks {
		if t.UserID == ownerID && keep(t) {
			out = append(out, t)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var (
	_ repository.UserRepository = (*UserRepository)(nil)
	_ repository.TaskRepository = (*TaskRepository)(nil)
)
