package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-task-manager/internal/domain/entity"
	"github.com/oksasatya/go-task-manager/internal/domain/repository"
)

func seedUser(t *testing.T, s *Store, email string) *entity.User {
	t.Helper()
	u := &entity.User{Email: email, Password: "hash", Name: email}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	s := NewStore()
	seedUser(t, s, "a@test.com")

	err := s.Users().Create(context.Background(), &entity.User{Email: "a@test.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	// emails are compared as stored
	seedUser(t, s, "A@test.com")
}

func TestUserCreate_ConcurrentDuplicates(t *testing.T) {
	s := NewStore()
	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Users().Create(context.Background(), &entity.User{Email: "race@test.com"})
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, repository.ErrDuplicate):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(15), dup.Load())
}

func TestTasks_OwnerIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedUser(t, s, "a@test.com")
	b := seedUser(t, s, "b@test.com")
	repo := s.Tasks()

	task := &entity.Task{Title: "T", Description: "D", UserID: a.ID}
	require.NoError(t, repo.Create(ctx, task))
	assert.Equal(t, entity.TaskOpen, task.Status)

	listB, err := repo.ListByOwner(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, listB)

	_, err = repo.GetByIDForOwner(ctx, task.ID, b.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.Update(ctx, &entity.Task{ID: task.ID, UserID: b.ID, Title: "hack", Status: entity.TaskDone})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteForOwner(ctx, task.ID, b.ID), repository.ErrNotFound)

	got, err := repo.GetByIDForOwner(ctx, task.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)
	assert.Equal(t, entity.TaskOpen, got.Status)
}

func TestTasks_CreateRequiresExistingOwner(t *testing.T) {
	s := NewStore()
	err := s.Tasks().Create(context.Background(), &entity.Task{Title: "T", UserID: "ghost"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTasks_SearchAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedUser(t, s, "a@test.com")
	b := seedUser(t, s, "b@test.com")
	repo := s.Tasks()

	for _, title := range []string{"Write report", "Review report", "Groceries"} {
		require.NoError(t, repo.Create(ctx, &entity.Task{Title: title, UserID: a.ID}))
	}
	require.NoError(t, repo.Create(ctx, &entity.Task{Title: "Report for B", UserID: b.ID}))

	got, err := repo.SearchByOwner(ctx, a.ID, "REPORT", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, task := range got {
		assert.Equal(t, a.ID, task.UserID)
	}

	got, err = repo.SearchByOwner(ctx, a.ID, "report", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDeleteUser_CascadesTasks(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := seedUser(t, s, "a@test.com")
	task := &entity.Task{Title: "T", UserID: a.ID}
	require.NoError(t, s.Tasks().Create(ctx, task))

	s.DeleteUser(a.ID)

	_, err := s.Tasks().GetByIDForOwner(ctx, task.ID, a.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Users().GetByEmail(ctx, "a@test.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
