package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/go-task-manager/internal/domain/entity"
	"github.com/oksasatya/go-task-manager/internal/domain/repository"
)

const taskColumns = `id, title, description, status, user_id, created_at, updated_at`

// TaskRepository stores tasks in the tasks table. Each statement carries
// user_id in its WHERE clause.
type TaskRepository struct {
	db DBTX
}

func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

func scanTask(row pgx.Row) (*entity.Task, error) {
	t := &entity.Task{}
	var status string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = entity.TaskStatus(status)
	return t, nil
}

func (r *TaskRepository) Create(ctx context.Context, t *entity.Task) error {
	if t.Status == "" {
		t.Status = entity.TaskOpen
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO tasks (title, description, status, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, t.Title, t.Description, string(t.Status), t.UserID)

	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return classify("create task", err)
	}
	return nil
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]entity.Task, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, ownerID)
	if err != nil {
		return nil, classify("list tasks", err)
	}
	return collectTasks("list tasks", rows)
}

func (r *TaskRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*entity.Task, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`, id, ownerID)

	t, err := scanTask(row)
	if err != nil {
		return nil, classify("get task", err)
	}
	return t, nil
}

func (r *TaskRepository) Update(ctx context.Context, t *entity.Task) error {
	row := r.db.QueryRow(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, updated_at = now()
		WHERE id = $4 AND user_id = $5
		RETURNING updated_at
	`, t.Title, t.Description, string(t.Status), t.ID, t.UserID)

	if err := row.Scan(&t.UpdatedAt); err != nil {
		return classify("update task", err)
	}
	return nil
}

func (r *TaskRepository) DeleteForOwner(ctx context.Context, id, ownerID string) error {
	res, err := r.db.Exec(ctx, `
		DELETE FROM tasks
		WHERE id = $1 AND user_id = $2
	`, id, ownerID)
	if err != nil {
		return classify("delete task", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) SearchByOwner(ctx context.Context, ownerID, query string, limit int) ([]entity.Task, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1 AND (title ILIKE $2 OR description ILIKE $2)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, ownerID, likePattern(query), limit)
	if err != nil {
		return nil, classify("search tasks", err)
	}
	return collectTasks("search tasks", rows)
}

func collectTasks(op string, rows pgx.Rows) ([]entity.Task, error) {
	defer rows.Close()
	out := make([]entity.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns free text into a contains-pattern for ILIKE.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(q)) + "%"
}

var _ repository.TaskRepository = (*TaskRepository)(nil)
