// Package search keeps an Elasticsearch copy of tasks for full-text lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/go-task-manager/internal/domain/entity"
)

const requestTimeout = 3 * time.Second

// TaskIndex stores one document per task, keyed by task ID.
type TaskIndex struct {
	ES        *elasticsearch.Client
	IndexName string
}

func NewTaskIndex(es *elasticsearch.Client, index string) *TaskIndex {
	return &TaskIndex{ES: es, IndexName: index}
}

type taskDoc struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toDoc(t *entity.Task) taskDoc {
	return taskDoc{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (d taskDoc) task() entity.Task {
	return entity.Task{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Status:      entity.TaskStatus(d.Status),
		UserID:      d.UserID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// EnsureIndex creates the index with keyword mappings for user_id and status
// when it does not exist yet.
func (x *TaskIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := esapi.IndicesExistsRequest{Index: []string{x.IndexName}}.Do(c, x.ES)
	if err != nil {
		return fmt.Errorf("check index %s: %w", x.IndexName, err)
	}
	_ = res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":          map[string]any{"type": "keyword"},
				"user_id":     map[string]any{"type": "keyword"},
				"status":      map[string]any{"type": "keyword"},
				"title":       map[string]any{"type": "text"},
				"description": map[string]any{"type": "text"},
				"created_at":  map[string]any{"type": "date"},
				"updated_at":  map[string]any{"type": "date"},
			},
		},
	}
	b, _ := json.Marshal(mapping)
	res, err = esapi.IndicesCreateRequest{Index: x.IndexName, Body: bytes.NewReader(b)}.Do(c, x.ES)
	if err != nil {
		return fmt.Errorf("create index %s: %w", x.IndexName, err)
	}
	return checkResponse(res, "create index")
}

func (x *TaskIndex) Index(ctx context.Context, t *entity.Task) error {
	b, err := json.Marshal(toDoc(t))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.IndexName, DocumentID: t.ID, Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.ES)
	if err != nil {
		return fmt.Errorf("index task %s: %w", t.ID, err)
	}
	return checkResponse(res, "index task")
}

func (x *TaskIndex) Remove(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{Index: x.IndexName, DocumentID: id}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.ES)
	if err != nil {
		return fmt.Errorf("remove task %s: %w", id, err)
	}
	if res.StatusCode == 404 {
		_ = res.Body.Close()
		return nil
	}
	return checkResponse(res, "remove task")
}

// Search runs a multi_match over title and description, filtered to
// ownerID's documents.
func (x *TaskIndex) Search(ctx context.Context, ownerID, q string, size int) ([]entity.Task, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  q,
						"fields": []string{"title^2", "description"},
					},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"user_id": ownerID}},
				},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := x.ES.Search(x.ES.Search.WithContext(c), x.ES.Search.WithIndex(x.IndexName), x.ES.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("search tasks: %s", res.Status())
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Source taskDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	tasks := make([]entity.Task, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		tasks = append(tasks, h.Source.task())
	}
	return tasks, nil
}

func checkResponse(res *esapi.Response, op string) error {
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s: %s: %s", op, res.Status(), bytes.TrimSpace(body))
	}
	return nil
}
