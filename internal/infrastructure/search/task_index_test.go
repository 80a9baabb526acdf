package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-task-manager/internal/domain/entity"
)

type recorded struct {
	method string
	path   string
	body   string
}

type fakeES struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	reply    string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, body: string(b)})
	status, reply := f.status, f.reply
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if reply == "" {
		reply = "{}"
	}
	_, _ = io.WriteString(w, reply)
}

func newTestIndex(t *testing.T, f *fakeES) *TaskIndex {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewTaskIndex(es, "tasks")
}

func TestIndex_PutsDocumentByID(t *testing.T) {
	f := &fakeES{}
	x := newTestIndex(t, f)

	task := &entity.Task{ID: "t1", Title: "Write", Description: "report", Status: entity.TaskOpen, UserID: "u1", CreatedAt: time.Now()}
	require.NoError(t, x.Index(context.Background(), task))

	require.Len(t, f.requests, 1)
	assert.Equal(t, http.MethodPut, f.requests[0].method)
	assert.Equal(t, "/tasks/_doc/t1", f.requests[0].path)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.requests[0].body), &doc))
	assert.Equal(t, "u1", doc["user_id"])
	assert.Equal(t, "OPEN", doc["status"])
}

func TestIndex_ErrorStatus(t *testing.T) {
	f := &fakeES{status: http.StatusBadRequest, reply: `{"error":"mapper_parsing_exception"}`}
	x := newTestIndex(t, f)

	err := x.Index(context.Background(), &entity.Task{ID: "t1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestRemove_MissingDocumentIsNotAnError(t *testing.T) {
	f := &fakeES{status: http.StatusNotFound, reply: `{"result":"not_found"}`}
	x := newTestIndex(t, f)

	require.NoError(t, x.Remove(context.Background(), "t1"))
	require.Len(t, f.requests, 1)
	assert.Equal(t, http.MethodDelete, f.requests[0].method)
	assert.Equal(t, "/tasks/_doc/t1", f.requests[0].path)
}

func TestSearch_FiltersByOwner(t *testing.T) {
	f := &fakeES{reply: `{"hits":{"hits":[{"_source":{"id":"t1","title":"Write report","status":"DONE","user_id":"u1"}}]}}`}
	x := newTestIndex(t, f)

	got, err := x.Search(context.Background(), "u1", "report", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, entity.TaskDone, got[0].Status)
	assert.Equal(t, "u1", got[0].UserID)

	require.Len(t, f.requests, 1)
	assert.True(t, strings.HasSuffix(f.requests[0].path, "/tasks/_search"))
	body := f.requests[0].body
	assert.Contains(t, body, `"term":{"user_id":"u1"}`)
	assert.Contains(t, body, `"size":5`)
	assert.Contains(t, body, `"title^2"`)
}

func TestSearch_ErrorStatus(t *testing.T) {
	f := &fakeES{status: http.StatusInternalServerError}
	x := newTestIndex(t, f)

	_, err := x.Search(context.Background(), "u1", "report", 5)
	assert.Error(t, err)
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	f := &fakeES{status: http.StatusNotFound}
	x := newTestIndex(t, f)

	// every request answers 404, so the create call reports an error
	// after the existence check
	err := x.EnsureIndex(context.Background())
	require.Error(t, err)
	require.Len(t, f.requests, 2)
	assert.Equal(t, http.MethodHead, f.requests[0].method)
	assert.Equal(t, http.MethodPut, f.requests[1].method)
	assert.Contains(t, f.requests[1].body, `"user_id":{"type":"keyword"}`)
}

func TestEnsureIndex_Exists(t *testing.T) {
	f := &fakeES{}
	x := newTestIndex(t, f)

	require.NoError(t, x.EnsureIndex(context.Background()))
	assert.Len(t, f.requests, 1)
}
