package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-task-manager/internal/application"
	"github.com/oksasatya/go-task-manager/internal/domain/entity"
	"github.com/oksasatya/go-task-manager/pkg/response"
)

type TaskHandler struct {
	Svc    *application.TaskService
	Logger *logrus.Logger
}

func NewTaskHandler(svc *application.TaskService, logger *logrus.Logger) *TaskHandler {
	return &TaskHandler{Svc: svc, Logger: logger}
}

type createTaskRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description" binding:"max=10000"`
}

type updateTaskRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description" binding:"omitempty,max=10000"`
	Status      *string `json:"status" binding:"omitempty,taskstatus"`
}

type taskResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTaskResponse(t *entity.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTaskResponses(tasks []entity.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	return out
}

// taskID returns the :id path param. Anything that is not a UUID cannot
// name a task, so it is answered like a foreign one.
func (h *TaskHandler) taskID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(c, h.Logger, application.ErrTaskNotFound)
		return "", false
	}
	return id, true
}

// Create POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.Svc.Create(c.Request.Context(), application.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
	}, c.GetString("userID"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toTaskResponse(t), "task created", nil)
}

// List GET /api/tasks
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.Svc.FindAll(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.List(c, toTaskResponses(tasks), "tasks")
}

// Get GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	t, err := h.Svc.FindOne(c.Request.Context(), id, c.GetString("userID"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toTaskResponse(t), "task", nil)
}

// Update PATCH /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.Svc.Update(c.Request.Context(), id, application.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	}, c.GetString("userID"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toTaskResponse(t), "task updated", nil)
}

// Delete DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	if err := h.Svc.Remove(c.Request.Context(), id, c.GetString("userID")); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Message(c, http.StatusOK, "Task deleted successfully")
}

// Search GET /api/tasks/search?q=&size=
func (h *TaskHandler) Search(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))
	tasks, err := h.Svc.Search(c.Request.Context(), c.GetString("userID"), c.Query("q"), size)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.List(c, toTaskResponses(tasks), "tasks")
}
