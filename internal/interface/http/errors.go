package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-task-manager/internal/application"
	repo "github.com/oksasatya/go-task-manager/internal/domain/repository"
	"github.com/oksasatya/go-task-manager/pkg/helpers"
	"github.com/oksasatya/go-task-manager/pkg/response"
	"github.com/oksasatya/go-task-manager/pkg/validation"
)

// writeError maps a service error to its status and envelope. Anything it
// does not recognise is logged and answered 500 without detail.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	var verr *application.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error[any](c, http.StatusBadRequest, "invalid payload", verr.Fields)
	case errors.Is(err, application.ErrEmailTaken), errors.Is(err, repo.ErrDuplicate):
		response.Error[any](c, http.StatusConflict, "Email already exists", nil)
	case errors.Is(err, application.ErrInvalidCredentials):
		response.Error[any](c, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, application.ErrInvalidToken):
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, application.ErrTaskNotFound):
		response.Error[any](c, http.StatusNotFound, "Task not found", nil)
	case errors.Is(err, application.ErrUserNotFound), errors.Is(err, repo.ErrNotFound):
		response.Error[any](c, http.StatusNotFound, "not found", nil)
	case errors.Is(err, application.ErrInvalidInput):
		response.Error[any](c, http.StatusBadRequest, "invalid payload", nil)
	default:
		helpers.LogError(logger, "request failed", err, logrus.Fields{
			"request_id": c.GetString(response.RequestIDKey),
			"route":      c.FullPath(),
		})
		_ = c.Error(err)
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
	}
}

// bindJSON binds the body and answers 400 with per-field details on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return false
	}
	return true
}
