package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-task-manager/config"
	"github.com/oksasatya/go-task-manager/internal/container"
	handlers "github.com/oksasatya/go-task-manager/internal/interface/http"
	"github.com/oksasatya/go-task-manager/internal/interface/middleware"
)

// TaskModule wires the owner-scoped task routes; every one requires a
// bearer token.
type TaskModule struct {
	Handler *handlers.TaskHandler
	Ident   middleware.Identifier
	Cfg     *config.Config
}

func NewTaskModule(h *handlers.TaskHandler, ident middleware.Identifier, cfg *config.Config) *TaskModule {
	return &TaskModule{Handler: h, Ident: ident, Cfg: cfg}
}

func (m *TaskModule) Register(rg *gin.RouterGroup) {
	tasks := rg.Group("/tasks")
	tasks.Use(middleware.Auth(m.Ident))
	tasks.Use(middleware.RateLimit(container.GetRedis(), m.Cfg.RateLimitAPIPerMin, time.Minute, middleware.KeyByUserID(), nil))
	{
		tasks.POST("", m.Handler.Create)
		tasks.GET("", m.Handler.List)
		tasks.GET("/search", m.Handler.Search)
		tasks.GET("/:id", m.Handler.Get)
		tasks.PATCH("/:id", m.Handler.Update)
		tasks.DELETE("/:id", m.Handler.Delete)
	}
}
