package modules

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-task-manager/config"
	"github.com/oksasatya/go-task-manager/internal/container"
	"github.com/oksasatya/go-task-manager/internal/interface/middleware"
	"github.com/oksasatya/go-task-manager/pkg/helpers"
)

// DebugModule serves the operational endpoints at the engine root:
// GET /healthz and, when enabled, GET /metrics.
type DebugModule struct {
	Cfg *config.Config
}

func NewDebugModule(cfg *config.Config) *DebugModule { return &DebugModule{Cfg: cfg} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rg.GET("/healthz", m.health)

	if m.Cfg.MetricsEnabled {
		// Public metrics endpoint, rate-limited per IP; private scrapers bypass
		rl := middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
		rg.GET("/metrics", rl, gin.WrapH(container.GetMetrics().Handler()))
	}
}

func (m *DebugModule) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"storage": m.Cfg.StorageDriver}
	status := http.StatusOK
	if pool := container.GetPGPool(); pool != nil {
		if err := pool.Ping(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["postgres"] = "ok"
		}
	}
	if rdb := container.GetRedis(); rdb != nil {
		if err := helpers.PingRedis(ctx, rdb); err != nil {
			// rate limits fail open without redis
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}
	c.JSON(status, checks)
}
