package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-task-manager/config"
	"github.com/oksasatya/go-task-manager/internal/container"
	handlers "github.com/oksasatya/go-task-manager/internal/interface/http"
	"github.com/oksasatya/go-task-manager/internal/interface/middleware"
)

// AuthModule wires registration and login.
// Public: POST /api/auth/register, POST /api/auth/login
// Protected: GET /api/auth/me
type AuthModule struct {
	Handler *handlers.AuthHandler
	Ident   middleware.Identifier
	Cfg     *config.Config
}

func NewAuthModule(h *handlers.AuthHandler, ident middleware.Identifier, cfg *config.Config) *AuthModule {
	return &AuthModule{Handler: h, Ident: ident, Cfg: cfg}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with IP-based rate limits
	limiter := middleware.RateLimit(container.GetRedis(), m.Cfg.RateLimitAuthPerMin, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/register", limiter, m.Handler.Register)
	rg.POST("/auth/login", limiter, m.Handler.Login)

	auth := rg.Group("/auth")
	auth.Use(middleware.Auth(m.Ident))
	auth.Use(middleware.RateLimit(container.GetRedis(), m.Cfg.RateLimitAPIPerMin, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/me", m.Handler.Me)
	}
}
