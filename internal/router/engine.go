package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-task-manager/config"
	"github.com/oksasatya/go-task-manager/internal/interface/middleware"
	"github.com/oksasatya/go-task-manager/pkg/metrics"
	"github.com/oksasatya/go-task-manager/pkg/response"
)

// NewEngine builds the Gin engine with the global middleware chain.
func NewEngine(cfg *config.Config, logger *logrus.Logger, m *metrics.Collector) *gin.Engine {
	r := gin.New()

	// forwarding headers count only from configured proxies, for gin's
	// ClientIP as well as the limiter key
	proxies := cfg.TrustedProxyList()
	trusted, err := middleware.ParseTrustedProxies(proxies)
	if err == nil {
		err = r.SetTrustedProxies(proxies)
	}
	if err != nil {
		if logger != nil {
			logger.WithError(err).Warn("ignoring TRUSTED_PROXIES")
		}
		trusted = nil
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP(trusted))
	r.Use(middleware.Metrics(m))
	if cfg.HTTPLogEnabled && logger != nil {
		r.Use(middleware.AccessLog(logger))
	}

	corsCfg := cors.Config{
		AllowOrigins:  cfg.CORSOrigins(),
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", middleware.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	r.NoRoute(func(c *gin.Context) {
		response.Error[any](c, http.StatusNotFound, "route not found", nil)
	})
	return r
}
