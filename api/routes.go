// Package api 组装HTTP接口。
package api

import (
	"net/http"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/battle"
	"github.com/SlpAus/dragon-duel-backend/internal/notify"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/config"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/health"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/internal/query"
	"github.com/SlpAus/dragon-duel-backend/internal/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies 是路由器暴露的处理器和健康检查依赖。
type Dependencies struct {
	Battles     *battle.Handler
	Queries     *query.Handler
	Broadcaster *notify.Broadcaster
	Health      *health.Checker
	Registry    *battle.Registry
	StartLimit  *ratelimit.Limiter
}

// NewRouter 构建带有中间件和全部路由的gin引擎。
func NewRouter(cfg config.ServerConfig, deps Dependencies, logger *zap.Logger) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", battle.TokenHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	SetupRoutes(r, deps)
	return r
}

// SetupRoutes 注册所有API路由。
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if deps.Health != nil {
			state := deps.Health.State()
			body["redis"] = state.String()
			if state != health.StateHealthy {
				body["status"] = "degraded"
			}
		}
		if deps.Registry != nil {
			body["active_battles"] = deps.Registry.Active()
			body["pending_saves"] = len(deps.Registry.Pending())
		}
		c.JSON(http.StatusOK, body)
	})

	api := router.Group("/api")
	{
		if deps.Battles != nil {
			var guards []gin.HandlerFunc
			if deps.StartLimit != nil {
				guards = append(guards, deps.StartLimit.Middleware())
			}
			deps.Battles.Register(api.Group("/battles"), guards...)
		}
		if deps.Queries != nil {
			deps.Queries.Register(api)
		}
		if deps.Broadcaster != nil {
			api.GET("/notifications/stream", deps.Broadcaster.Stream)
		}
	}
}
