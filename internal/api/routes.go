package api

import (
	"github.com/gin-gonic/gin"
	"github.com/hexsettle/backend/internal/api/handlers"
	"github.com/hexsettle/backend/internal/config"
	"github.com/hexsettle/backend/internal/middleware"
	"github.com/hexsettle/backend/internal/ws"
	"go.uber.org/zap"
)

// Deps are the services the HTTP surface is wired to.
type Deps struct {
	Config     *config.Config
	Engine     handlers.Engine
	Automation handlers.Automation
	Hub        *ws.Hub
	Operators  handlers.Operators
	Logger     *zap.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	logger := d.Logger.Named("api")
	cfg := d.Config

	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(middleware.CORSMiddleware(cfg, d.Logger))

	if !cfg.IsProduction() {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		logger.Info("no-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(d.Engine))
		v1.GET("/config", handlers.GetConfig(cfg))
		v1.GET("/ai/summary", handlers.GetAISummary(d.Automation))

		games := v1.Group("/games")
		{
			if !cfg.IsProduction() {
				games.POST("/test", handlers.CreateTestGame(d.Engine, d.Automation, cfg, logger))
			}
			games.GET("/:id", handlers.GetGame(d.Engine, d.Automation, d.Hub))
			games.GET("/:id/ws", middleware.WebSocketCORSCheck(cfg), d.Hub.Handler([]byte(cfg.JWTSecret)))

			operator := games.Group("", handlers.OperatorMiddleware(d.Operators, logger))
			{
				operator.POST("/:id/register", handlers.RegisterGame(d.Engine, d.Automation))
				operator.DELETE("/:id/register", handlers.UnregisterGame(d.Automation))
				operator.POST("/:id/seats/:seat/auto-mode", handlers.EnableSeatAutoMode(d.Engine, d.Automation, d.Operators))
				operator.DELETE("/:id/seats/:seat/auto-mode", handlers.DisableSeatAutoMode(d.Engine, d.Automation, d.Operators))
			}
		}
	}
}
