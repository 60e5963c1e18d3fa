package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hexsettle/backend/internal/admin"
	"github.com/hexsettle/backend/internal/ai"
	"github.com/hexsettle/backend/internal/api"
	"github.com/hexsettle/backend/internal/config"
	"github.com/hexsettle/backend/internal/database"
	"github.com/hexsettle/backend/internal/game"
	"github.com/hexsettle/backend/internal/migrations"
	"github.com/hexsettle/backend/internal/redis"
	"github.com/hexsettle/backend/internal/ws"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zcfg.Level = level
	}
	return zcfg.Build()
}

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		logger.Info("running DB migrations on startup")
		if err := migrations.RunMigrations(cfg.DatabaseURL, "migrations", logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Redis holds hot state; Postgres keeps the durable snapshot
	store := game.NewTieredStore(game.NewRedisStore(rdb, cfg.StateTTL), game.NewSQLStore(db), logger)
	manager := game.NewManager(store, game.NewActionLog(db), game.NewRedisPublisher(rdb), game.ManagerConfig{
		TradeSweepInterval:   cfg.TradeSweepInterval,
		PersistRetryInterval: cfg.PersistRetryInterval,
	}, logger)

	defaults := ai.Config{
		Personality:        ai.Personality(cfg.AIPersonality),
		Difficulty:         ai.Difficulty(cfg.AIDifficulty),
		ThinkTime:          cfg.AIThinkTime,
		MaxActionsPerCycle: cfg.AIMaxActionsPerCycle,
	}
	if err := defaults.Validate(); err != nil {
		logger.Fatal("invalid automation defaults", zap.Error(err))
	}
	scheduler := ai.NewScheduler(manager, ai.NewHeuristicDecider(), ai.SystemClock(), ai.SchedulerConfig{
		PollInterval: cfg.AIPollInterval,
		Defaults:     defaults,
	}, logger)

	hub := ws.NewHub(manager, scheduler, logger)
	manager.AddListener(hub)

	manager.Start(ctx)
	scheduler.Start(ctx)
	hub.Start(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.Deps{
		Config:     cfg,
		Engine:     manager,
		Automation: scheduler,
		Hub:        hub,
		Operators:  admin.NewStore(db, logger),
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting hexsettle server", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	hub.Stop()
	scheduler.Stop()
	manager.Stop()
	logger.Info("stopped")
}
