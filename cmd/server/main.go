package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/db"
	httpServer "tasksync/internal/http"
	"tasksync/internal/http/handlers"
	"tasksync/internal/http/middleware"
	"tasksync/internal/logger"
	"tasksync/internal/repository"
	"tasksync/internal/service"
	"tasksync/internal/store"
	"tasksync/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	log := logger.Get()

	mirror, closeDB := openMirror(cfg)
	defer closeDB()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := ws.NewHub(cfg.EventQueueSize, cfg.BroadcastConcurrency, log)
	go hub.Run(ctx)

	taskStore := store.NewTaskStore(mirror, hub, log)
	if err := taskStore.Load(ctx); err != nil {
		logger.Fatal("failed to load tasks", "error", err)
	}
	svc := service.NewModifyService(taskStore, log)

	if err := middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
		log.Warn("redis unavailable, rate limiting is per process", "error", err)
	}

	modify := gin.Default()
	httpServer.RegisterModifyRoutes(modify, svc, handlers.NewHealthHandler(taskStore, hub.Count, cfg.Version), cfg, log)

	notify := gin.Default()
	httpServer.RegisterNotifyRoutes(notify, hub, cfg, log)

	servers := []*http.Server{
		{Addr: ":" + cfg.ModifyPort, Handler: modify},
		{Addr: ":" + cfg.NotifyPort, Handler: notify},
	}
	for _, srv := range servers {
		srv := srv
		go func() {
			log.Info("server started", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("listen failed", "addr", srv.Addr, "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", "addr", srv.Addr, "error", err)
		}
	}
	hub.Close()

	log.Info("server exited")
}

// openMirror returns the durable mirror for the configured driver and a
// function that releases it.
func openMirror(cfg *config.Config) (repository.TaskMirror, func()) {
	if cfg.DatabaseDriver == "sqlite" {
		sqlDB, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("failed to open sqlite", "path", cfg.SQLitePath, "error", err)
		}
		repo := repository.NewSQLiteTaskRepository(sqlDB)
		if err := repo.Migrate(context.Background()); err != nil {
			logger.Fatal("failed to migrate sqlite", "error", err)
		}
		logger.Info("database connected", "driver", "sqlite", "path", cfg.SQLitePath)
		return repo, func() { _ = sqlDB.Close() }
	}

	pool := db.Connect(cfg.DatabaseURL)
	return repository.NewTaskRepository(pool), pool.Close
}
