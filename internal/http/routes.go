package http

import (
	"log/slog"

	"tasksync/internal/config"
	"tasksync/internal/http/handlers"
	"tasksync/internal/http/middleware"
	"tasksync/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterModifyRoutes mounts the request/response API and the operational
// endpoints on r.
func RegisterModifyRoutes(r *gin.Engine, svc handlers.ModifyService, health *handlers.HealthHandler, cfg *config.Config, log *slog.Logger) {
	h := handlers.NewHandler(svc, log)

	// Task ids are opaque: route on the escaped path so an id holding "/"
	// stays one segment, then unescape it for the handler.
	r.UseRawPath = true
	r.UnescapePathValues = true

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.APIRateLimit, cfg.APIRateWindow))
	{
		v1.GET("/tasks", h.ListTasks)
		v1.GET("/tasks/:id", h.GetTask)
		v1.POST("/tasks", h.CreateTask)
		v1.PUT("/tasks/:id", h.UpdateTask)
		v1.DELETE("/tasks/:id", h.DeleteTask)
	}
}

// RegisterNotifyRoutes mounts the websocket endpoint subscribers connect to.
func RegisterNotifyRoutes(r *gin.Engine, hub *ws.Hub, cfg *config.Config, log *slog.Logger) {
	r.GET("/ws", handlers.WS(hub, cfg.AllowedOrigin, cfg.SendBufferSize, log.With("component", "notify")))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "subscribers": hub.Count()})
	})
}
