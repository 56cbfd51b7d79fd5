package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"preptracker/internal/handler"
	"preptracker/pkg/otel"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the route handlers. Admin may be nil when the store has no outbox.
type Handlers struct {
	Tasks    *handler.TaskHandler
	Progress *handler.ProgressHandler
	Advisor  *handler.AdvisorHandler
	Admin    *handler.AdminHandler
}

// ReadinessCheck is one named /readyz probe.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) bool
}

func NewRouter(h Handlers, store Pinger, logger *zap.Logger, checks ...ReadinessCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(RequestLogger(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "store_not_ready", "error": err.Error()})
			return
		}
		for _, chk := range checks {
			if !chk.Check(ctx) {
				c.JSON(500, gin.H{"status": chk.Name + "_not_ready"})
				return
			}
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/", func(c *gin.Context) {
			c.JSON(200, gin.H{"service": "preptracker", "message": "Prep plan tracker API"})
		})

		api.GET("/tasks", h.Tasks.ListTasks)
		api.PUT("/tasks/:id", h.Tasks.UpdateStatus)
		api.POST("/tasks/:id/advance", h.Tasks.AdvanceStatus)
		api.POST("/tasks/initialize", h.Tasks.Initialize)
		api.POST("/tasks/reinitialize", h.Tasks.Reinitialize)

		api.GET("/dashboard/overview", h.Progress.Overview)
		api.GET("/progress/weekly", h.Progress.Weekly)
		api.GET("/progress/daily", h.Progress.Daily)
		api.GET("/progress/categories", h.Progress.Categories)

		api.POST("/ai/recommendations", h.Advisor.Recommend)
		api.GET("/ai/recommendations/history", h.Advisor.History)
		api.GET("/ai/quick-prompts", h.Advisor.QuickPrompts)

		if h.Admin != nil {
			api.POST("/admin/outbox/requeue", h.Admin.RequeueOutbox)
		}
	}

	return r
}
