package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"preptracker/internal/service"
	"preptracker/pkg/logger"
)

type TaskHandler struct {
	svc    *service.ScheduleService
	logger *zap.Logger
}

func NewTaskHandler(svc *service.ScheduleService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

// ListTasks handles GET /api/tasks?category=&status=&date=&week=
func (h *TaskHandler) ListTasks(c *gin.Context) {
	filter, err := service.ParseTaskFilter(
		c.Query("category"),
		c.Query("status"),
		c.Query("date"),
		c.Query("week"),
	)
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}

	tasks, err := h.svc.ListTasks(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Debug("ListTasks: success",
		zap.Int("task_count", len(tasks)),
	)
	c.JSON(http.StatusOK, tasks)
}

// UpdateStatus handles PUT /api/tasks/:id {"status": "..."}
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: status is required"})
		return
	}

	task, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.logger, "UpdateStatus", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// AdvanceStatus handles POST /api/tasks/:id/advance
func (h *TaskHandler) AdvanceStatus(c *gin.Context) {
	task, err := h.svc.AdvanceStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "AdvanceStatus", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Initialize handles POST /api/tasks/initialize
func (h *TaskHandler) Initialize(c *gin.Context) {
	res, err := h.svc.Initialize(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Initialize", err)
		return
	}

	message := fmt.Sprintf("Schedule initialized with %d tasks", len(res.Tasks))
	if !res.Created {
		message = fmt.Sprintf("Schedule already initialized with %d tasks", len(res.Tasks))
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"count":   len(res.Tasks),
		"created": res.Created,
		"tasks":   res.Tasks,
	})
}

// Reinitialize handles POST /api/tasks/reinitialize. All progress in the
// horizon is discarded.
func (h *TaskHandler) Reinitialize(c *gin.Context) {
	res, err := h.svc.Reinitialize(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Reinitialize", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Schedule reinitialized: removed %d, created %d tasks", res.Removed, len(res.Tasks)),
		"count":   len(res.Tasks),
		"created": res.Created,
		"removed": res.Removed,
		"tasks":   res.Tasks,
	})
}
