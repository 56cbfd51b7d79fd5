package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"preptracker/internal/service"
)

type ProgressHandler struct {
	svc    *service.ScheduleService
	logger *zap.Logger
}

func NewProgressHandler(svc *service.ScheduleService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{svc: svc, logger: logger}
}

// Overview handles GET /api/dashboard/overview
func (h *ProgressHandler) Overview(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Overview", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Weekly handles GET /api/progress/weekly
func (h *ProgressHandler) Weekly(c *gin.Context) {
	weeks, err := h.svc.WeeklyProgress(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Weekly", err)
		return
	}
	c.JSON(http.StatusOK, weeks)
}

// Daily handles GET /api/progress/daily?date=YYYY-MM-DD
func (h *ProgressHandler) Daily(c *gin.Context) {
	d, err := h.svc.DailyProgress(c.Request.Context(), c.Query("date"))
	if err != nil {
		respondError(c, h.logger, "Daily", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Categories handles GET /api/progress/categories
func (h *ProgressHandler) Categories(c *gin.Context) {
	stats, err := h.svc.CategoryBreakdown(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Categories", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
