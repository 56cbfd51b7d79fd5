package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"preptracker/internal/service"
	"preptracker/pkg/logger"
)

type AdvisorHandler struct {
	svc          *service.ScheduleService
	quickPrompts []string
	logger       *zap.Logger
}

func NewAdvisorHandler(svc *service.ScheduleService, quickPrompts []string, logger *zap.Logger) *AdvisorHandler {
	if quickPrompts == nil {
		quickPrompts = []string{}
	}
	return &AdvisorHandler{svc: svc, quickPrompts: quickPrompts, logger: logger}
}

// Recommend handles POST /api/ai/recommendations {"user_prompt": "...", "context": "..."}
func (h *AdvisorHandler) Recommend(c *gin.Context) {
	var req struct {
		UserPrompt string `json:"user_prompt"`
		Context    string `json:"context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("Recommendation request received",
		zap.Int("prompt_length", len(req.UserPrompt)),
		zap.Bool("has_context", req.Context != ""),
	)

	res, err := h.svc.Recommend(c.Request.Context(), req.UserPrompt, req.Context)
	if err != nil {
		respondError(c, h.logger, "Recommend", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// History handles GET /api/ai/recommendations/history?limit=N
func (h *AdvisorHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		limit = n
	}

	recs, err := h.svc.RecommendationHistory(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, "History", err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// QuickPrompts handles GET /api/ai/quick-prompts
func (h *AdvisorHandler) QuickPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prompts": h.quickPrompts})
}
