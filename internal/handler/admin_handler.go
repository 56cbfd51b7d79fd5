package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"preptracker/pkg/outbox"
)

// OutboxRequeuer puts failed outbox events back in the dispatch queue.
type OutboxRequeuer interface {
	Requeue(ctx context.Context, eventID int64) (int64, error)
}

type AdminHandler struct {
	outbox OutboxRequeuer
	logger *zap.Logger
}

func NewAdminHandler(outbox OutboxRequeuer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{outbox: outbox, logger: logger}
}

// RequeueOutbox 重新投递失败的 Outbox 事件
// POST /api/admin/outbox/requeue?id=xxx (省略 id 时重投全部失败事件)
func (h *AdminHandler) RequeueOutbox(c *gin.Context) {
	var eventID int64
	if idStr := c.Query("id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
			return
		}
		eventID = id
	}

	n, err := h.outbox.Requeue(c.Request.Context(), eventID)
	if errors.Is(err, outbox.ErrEventNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no failed event with that id"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to requeue outbox events",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to requeue events",
			"details": err.Error(),
		})
		return
	}

	h.logger.Info("Outbox events requeued", zap.Int64("event_id", eventID), zap.Int64("count", n))
	c.JSON(http.StatusOK, gin.H{
		"status":   "requeued",
		"event_id": eventID,
		"count":    n,
	})
}
