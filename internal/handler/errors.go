package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"preptracker/internal/schedule"
	"preptracker/internal/service"
	"preptracker/pkg/logger"
)

// respondError maps a service error onto a status code and a {"error": msg} body.
func respondError(c *gin.Context, log *zap.Logger, op string, err error) {
	log = logger.WithTrace(c.Request.Context(), log)

	var verr *service.ValidationError
	var serr *service.StoreError
	switch {
	case errors.As(err, &verr):
		log.Warn(op+": invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, service.ErrNotFound):
		log.Warn(op+": not found", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, service.ErrUpstreamAdvisor):
		log.Error(op+": advisor failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "advisor unavailable"})
	case errors.Is(err, schedule.ErrInvalidHorizon),
		errors.Is(err, schedule.ErrEmptyCatalog),
		errors.Is(err, schedule.ErrInvalidCatalog):
		log.Error(op+": schedule configuration error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "schedule configuration error: " + err.Error()})
	case errors.As(err, &serr):
		log.Error(op+": store failure", zap.String("store_op", serr.Op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
	default:
		log.Error(op+": unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
