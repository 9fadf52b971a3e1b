package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parkstand-backend/internal/pricing"
	"parkstand-backend/internal/session"
	"parkstand-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	manager  *session.Manager
	location *time.Location
	logger   *zap.Logger
}

// NewHandler creates a new API handler. The location drives "today"
// boundaries for the daily listing.
func NewHandler(manager *session.Manager, location *time.Location, logger *zap.Logger) *Handler {
	return &Handler{
		manager:  manager,
		location: location,
		logger:   logger,
	}
}

// fail translates a domain error into the HTTP error taxonomy: validation
// and business-rule conflicts are 400, unknown references 404, anything
// else is infrastructure and surfaces as 503 without leaking internals.
func (h *Handler) fail(c *gin.Context, err error) {
	var vErr *session.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.Is(err, store.ErrDuplicateActiveVehicle),
		errors.Is(err, store.ErrCapacityExceeded),
		errors.Is(err, pricing.ErrInvalidInterval),
		errors.Is(err, pricing.ErrMissingRate):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrStandNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Error("storage timeout", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "storage timeout, retry later"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "temporary storage failure, retry later"})
	}
}
