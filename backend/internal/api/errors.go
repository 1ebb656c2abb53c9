package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "memgraph/backend/pkg/errors"
)

// retryAfterSeconds is sent with 503 responses caused by contention
const retryAfterSeconds = "1"

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeCycle:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeDuplicateID, apperrors.ErrorTypeDuplicateRelation, apperrors.ErrorTypeDependency:
		return http.StatusConflict
	case apperrors.ErrorTypeConflict:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": ..., "type": ...}. Server-side failures
// are logged and their detail withheld.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	errType := string(apperrors.TypeOf(err))

	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", retryAfterSeconds)
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		if errType == "" {
			errType = string(apperrors.ErrorTypeStorage)
		}
		c.JSON(status, gin.H{"error": "internal error", "type": errType})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "type": errType})
}
