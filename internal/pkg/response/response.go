package response

import (
	"errors"
	"net/http"

	"communityhub/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// FromError writes the envelope for a domain error. Unclassified errors are
// logged and reported as INTERNAL_ERROR without leaking their text.
func FromError(c *gin.Context, err error) {
	switch kind := apperr.Kind(err); {
	case errors.Is(kind, apperr.ErrInvalidInput):
		Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(kind, apperr.ErrNotFound):
		Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(kind, apperr.ErrCapacityExceeded):
		Error(c, http.StatusConflict, "CAPACITY_EXCEEDED", err.Error())
	case errors.Is(kind, apperr.ErrInvalidTransition):
		Error(c, http.StatusConflict, "INVALID_STATUS_TRANSITION", err.Error())
	default:
		_ = c.Error(err)
		zap.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
