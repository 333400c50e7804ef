package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-console/internal/store"
	"github.com/nulzo/prism-console/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached as a failure
// envelope.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var problem *api.Problem
		switch {
		case errors.As(err, &problem):
			if problem.Log != nil {
				logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(problem.Log))
			}
			c.AbortWithStatusJSON(problem.Status, api.Failure(problem.Message))
		case errors.Is(err, store.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err.Error()))
		case errors.Is(err, store.ErrConflict):
			c.AbortWithStatusJSON(http.StatusConflict, api.Failure(err.Error()))
		default:
			logger.Error("Unhandled error", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, api.Failure("An unexpected error occurred."))
		}
	}
}
