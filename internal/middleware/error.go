package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
	"github.com/jwalitptl/office-portal/pkg/logger"
)

// ErrorLogger logs the errors handlers attached to the context. Server-side
// failures are logged at error level, client errors at debug.
func ErrorLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			kind := apperrors.KindOf(e.Err)
			if kind == apperrors.KindInternal || kind == apperrors.KindDependency {
				log.Error(e.Err, "Request error",
					"request_id", requestID,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"client_ip", c.ClientIP())
				continue
			}
			log.Debug("Request rejected",
				"request_id", requestID,
				"path", c.Request.URL.Path,
				"kind", kind.String(),
				"reason", apperrors.ReasonOf(e.Err))
		}
	}
}
