package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/kittypup/kittypup/internal/observability/context"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// GinMiddleware propagates a request id and emits one structured access log
// line per request.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, requestID)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		log := WithContext(ctx, base).With(
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
		if lastErr := c.Errors.Last(); lastErr != nil && c.Writer.Status() >= 500 {
			log.Error("request failed", zap.Error(lastErr.Err))
			return
		}
		log.Info("request")
	}
}
