package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"deepdive/internal/auth"
)

// identity copies the proxy-asserted user headers into the request context.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if email := c.GetHeader(auth.HeaderEmail); email != "" {
			ctx := auth.WithUser(c.Request.Context(), auth.User{Email: email, Name: c.GetHeader(auth.HeaderName)})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.log.Error("panic in handler", zap.Any("panic", recovered), zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}
