package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
)

const (
	principalKey = "principal"

	// RequestIDHeader is the header name for request ID
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// AuthMiddleware creates middleware that validates session tokens and
// places the caller's principal in the request context.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		if len(auth) < 8 || auth[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		principal, err := authService.ParseToken(auth[7:])
		if err != nil {
			if errors.Is(err, core.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireFresh creates middleware that enforces the trust tier for
// resource-granting endpoints: it grants on fresh and otherwise answers
// with the re-proof the caller must present. The tier is recomputed on
// every request.
func RequireFresh(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Principal not found in context"})
			return
		}

		if err := authService.Authorize(c.Request.Context(), principal); err != nil {
			switch {
			case errors.Is(err, core.ErrWalletProofRequired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":  "Re-proof required",
					"remedy": core.TierWalletStale.Remedy(),
				})
			case errors.Is(err, core.ErrFullProofRequired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":  "Re-proof required",
					"remedy": core.TierFullStale.Remedy(),
				})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			}
			return
		}

		c.Next()
	}
}

// RequestID middleware propagates or generates a request correlation ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// Logger middleware logs each HTTP request with structured fields.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case statusCode >= 500:
			logger.Error("server error", fields...)
		case statusCode >= 400:
			logger.Warn("client error", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

func principalFromContext(c *gin.Context) (core.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return core.Principal{}, false
	}
	principal, ok := v.(core.Principal)
	return principal, ok
}
