package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/pkg/apperror"
	"github.com/qtu11/SipMart-sub003/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// HeaderDeviceKey carries the IoT webhook pre-shared key.
	HeaderDeviceKey = "X-Device-Key"

	// Context keys
	CtxUserID = "user_id"
	CtxStaff  = "staff"
)

// JWTAuth creates a middleware that validates bearer tokens.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		tokenStr := authHeader[7:]
		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxStaff, claims.Staff)
		c.Next()
	}
}

// StaffOnly rejects requests whose token lacks the staff claim. Must run
// after JWTAuth.
func StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(CtxStaff) {
			response.Error(c, apperror.ErrStaffOnly())
			c.Abort()
			return
		}
		c.Next()
	}
}

// DeviceAuth verifies the IoT webhook pre-shared key against its stored hash.
func DeviceAuth(verifier ports.DeviceKeyVerifier, keyHash string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderDeviceKey)
		if key == "" || keyHash == "" {
			response.Error(c, apperror.ErrInvalidDeviceKey())
			c.Abort()
			return
		}

		ok, err := verifier.Verify(key, keyHash)
		if err != nil {
			log.Error().Err(err).Msg("device key verification failed")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if !ok {
			response.Error(c, apperror.ErrInvalidDeviceKey())
			c.Abort()
			return
		}
		c.Next()
	}
}

// IPAllowlist restricts a route to the given source addresses. An empty list
// allows everything, which keeps local development working.
func IPAllowlist(allowed []string, log zerolog.Logger) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, ip := range allowed {
		allowedSet[ip] = struct{}{}
	}
	return func(c *gin.Context) {
		if len(allowedSet) == 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if _, ok := allowedSet[ip]; !ok {
			// Allow CIDR-free exact match only; anything else is rejected.
			if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
				if _, ok := allowedSet[host]; ok {
					c.Next()
					return
				}
			}
			log.Warn().Str("client_ip", ip).Str("path", c.Request.URL.Path).Msg("callback from non-allowlisted source")
			response.Error(c, apperror.ErrSourceNotAllowed())
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// MaxBodySize limits the request body to maxBytes.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
