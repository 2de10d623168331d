package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skillswap/internal/apperr"
	"skillswap/internal/handler"
	"skillswap/internal/model"
	"skillswap/pkg/metrics"
	"skillswap/pkg/rbac"
	"skillswap/pkg/trace"
	"skillswap/pkg/util"
)

const traceHeader = "X-Trace-Id"

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "fail", "code": code, "message": message})
}

// TraceMiddleware carries the caller's trace id, or a new one, through the
// request context and echoes it back.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(traceHeader); id != "" {
			ctx = trace.WithContext(ctx, id)
		}
		ctx, id := trace.Ensure(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(traceHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}

// MetricsMiddleware records request latency by route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized", "missing token")
			return
		}

		claims, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}

		c.Set(handler.CtxUserID, claims.UserID)
		c.Set(handler.CtxRole, rbac.NormalizeRole(claims.Role))
		c.Next()
	}
}

// RequirePermission rejects callers whose role lacks permission.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(handler.CtxUserID)
		if err := rbac.CheckPermission(userID, c.GetString(handler.CtxRole), permission); err != nil {
			abort(c, http.StatusForbidden, apperr.CodeForbidden, err.Error())
			return
		}
		c.Next()
	}
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// BanGate blocks users whose ban is still in force.
func BanGate(users UserLookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.GetByID(c.Request.Context(), c.GetInt64(handler.CtxUserID))
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				abort(c, http.StatusNotFound, apperr.CodeUserNotFound, "User not found")
				return
			}
			logger.Error("Ban check failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": apperr.PublicMessage(err),
			})
			return
		}
		if u.BannedAt(time.Now()) {
			abort(c, http.StatusForbidden, apperr.CodeUserBanned,
				"Your account is banned until "+u.BannedTill.UTC().Format(time.RFC3339))
			return
		}
		c.Next()
	}
}
