// Package handler holds the gin handlers of the api process.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skillswap/internal/apperr"
	"skillswap/pkg/logger"
)

// Context keys set by the auth middleware.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

func ok(c *gin.Context, code int, message string, data any) {
	body := gin.H{"status": statusSuccess, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(code, body)
}

// fail writes err as a status/message body. 5xx responses hide the cause.
func fail(c *gin.Context, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"message": apperr.PublicMessage(err)}
	if code := apperr.CodeOf(err); code != "" {
		body["code"] = code
	}
	if status >= http.StatusInternalServerError {
		body["status"] = statusError
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	} else {
		body["status"] = statusFail
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status":  statusFail,
		"code":    apperr.CodeInvalidInput,
		"message": message,
	})
}

// currentUser returns the authenticated user id.
func currentUser(c *gin.Context) int64 {
	id, _ := c.Get(CtxUserID)
	uid, _ := id.(int64)
	return uid
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
