package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/services"
	"go.uber.org/zap"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindUnauthenticated:    http.StatusUnauthorized,
	services.KindForbidden:          http.StatusForbidden,
	services.KindNotFound:           http.StatusNotFound,
	services.KindInvalidInput:       http.StatusBadRequest,
	services.KindConflict:           http.StatusConflict,
	services.KindExpired:            http.StatusGone,
	services.KindPreconditionFailed: http.StatusPreconditionFailed,
}

func errorBody(code, message string) gin.H {
	return gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorBody(code, message))
}

// respondServiceError maps a service failure onto the response envelope.
// Unclassified errors are logged and reported as INTERNAL_ERROR.
func respondServiceError(c *gin.Context, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		status, ok := statusByKind[svcErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		respondError(c, status, svcErr.Code, svcErr.Message)
		return
	}

	_ = c.Error(err)
	zap.L().Error("request failed",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}

func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// currentActor returns the caller resolved by LoadCurrentUser, writing a 401 if
// the route was wired without it.
func currentActor(c *gin.Context) (services.Actor, bool) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return services.Actor{}, false
	}
	return services.ActorFromUser(user), true
}

// idParam parses a positive integer path parameter, writing a 400 on failure.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func reviewEditWindow() time.Duration {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg.ReviewEditWindow
	}
	return services.DefaultReviewEditWindow
}

func chatAccessMaxHours() int {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg.ChatAccessMaxHours
	}
	return services.DefaultChatAccessMaxHours
}
