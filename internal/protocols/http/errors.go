package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storyhub/internal/core"
	"storyhub/internal/gateway"
	"storyhub/pkg/logger"
	"storyhub/pkg/models"
)

// statusFor maps a service error to an HTTP status and a client safe message
func statusFor(err error) (int, string) {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode, appErr.Message
	}

	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrMalformedDocument),
		errors.Is(err, models.ErrUnsupportedDocument),
		errors.Is(err, models.ErrInvalidPath):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, models.ErrUnsupportedMedia.Error()
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrInvalidToken),
		errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, models.ErrForbidden),
		errors.Is(err, models.ErrProtectedUser),
		errors.Is(err, core.ErrTransportDisabled):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, models.ErrStoryNotFound),
		errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrDocumentNotFound),
		errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrRevisionConflict),
		errors.Is(err, models.ErrIdentityTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, core.ErrCatalogClosed):
		return http.StatusServiceUnavailable, err.Error()
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return http.StatusBadGateway, gwErr.Message
	}
	return http.StatusInternalServerError, "internal server error"
}

// respondError writes the /api/v1 error envelope
func respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithFields(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).WithError(err).Error("request failed")
	}
	c.JSON(status, models.APIResponse{
		Success:   false,
		Error:     msg,
		Timestamp: time.Now(),
	})
}

// badRequest writes a 400 with msg
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.APIResponse{
		Success:   false,
		Error:     msg,
		Timestamp: time.Now(),
	})
}

// ok writes a successful /api/v1 reply
func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}
