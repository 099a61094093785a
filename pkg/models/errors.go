package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Common error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeRevisionConflict   = "REVISION_CONFLICT"
	ErrCodeMalformedDocument  = "MALFORMED_DOCUMENT"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeUnsupportedMedia   = "UNSUPPORTED_MEDIA_TYPE"
)

// Common errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrStoryNotFound      = errors.New("story not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrIdentityTaken      = errors.New("email or name already in use")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden access")
	ErrInvalidInput       = errors.New("invalid input")
	ErrProtectedUser      = errors.New("the bootstrap administrator cannot be modified")

	// Persistence errors
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrMalformedDocument   = errors.New("malformed document")
	ErrRevisionConflict    = errors.New("document was modified since it was read")
	ErrUnsupportedMedia    = errors.New("only JPG, PNG, GIF and WEBP images are accepted")
	ErrInvalidPath         = errors.New("invalid storage path")
)

// AppError carries an error code and HTTP status across layers
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Protocol   string                 `json:"protocol,omitempty"`
	err        error
}

func (e *AppError) Error() string {
	if e.Protocol != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Protocol, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.err
}

// ToHTTPError converts to HTTP-compatible error response
func (e *AppError) ToHTTPError() *APIResponse {
	return &APIResponse{
		Success:   false,
		Error:     e.Message,
		Message:   e.Message,
		Timestamp: time.Now(),
	}
}

// ToWebSocketError returns WebSocket close code and message
func (e *AppError) ToWebSocketError() (int, string) {
	switch e.Code {
	case ErrCodeUnauthorized:
		return websocket.ClosePolicyViolation, "authentication required"
	case ErrCodeForbidden:
		return websocket.ClosePolicyViolation, "forbidden access"
	case ErrCodeNotFound:
		return websocket.CloseNormalClosure, "resource not found"
	default:
		return websocket.CloseInternalServerErr, e.Message
	}
}

// NewHTTPError wraps err with an HTTP status and code
func NewHTTPError(code, message string, statusCode int, err error) *AppError {
	appErr := &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Protocol:   "http",
		err:        err,
	}
	if err != nil {
		appErr.Details = map[string]interface{}{"original_error": err.Error()}
	}
	return appErr
}
