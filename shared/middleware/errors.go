package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/eaglebank/registry/shared/apperr"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type ValidationErrorResponse struct {
	ErrorResponse
	Errors map[string]string `json:"errors"`
}

// MessageResponse is returned by operations that have no entity to show.
type MessageResponse struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

func now() int64 { return time.Now().UnixMilli() }

// StatusFor maps an error kind onto its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.AlreadyExists, apperr.AlreadyAssociated, apperr.HasDependents, apperr.BalanceNotZero:
		return http.StatusConflict
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{Status: code, Message: message, Timestamp: now()})
}

// RespondWithAppError writes err using its kind. Internal failures never
// leak their cause to the client.
func RespondWithAppError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.Internal {
		_ = c.Error(err)
		RespondWithError(c, http.StatusInternalServerError, apperr.MsgInternal)
		return
	}
	if appErr.Kind == apperr.InvalidArgument && len(appErr.Fields) > 0 {
		RespondWithValidationError(c, appErr.Fields)
		return
	}
	RespondWithError(c, StatusFor(appErr.Kind), appErr.Message)
}

func RespondWithValidationError(c *gin.Context, violations map[string]string) {
	c.JSON(http.StatusBadRequest, ValidationErrorResponse{
		ErrorResponse: ErrorResponse{Status: http.StatusBadRequest, Message: apperr.MsgValidationFailed, Timestamp: now()},
		Errors:        violations,
	})
}

func RespondWithMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, MessageResponse{Message: message, Timestamp: now()})
}
