package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yungbote/nearby-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

// Fail maps a service error onto the envelope. Store failures are reported
// without their cause.
func Fail(c *gin.Context, err error) {
	switch {
	case err == nil:
		RespondError(c, http.StatusInternalServerError, "internal", nil)
	case apperrors.IsValidation(err), errors.Is(err, apperrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
	case errors.Is(err, apperrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		RespondError(c, http.StatusServiceUnavailable, "unavailable", errors.New("request timed out"))
	default:
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
	}
}
