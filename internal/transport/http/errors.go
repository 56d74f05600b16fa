package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"greenplay-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrRequirementNotMet):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the client-safe message for err. Server errors are
// logged with their cause and reported generically.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := domain.Message(err)
	if status == http.StatusInternalServerError {
		requestLogger(c).WithError(err).Error("request failed")
		msg = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

func bindError(c *gin.Context, err error) {
	abortWithError(c, domain.Validation("invalid request: %v", err))
}
