package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/airtime-live/stagedoor/internal/domain"
	"github.com/airtime-live/stagedoor/internal/service"
	"github.com/airtime-live/stagedoor/pkg/response"
)

// handleError maps a service error to the HTTP response
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientPoints):
		response.PaymentRequired(c, "INSUFFICIENT_POINTS", err.Error())
	case errors.Is(err, domain.ErrAlreadyHasSession):
		response.Conflict(c, "ALREADY_HAS_SESSION", err.Error())
	case errors.Is(err, domain.ErrNotCancellable):
		response.Conflict(c, "NOT_CANCELLABLE", err.Error())
	case errors.Is(err, domain.ErrSessionNotActive):
		response.Conflict(c, "SESSION_NOT_ACTIVE", err.Error())
	case errors.Is(err, domain.ErrAgentUnavailable):
		response.Conflict(c, "AGENT_UNAVAILABLE", err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		response.Conflict(c, "EMAIL_TAKEN", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrUserInactive):
		response.Error(c, http.StatusForbidden, "USER_INACTIVE", err.Error(), "")
	case domain.IsNotFoundError(err):
		response.NotFound(c, err.Error())
	case domain.IsValidationError(err):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
