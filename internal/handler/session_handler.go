package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/airtime-live/stagedoor/internal/dto"
	"github.com/airtime-live/stagedoor/internal/service"
	"github.com/airtime-live/stagedoor/pkg/response"
	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

// SessionHandler handles session HTTP requests
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Book handles POST /sessions
func (h *SessionHandler) Book(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.session.book")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	var req dto.BookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("agent_id", req.AgentID),
	)

	result, err := h.sessionService.Book(ctx, userID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("session_id", result.SessionID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// End handles POST /sessions/:id/end
func (h *SessionHandler) End(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.session.end")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	sessionID := c.Param("id")
	span.SetAttributes(attribute.String("session_id", sessionID))

	// Only the occupant may end their own session early
	session, err := h.sessionService.GetSession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}
	if session.UserID != userID {
		span.SetStatus(codes.Error, "not the owner")
		response.NotFound(c, "session not found")
		return
	}

	if err := h.sessionService.End(ctx, sessionID, service.EndReasonUser); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, gin.H{"session_id": sessionID, "status": "completed"})
}

// Cancel handles DELETE /sessions/:id
func (h *SessionHandler) Cancel(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.session.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	sessionID := c.Param("id")
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("session_id", sessionID),
	)

	result, err := h.sessionService.Cancel(ctx, sessionID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// GetSession handles GET /sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.session.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	sessionID := c.Param("id")
	span.SetAttributes(attribute.String("session_id", sessionID))

	result, err := h.sessionService.GetSession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// GetCurrent handles GET /sessions/current
func (h *SessionHandler) GetCurrent(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.session.get_current")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	result, err := h.sessionService.GetCurrentSession(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// GetAvailability handles GET /agents/:id/availability
func (h *SessionHandler) GetAvailability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.session.availability")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	agentID := c.Param("id")
	span.SetAttributes(attribute.String("agent_id", agentID))

	result, err := h.sessionService.GetAgentAvailability(ctx, agentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}
