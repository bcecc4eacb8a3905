package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/airtime-live/stagedoor/internal/dto"
	"github.com/airtime-live/stagedoor/internal/service"
	"github.com/airtime-live/stagedoor/pkg/response"
	"github.com/airtime-live/stagedoor/pkg/telemetry"
)

// PointsHandler handles balance and ledger HTTP requests
type PointsHandler struct {
	pointsService service.PointsService
}

// NewPointsHandler creates a new points handler
func NewPointsHandler(pointsService service.PointsService) *PointsHandler {
	return &PointsHandler{pointsService: pointsService}
}

// GetBalance handles GET /points/balance
func (h *PointsHandler) GetBalance(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.points.balance")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}
	span.SetAttributes(attribute.String("user_id", userID))

	result, err := h.pointsService.GetBalance(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// Spend handles POST /points/spend
func (h *PointsHandler) Spend(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.points.spend")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	var req dto.SpendPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("amount", req.Amount),
	)

	reason := req.Reason
	if reason == "" {
		reason = "points spend"
	}

	tx, err := h.pointsService.Spend(ctx, userID, req.Amount, reason, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, &dto.SpendPointsResponse{
		NewBalance:  tx.BalanceAfter,
		Transaction: dto.TransactionFromDomain(tx),
	})
}

// GetHistory handles GET /points/history
func (h *PointsHandler) GetHistory(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.points.history")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString("user_id")
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("page", page),
	)

	result, err := h.pointsService.GetHistory(ctx, userID, page, pageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}
