package handler

import (
	"time"

	"github.com/qtu11/SipMart-sub003/internal/adapter/http/dto"
	"github.com/qtu11/SipMart-sub003/internal/adapter/http/middleware"
	"github.com/qtu11/SipMart-sub003/internal/core/domain"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/pkg/apperror"
	"github.com/qtu11/SipMart-sub003/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LendingHandler handles checkout, return and trip endpoints.
type LendingHandler struct {
	lendingSvc   ports.LendingService
	assetRepo    ports.AssetRepository
	checkoutRepo ports.CheckoutRepository
}

// NewLendingHandler creates a new LendingHandler.
func NewLendingHandler(lendingSvc ports.LendingService, assetRepo ports.AssetRepository, checkoutRepo ports.CheckoutRepository) *LendingHandler {
	return &LendingHandler{
		lendingSvc:   lendingSvc,
		assetRepo:    assetRepo,
		checkoutRepo: checkoutRepo,
	}
}

// Checkout handles POST /api/v1/checkouts.
func (h *LendingHandler) Checkout(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	asset, err := h.assetRepo.GetByLabel(c.Request.Context(), req.AssetLabel)
	if err != nil {
		response.Error(c, apperror.ErrStoreUnavailable(err))
		return
	}
	if asset == nil {
		response.Error(c, apperror.ErrNotFound("asset"))
		return
	}

	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid branch_id"))
		return
	}

	result, err := h.lendingSvc.Checkout(c.Request.Context(), ports.CheckoutRequest{
		UserID:       userID.(uuid.UUID),
		AssetID:      asset.ID,
		BranchID:     branchID,
		PlannedHours: req.PlannedHours,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CheckoutResponse{
		CheckoutID: result.CheckoutID.String(),
		Charge:     result.Charge,
		NewBalance: result.NewBalance,
		DueAt:      result.DueAt.Format(time.RFC3339),
	})
}

// Return handles POST /api/v1/checkouts/:id/return.
func (h *LendingHandler) Return(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	checkoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid checkout id"))
		return
	}

	var req dto.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid branch_id"))
		return
	}

	result, err := h.lendingSvc.Return(c.Request.Context(), ports.ReturnRequest{
		UserID:     userID.(uuid.UUID),
		Staff:      c.GetBool(middleware.CtxStaff),
		CheckoutID: checkoutID,
		BranchID:   branchID,
		Condition:  domain.ReturnCondition(req.Condition),
		DistanceKm: req.DistanceKm,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ReturnResponse{
		Refund:         result.Outcome.Refund,
		OverduePenalty: result.Outcome.OverduePenalty,
		DamagePenalty:  result.Outcome.DamagePenalty,
		HoursOverdue:   result.Outcome.HoursOverdue,
		Points:         result.Outcome.Points,
		CO2Grams:       result.Outcome.CO2Grams,
		NewBalance:     result.NewBalance,
		Message:        result.Message,
	})
}

// RecordTrip handles POST /api/v1/trips.
func (h *LendingHandler) RecordTrip(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	routeID, err := uuid.Parse(req.RouteID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid route_id"))
		return
	}

	result, err := h.lendingSvc.RecordTrip(c.Request.Context(), ports.TripRequest{
		UserID:     userID.(uuid.UUID),
		RouteID:    routeID,
		DistanceKm: req.DistanceKm,
		Fare:       req.Fare,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TripResponse{
		NewBalance: result.NewBalance,
		Points:     result.Points,
		CO2Grams:   result.CO2Grams,
	})
}

// ListCheckouts handles GET /api/v1/checkouts.
func (h *LendingHandler) ListCheckouts(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit, offset := parsePagination(c)
	checkouts, err := h.checkoutRepo.ListByUser(c.Request.Context(), userID.(uuid.UUID), limit, offset)
	if err != nil {
		response.Error(c, apperror.ErrStoreUnavailable(err))
		return
	}

	items := make([]dto.CheckoutSummaryResponse, 0, len(checkouts))
	for _, co := range checkouts {
		item := dto.CheckoutSummaryResponse{
			ID:       co.ID.String(),
			AssetID:  co.AssetID.String(),
			Kind:     string(co.Kind),
			Status:   string(co.Status),
			OpenedAt: co.OpenedAt.Format(time.RFC3339),
			DueAt:    co.DueAt.Format(time.RFC3339),
		}
		if co.ClosedAt != nil {
			closed := co.ClosedAt.Format(time.RFC3339)
			item.ClosedAt = &closed
		}
		item.DistanceKm = co.DistanceKm
		if co.Outcome != nil {
			item.Refund = &co.Outcome.Refund
			item.Points = &co.Outcome.Points
		}
		items = append(items, item)
	}

	response.OK(c, items)
}

// MarkCleaned handles POST /api/v1/assets/:id/cleaned (staff only).
func (h *LendingHandler) MarkCleaned(c *gin.Context) {
	assetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid asset id"))
		return
	}

	if err := h.lendingSvc.MarkCleaned(c.Request.Context(), assetID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"asset_id": assetID.String(), "status": string(domain.AssetStatusAvailable)})
}
