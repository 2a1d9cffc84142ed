package handler

import (
	"strconv"
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

// WalletHandler handles wallet funding, withdrawal and reporting endpoints.
type WalletHandler struct {
	walletSvc    ports.WalletService
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{
		walletSvc:    walletSvc,
		reportingSvc: reportingSvc,
	}
}

// Topup handles POST /api/v1/wallet/topup.
func (h *WalletHandler) Topup(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.walletSvc.RequestTopup(c.Request.Context(), ports.TopupRequest{
		UserID:   userID.(uuid.UUID),
		Amount:   req.Amount,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TopupResponse{
		TransactionID: result.Transaction.ID.String(),
		ExternalCode:  result.Transaction.ExternalCode,
		PayURL:        result.PayURL,
	})
}

// Withdraw handles POST /api/v1/wallet/withdrawals.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	tx, err := h.walletSvc.RequestWithdrawal(c.Request.Context(), ports.WithdrawalRequest{
		UserID:      userID.(uuid.UUID),
		Amount:      req.Amount,
		BankCode:    req.BankCode,
		BankAccount: req.BankAccount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPaymentTransactionResponse(tx))
}

// ReviewWithdrawal handles POST /api/v1/wallet/withdrawals/:id/review (staff only).
func (h *WalletHandler) ReviewWithdrawal(c *gin.Context) {
	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	tx, err := h.walletSvc.ReviewWithdrawal(c.Request.Context(), txID, req.Approve)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPaymentTransactionResponse(tx))
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, err := h.reportingSvc.GetBalance(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// ListLedger handles GET /api/v1/wallet/ledger.
func (h *WalletHandler) ListLedger(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit, offset := parsePagination(c)
	entries, err := h.reportingSvc.ListLedger(c.Request.Context(), userID.(uuid.UUID), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.LedgerEntryResponse{
			ID:           e.ID.String(),
			Type:         string(e.Type),
			Amount:       e.Amount,
			BalanceAfter: e.BalanceAfter,
			Description:  e.Description,
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		})
	}

	response.OK(c, items)
}

// GetRewards handles GET /api/v1/wallet/rewards.
func (h *WalletHandler) GetRewards(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	points, co2, err := h.reportingSvc.RewardTotals(c.Request.Context(), userID.(uuid.UUID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RewardsResponse{Points: points, CO2Grams: co2})
}

func toPaymentTransactionResponse(tx *domain.PaymentTransaction) dto.PaymentTransactionResponse {
	resp := dto.PaymentTransactionResponse{
		ID:           tx.ID.String(),
		Direction:    string(tx.Direction),
		Amount:       tx.Amount,
		ExternalCode: tx.ExternalCode,
		Status:       string(tx.Status),
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.ProcessedAt != nil {
		processed := tx.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &processed
	}
	return resp
}

func parsePagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
