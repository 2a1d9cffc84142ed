package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string         `json:"error_code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"` // Structured fields the caller can branch on
	Err        error          `json:"-"`                 // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// WithDetails attaches structured detail fields and returns the error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// ---- Validation (VAL) ----

// Validation returns a 400 error with field-level detail in the message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- Lending Preconditions (PRE) ----

func ErrUserBlocked() *AppError {
	return New("PRE_001", "User account is blacklisted", http.StatusForbidden)
}

func ErrAlreadyRenting() *AppError {
	return New("PRE_002", "User already has an ongoing rental", http.StatusConflict)
}

func ErrAssetNotAvailable() *AppError {
	return New("PRE_003", "Asset is not available for checkout", http.StatusConflict)
}

// ErrInsufficientBalance reports required vs. current balance so the caller
// can redirect to a top-up flow.
func ErrInsufficientBalance(required, current int64) *AppError {
	return New("PRE_004", "Wallet balance is insufficient", http.StatusPaymentRequired).
		WithDetails(map[string]any{"required": required, "current": current})
}

func ErrVerificationRequired() *AppError {
	return New("PRE_005", "Identity verification is required before renting", http.StatusForbidden)
}

func ErrNotAtStation() *AppError {
	return New("PRE_006", "Asset is not at the returning station", http.StatusConflict)
}

// ---- Not Found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Conflicts (CNF) ----

func ErrCheckoutAlreadyClosed() *AppError {
	return New("CNF_001", "Checkout has already been closed", http.StatusConflict)
}

func ErrAssetStateMismatch() *AppError {
	return New("CNF_002", "Asset state does not match the checkout being closed", http.StatusConflict)
}

func ErrCallbackAlreadyProcessed() *AppError {
	return New("CNF_003", "Payment callback was already processed", http.StatusConflict)
}

func ErrNotOwner() *AppError {
	return New("CNF_004", "Checkout belongs to a different user", http.StatusForbidden)
}

// ---- Wallet / Payments (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_001", "Invalid amount", http.StatusBadRequest)
}

func ErrWithdrawalOutOfBounds(minAmount, maxAmount int64) *AppError {
	return New("PAY_002", "Withdrawal amount outside allowed bounds", http.StatusBadRequest).
		WithDetails(map[string]any{"min": minAmount, "max": maxAmount})
}

func ErrWithdrawalLimitReached() *AppError {
	return New("PAY_003", "Daily withdrawal count limit reached", http.StatusUnprocessableEntity)
}

func ErrWithdrawalNotReviewable() *AppError {
	return New("PAY_004", "Withdrawal is not pending review", http.StatusConflict)
}

// ---- Security (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid gateway signature", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrStaffOnly() *AppError {
	return New("SEC_003", "Staff permission required", http.StatusForbidden)
}

func ErrInvalidDeviceKey() *AppError {
	return New("SEC_004", "Invalid device key", http.StatusUnauthorized)
}

func ErrSourceNotAllowed() *AppError {
	return New("SEC_005", "Source address not allowed", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrStoreUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Data store unavailable", http.StatusInternalServerError, err)
}
