package dto

// CheckoutRequest is the request body for opening a borrow or rental.
type CheckoutRequest struct {
	AssetLabel   string `json:"asset_label" binding:"required,safe_id,max=64"`
	BranchID     string `json:"branch_id" binding:"required,uuid"`
	PlannedHours int    `json:"planned_hours,omitempty" binding:"omitempty,min=1,max=24"`
}

// CheckoutResponse is the response body for a successful checkout.
type CheckoutResponse struct {
	CheckoutID string `json:"checkout_id"`
	Charge     int64  `json:"charge"`
	NewBalance int64  `json:"new_balance"`
	DueAt      string `json:"due_at"`
}

// ReturnRequest is the request body for closing a checkout.
type ReturnRequest struct {
	BranchID   string  `json:"branch_id" binding:"required,uuid"`
	Condition  string  `json:"condition" binding:"required,oneof=clean dirty damaged"`
	DistanceKm float64 `json:"distance_km,omitempty" binding:"omitempty,gt=0.1,lte=500"`
}

// ReturnResponse is the settlement breakdown returned to the caller.
type ReturnResponse struct {
	Refund         int64  `json:"refund"`
	OverduePenalty int64  `json:"overdue_penalty"`
	DamagePenalty  int64  `json:"damage_penalty"`
	HoursOverdue   int64  `json:"hours_overdue"`
	Points         int64  `json:"points"`
	CO2Grams       int64  `json:"co2_grams"`
	NewBalance     int64  `json:"new_balance"`
	Message        string `json:"message"`
}

// CheckoutSummaryResponse is one checkout line in a history listing.
type CheckoutSummaryResponse struct {
	ID         string   `json:"id"`
	AssetID    string   `json:"asset_id"`
	Kind       string   `json:"kind"`
	Status     string   `json:"status"`
	OpenedAt   string   `json:"opened_at"`
	DueAt      string   `json:"due_at"`
	ClosedAt   *string  `json:"closed_at,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Refund     *int64   `json:"refund,omitempty"`
	Points     *int64   `json:"points,omitempty"`
}

// TripRequest is the request body for recording a one-leg mobility trip.
type TripRequest struct {
	RouteID    string  `json:"route_id" binding:"required,uuid"`
	DistanceKm float64 `json:"distance_km" binding:"required,gt=0.1,lte=500"`
	Fare       int64   `json:"fare" binding:"required,gt=0"`
}

// TripResponse reports the fare debit and reward accrual.
type TripResponse struct {
	NewBalance int64 `json:"new_balance"`
	Points     int64 `json:"points"`
	CO2Grams   int64 `json:"co2_grams"`
}

// TopupRequest is the request body for a wallet funding request.
type TopupRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// TopupResponse carries the gateway redirect URL.
type TopupResponse struct {
	TransactionID string `json:"transaction_id"`
	ExternalCode  string `json:"external_code"`
	PayURL        string `json:"pay_url"`
}

// WithdrawalRequest is the request body for a withdrawal request.
type WithdrawalRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	BankCode    string `json:"bank_code" binding:"required,safe_id,max=20"`
	BankAccount string `json:"bank_account" binding:"required,numeric,min=6,max=20"`
}

// ReviewRequest is the request body for resolving a withdrawal review.
type ReviewRequest struct {
	Approve bool `json:"approve"`
}

// PaymentTransactionResponse is the response body for payment transactions.
type PaymentTransactionResponse struct {
	ID           string  `json:"id"`
	Direction    string  `json:"direction"`
	Amount       int64   `json:"amount"`
	ExternalCode string  `json:"external_code"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
	ProcessedAt  *string `json:"processed_at,omitempty"`
}

// CallbackResponse is returned to the gateway after processing its callback.
type CallbackResponse struct {
	ExternalCode string `json:"external_code"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// RewardsResponse is the response for a reward totals query.
type RewardsResponse struct {
	Points   int64 `json:"points"`
	CO2Grams int64 `json:"co2_grams"`
}

// LedgerEntryResponse is one wallet ledger line.
type LedgerEntryResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Amount       int64  `json:"amount"`
	BalanceAfter int64  `json:"balance_after"`
	Description  string `json:"description"`
	CreatedAt    string `json:"created_at"`
}

// DeviceEventRequest is the request body on the IoT webhook.
type DeviceEventRequest struct {
	DeviceLabel string `json:"device_label" binding:"required,safe_id,max=64"`
	Type        string `json:"type" binding:"required,oneof=geofence_breach low_battery tamper"`
	Payload     string `json:"payload" binding:"max=4096"`
}
