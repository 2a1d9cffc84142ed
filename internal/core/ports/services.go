package ports

import (
	"context"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"

	"github.com/google/uuid"
)

// --- Lending ---

// LendingService orchestrates asset transitions, the wallet ledger and reward
// accrual for the borrow/return lifecycle.
type LendingService interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	Return(ctx context.Context, req ReturnRequest) (*ReturnResult, error)
	RecordTrip(ctx context.Context, req TripRequest) (*TripResult, error)
	MarkCleaned(ctx context.Context, assetID uuid.UUID) error
}

// CheckoutRequest holds validated input for opening a checkout.
type CheckoutRequest struct {
	UserID       uuid.UUID
	AssetID      uuid.UUID
	BranchID     uuid.UUID // issuing branch (cups) or station (bikes)
	PlannedHours int       // bikes only, [1,24]
}

// CheckoutResult is returned to the caller after a successful checkout.
type CheckoutResult struct {
	CheckoutID uuid.UUID
	Charge     int64
	NewBalance int64
	DueAt      time.Time
}

// ReturnRequest holds validated input for closing a checkout.
type ReturnRequest struct {
	UserID     uuid.UUID
	Staff      bool // staff may close checkouts they do not own
	CheckoutID uuid.UUID
	BranchID   uuid.UUID // returning branch/station
	Condition  domain.ReturnCondition
	DistanceKm float64 // bikes only, (0.1, 500]
}

// ReturnResult is the settlement breakdown returned to the caller.
type ReturnResult struct {
	Outcome    domain.Outcome
	NewBalance int64
	Message    string
}

// TripRequest is the degenerate one-leg mobility case: fare charged up front,
// points/CO2 proportional to distance, no asset state machine involved.
type TripRequest struct {
	UserID     uuid.UUID
	RouteID    uuid.UUID
	DistanceKm float64
	Fare       int64
}

// TripResult reports the fare debit and reward accrual of a recorded trip.
type TripResult struct {
	NewBalance int64
	Points     int64
	CO2Grams   int64
}

// --- Wallet / gateway ---

// WalletService handles funding, withdrawal and the gateway callback.
type WalletService interface {
	RequestTopup(ctx context.Context, req TopupRequest) (*TopupResult, error)
	RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*domain.PaymentTransaction, error)
	ReviewWithdrawal(ctx context.Context, txID uuid.UUID, approve bool) (*domain.PaymentTransaction, error)
	HandleGatewayCallback(ctx context.Context, params map[string]string) (*CallbackResult, error)
}

// TopupRequest holds validated input for a wallet funding request.
type TopupRequest struct {
	UserID   uuid.UUID
	Amount   int64
	ClientIP string
}

// TopupResult carries the redirect URL the caller must follow to the gateway.
type TopupResult struct {
	Transaction *domain.PaymentTransaction
	PayURL      string
}

// WithdrawalRequest holds validated input for a withdrawal request.
type WithdrawalRequest struct {
	UserID      uuid.UUID
	Amount      int64
	BankCode    string
	BankAccount string
}

// CallbackResult reports the processed gateway callback.
type CallbackResult struct {
	Transaction *domain.PaymentTransaction
	Success     bool
	Message     string // human-readable taxonomy of the gateway result code
}

// --- Reporting ---

// ReportingService exposes read-only wallet and reward views.
type ReportingService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	ListLedger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.WalletLedgerEntry, error)
	RewardTotals(ctx context.Context, userID uuid.UUID) (points int64, co2Grams int64, err error)
}

// --- Gateway bridge ---

// GatewayBridge builds outbound signed redirect URLs and verifies inbound
// signed callbacks. Construction is deterministic and side-effect-free.
type GatewayBridge interface {
	// BuildPayURL returns the full redirect URL including the secureHash
	// parameter. Amount is in VND; the wire format multiplies by 100.
	BuildPayURL(req PayURLRequest) (string, error)
	// VerifyCallback recomputes the signature over the callback parameters
	// (minus the hash fields) and compares it to the received secureHash.
	VerifyCallback(params map[string]string) error
}

// PayURLRequest holds the outbound payment parameters.
type PayURLRequest struct {
	ExternalCode string
	Amount       int64
	OrderInfo    string
	ClientIP     string
	CreatedAt    time.Time
}

// --- Capability interfaces (stubbed integrations) ---

// LocationVerifier checks that an asset is physically at a station before a
// return may close. The production implementation is a geofencing stub.
type LocationVerifier interface {
	AtStation(ctx context.Context, assetID, stationID uuid.UUID) (bool, error)
}

// DeviceSignaler sends lock/unlock commands to the unit hardware.
// Best-effort, after commit, never inside the settlement transaction.
type DeviceSignaler interface {
	Unlock(ctx context.Context, assetLabel string) error
	Lock(ctx context.Context, assetLabel string) error
}

// Notifier enqueues a user-facing notification. Downstream, not part of
// settlement correctness.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string) error
}

// --- Auth plumbing ---

// TokenService handles bearer token operations for the HTTP layer.
type TokenService interface {
	Generate(userID uuid.UUID, staff bool) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed bearer token claims.
type TokenClaims struct {
	UserID uuid.UUID
	Staff  bool
}

// DeviceKeyVerifier checks the IoT webhook pre-shared key against its stored hash.
type DeviceKeyVerifier interface {
	Hash(key string) (string, error)
	Verify(key string, hash string) (bool, error)
}

// --- Redis-backed guards ---

// CallbackGuard is the fast-path replay check for processed callback codes.
// The database terminal-status transition remains the authoritative guard.
type CallbackGuard interface {
	Seen(ctx context.Context, externalCode string) (bool, error)
	MarkSeen(ctx context.Context, externalCode string, ttl time.Duration) error
}

// CounterResult holds the outcome of a windowed counter check.
type CounterResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// WindowCounter is a fixed-window counter, used for HTTP rate limits and the
// per-day withdrawal count limit.
type WindowCounter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*CounterResult, error)
}
