package ports

import (
	"context"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for wallet holders.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// GetByIDForUpdate locks the user row; the wallet balance read from it is
	// the basis for every ledger append in the same transaction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance int64) error
}

// AssetRepository defines persistence operations for physical units.
type AssetRepository interface {
	Create(ctx context.Context, asset *domain.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	GetByLabel(ctx context.Context, label string) (*domain.Asset, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Asset, error)
	// ClaimForCheckout transitions available -> in_use, setting holder and
	// checkout ref. Returns false when the asset lost the race (status was no
	// longer available).
	ClaimForCheckout(ctx context.Context, tx pgx.Tx, assetID, userID, checkoutID uuid.UUID) (bool, error)
	// Release transitions in_use -> target, clearing holder and checkout ref.
	// Conditional on the recorded checkout ref matching; returns false on mismatch.
	Release(ctx context.Context, tx pgx.Tx, assetID, checkoutID uuid.UUID, target domain.AssetStatus, locationID uuid.UUID) (bool, error)
	// SetStatus is the housekeeping transition (cleaning/broken -> available).
	// Returns false when the asset was not in any of the from states.
	SetStatus(ctx context.Context, assetID uuid.UUID, from []domain.AssetStatus, to domain.AssetStatus) (bool, error)
}

// CheckoutRepository defines persistence operations for borrow/rental records.
type CheckoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, checkout *domain.Checkout) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Checkout, error)
	// Close marks the checkout completed and stores the outcome exactly once.
	// Returns false when the checkout was already closed (idempotency guard).
	Close(ctx context.Context, tx pgx.Tx, id uuid.UUID, closedAt time.Time, distanceKm *float64, outcome *domain.Outcome) (bool, error)
	CountOngoingByUser(ctx context.Context, userID uuid.UUID, kind domain.AssetKind) (int64, error)
	// CountOngoingByUserTx re-counts inside the caller's transaction. Run it
	// after the wallet row lock: concurrent checkouts by the same user
	// serialize on that lock, so the locked count cannot miss a rental that
	// commits in between.
	CountOngoingByUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.AssetKind) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Checkout, error)
}

// WalletLedgerRepository is the append-only money-event log.
type WalletLedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.WalletLedgerEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.WalletLedgerEntry, error)
	// SumByUser recomputes the balance from the ledger, independent of the
	// cached projection.
	SumByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// RewardLedgerRepository is the append-only point/credit-event log.
type RewardLedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.RewardLedgerEntry) error
	// LastBalance reads the running total for a user and kind inside the
	// transaction, to compute the next BalanceAfter.
	LastBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.RewardKind) (int64, error)
	TotalByUser(ctx context.Context, userID uuid.UUID, kind domain.RewardKind) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.RewardLedgerEntry, error)
}

// PaymentTransactionRepository tracks gateway funding/withdrawal transactions.
type PaymentTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.PaymentTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error)
	GetByExternalCode(ctx context.Context, code string) (*domain.PaymentTransaction, error)
	// MarkTerminal moves a pending or processing transaction to a terminal
	// state. Returns false when the external code was already terminal or is
	// held at needs_review; this is the idempotency boundary against
	// duplicate or replayed callbacks, and it keeps a signed callback from
	// skipping the reviewer.
	MarkTerminal(ctx context.Context, tx pgx.Tx, externalCode string, to domain.PaymentStatus, processedAt time.Time) (bool, error)
	// Transition moves id from one specific status to another (reviewer path).
	Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.PaymentStatus) (bool, error)
}

// IncidentRepository stores device-originated incident records.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	ListRecent(ctx context.Context, limit int) ([]domain.Incident, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
