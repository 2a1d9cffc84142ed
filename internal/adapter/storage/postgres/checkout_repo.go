package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CheckoutRepo implements ports.CheckoutRepository. The outcome column is
// JSONB; rows are append-then-close, never deleted.
type CheckoutRepo struct {
	pool Pool
}

// NewCheckoutRepo creates a new CheckoutRepo.
func NewCheckoutRepo(pool Pool) *CheckoutRepo {
	return &CheckoutRepo{pool: pool}
}

const checkoutColumns = `id, asset_id, user_id, kind, branch_id, opened_at, due_at, closed_at, status, charge_basis, planned_hours, distance_km, outcome`

func scanCheckout(row pgx.Row) (*domain.Checkout, error) {
	c := &domain.Checkout{}
	err := row.Scan(
		&c.ID, &c.AssetID, &c.UserID, &c.Kind, &c.BranchID,
		&c.OpenedAt, &c.DueAt, &c.ClosedAt, &c.Status,
		&c.ChargeBasis, &c.PlannedHrs, &c.DistanceKm, &c.Outcome,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new checkout within the opening transaction.
func (r *CheckoutRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.Checkout) error {
	query := `INSERT INTO checkouts (id, asset_id, user_id, kind, branch_id, opened_at, due_at, status, charge_basis, planned_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		c.ID, c.AssetID, c.UserID, c.Kind, c.BranchID,
		c.OpenedAt, c.DueAt, c.Status, c.ChargeBasis, c.PlannedHrs,
	)
	if err != nil {
		return fmt.Errorf("insert checkout: %w", err)
	}
	return nil
}

// GetByID fetches a checkout by ID.
func (r *CheckoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Checkout, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE id = $1`

	c, err := scanCheckout(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get checkout by id: %w", err)
	}
	return c, nil
}

// Close marks the checkout completed and stores the outcome, conditional on
// it still being ongoing. A zero row count means it was already closed.
func (r *CheckoutRepo) Close(ctx context.Context, tx pgx.Tx, id uuid.UUID, closedAt time.Time, distanceKm *float64, outcome *domain.Outcome) (bool, error) {
	query := `UPDATE checkouts
		SET status = $1, closed_at = $2, distance_km = $3, outcome = $4
		WHERE id = $5 AND status = $6`

	tag, err := tx.Exec(ctx, query,
		domain.CheckoutStatusCompleted, closedAt, distanceKm, outcome,
		id, domain.CheckoutStatusOngoing,
	)
	if err != nil {
		return false, fmt.Errorf("close checkout: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CountOngoingByUser counts the user's open checkouts of one kind.
func (r *CheckoutRepo) CountOngoingByUser(ctx context.Context, userID uuid.UUID, kind domain.AssetKind) (int64, error) {
	query := `SELECT COUNT(*) FROM checkouts WHERE user_id = $1 AND kind = $2 AND status = $3`

	var n int64
	err := r.pool.QueryRow(ctx, query, userID, kind, domain.CheckoutStatusOngoing).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ongoing checkouts: %w", err)
	}
	return n, nil
}

// CountOngoingByUserTx is the transactional variant of CountOngoingByUser,
// reading through the caller's transaction.
func (r *CheckoutRepo) CountOngoingByUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.AssetKind) (int64, error) {
	query := `SELECT COUNT(*) FROM checkouts WHERE user_id = $1 AND kind = $2 AND status = $3`

	var n int64
	err := tx.QueryRow(ctx, query, userID, kind, domain.CheckoutStatusOngoing).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ongoing checkouts: %w", err)
	}
	return n, nil
}

// ListByUser returns the user's checkout history, newest first.
func (r *CheckoutRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Checkout, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts
		WHERE user_id = $1 ORDER BY opened_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list checkouts: %w", err)
	}
	defer rows.Close()

	var out []domain.Checkout
	for rows.Next() {
		c, err := scanCheckout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
