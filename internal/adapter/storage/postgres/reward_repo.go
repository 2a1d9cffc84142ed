package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RewardLedgerRepo implements ports.RewardLedgerRepository.
type RewardLedgerRepo struct {
	pool Pool
}

// NewRewardLedgerRepo creates a new RewardLedgerRepo.
func NewRewardLedgerRepo(pool Pool) *RewardLedgerRepo {
	return &RewardLedgerRepo{pool: pool}
}

// Append inserts one reward entry within a transaction.
func (r *RewardLedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.RewardLedgerEntry) error {
	query := `INSERT INTO reward_ledger (id, user_id, kind, type, amount, balance_after, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.UserID, e.Kind, e.Type, e.Amount, e.BalanceAfter,
		e.ReferenceID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reward entry: %w", err)
	}
	return nil
}

// LastBalance reads the latest running total for a user and kind inside the
// transaction, so the next BalanceAfter is computed under the wallet lock.
func (r *RewardLedgerRepo) LastBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, kind domain.RewardKind) (int64, error) {
	query := `SELECT balance_after FROM reward_ledger
		WHERE user_id = $1 AND kind = $2 ORDER BY created_at DESC, id DESC LIMIT 1`

	var balance int64
	err := tx.QueryRow(ctx, query, userID, kind).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("last reward balance: %w", err)
	}
	return balance, nil
}

// TotalByUser sums a user's reward ledger for one kind.
func (r *RewardLedgerRepo) TotalByUser(ctx context.Context, userID uuid.UUID, kind domain.RewardKind) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM reward_ledger WHERE user_id = $1 AND kind = $2`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, userID, kind).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum reward ledger: %w", err)
	}
	return sum, nil
}

// ListByUser returns a page of the user's reward ledger, newest first.
func (r *RewardLedgerRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.RewardLedgerEntry, error) {
	query := `SELECT id, user_id, kind, type, amount, balance_after, reference_id, created_at
		FROM reward_ledger WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reward ledger: %w", err)
	}
	defer rows.Close()

	var out []domain.RewardLedgerEntry
	for rows.Next() {
		var e domain.RewardLedgerEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Kind, &e.Type, &e.Amount, &e.BalanceAfter,
			&e.ReferenceID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reward entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
