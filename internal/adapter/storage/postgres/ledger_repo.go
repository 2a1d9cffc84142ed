package postgres

import (
	"context"
	"fmt"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletLedgerRepo implements ports.WalletLedgerRepository. Inserts happen
// only inside settlement transactions; the table carries no UPDATE or DELETE
// path at all.
type WalletLedgerRepo struct {
	pool Pool
}

// NewWalletLedgerRepo creates a new WalletLedgerRepo.
func NewWalletLedgerRepo(pool Pool) *WalletLedgerRepo {
	return &WalletLedgerRepo{pool: pool}
}

// Append inserts one ledger entry within a transaction.
func (r *WalletLedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.WalletLedgerEntry) error {
	query := `INSERT INTO wallet_ledger (id, user_id, type, amount, balance_after, description, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.UserID, e.Type, e.Amount, e.BalanceAfter,
		e.Description, e.ReferenceID, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByUser returns a page of the user's ledger, newest first.
func (r *WalletLedgerRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.WalletLedgerEntry, error) {
	query := `SELECT id, user_id, type, amount, balance_after, description, reference_id, created_at
		FROM wallet_ledger WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []domain.WalletLedgerEntry
	for rows.Next() {
		var e domain.WalletLedgerEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Type, &e.Amount, &e.BalanceAfter,
			&e.Description, &e.ReferenceID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SumByUser recomputes the balance from the ledger.
func (r *WalletLedgerRepo) SumByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM wallet_ledger WHERE user_id = $1`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}
