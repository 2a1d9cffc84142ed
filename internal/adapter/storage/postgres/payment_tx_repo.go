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

// PaymentTransactionRepo implements ports.PaymentTransactionRepository.
type PaymentTransactionRepo struct {
	pool Pool
}

// NewPaymentTransactionRepo creates a new PaymentTransactionRepo.
func NewPaymentTransactionRepo(pool Pool) *PaymentTransactionRepo {
	return &PaymentTransactionRepo{pool: pool}
}

const paymentColumns = `id, user_id, direction, amount, external_code, status, bank_code, bank_account, created_at, processed_at`

func scanPayment(row pgx.Row) (*domain.PaymentTransaction, error) {
	p := &domain.PaymentTransaction{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Direction, &p.Amount, &p.ExternalCode,
		&p.Status, &p.BankCode, &p.BankAccount, &p.CreatedAt, &p.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new payment transaction within a transaction.
func (r *PaymentTransactionRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PaymentTransaction) error {
	query := `INSERT INTO payment_transactions (id, user_id, direction, amount, external_code, status, bank_code, bank_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.UserID, p.Direction, p.Amount, p.ExternalCode,
		p.Status, p.BankCode, p.BankAccount, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment transaction by ID.
func (r *PaymentTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by id: %w", err)
	}
	return p, nil
}

// GetByExternalCode fetches a payment transaction by its gateway reference.
func (r *PaymentTransactionRepo) GetByExternalCode(ctx context.Context, code string) (*domain.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE external_code = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by external code: %w", err)
	}
	return p, nil
}

// MarkTerminal moves a transaction to a terminal state, conditional on it
// being pending or processing. A needs_review withdrawal stays put until a
// reviewer resolves it, and the zero row count on replay is the idempotency
// boundary for the gateway callback.
func (r *PaymentTransactionRepo) MarkTerminal(ctx context.Context, tx pgx.Tx, externalCode string, to domain.PaymentStatus, processedAt time.Time) (bool, error) {
	query := `UPDATE payment_transactions
		SET status = $1, processed_at = $2
		WHERE external_code = $3 AND status IN ($4, $5)`

	tag, err := tx.Exec(ctx, query,
		to, processedAt, externalCode,
		domain.PaymentStatusPending, domain.PaymentStatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("mark payment terminal: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Transition moves a transaction between two specific states.
func (r *PaymentTransactionRepo) Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.PaymentStatus) (bool, error) {
	query := `UPDATE payment_transactions SET status = $1 WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("transition payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
