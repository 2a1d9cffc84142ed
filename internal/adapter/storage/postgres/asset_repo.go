package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AssetRepo implements ports.AssetRepository.
type AssetRepo struct {
	pool Pool
}

// NewAssetRepo creates a new AssetRepo.
func NewAssetRepo(pool Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

const assetColumns = `id, label, kind, status, current_holder, current_checkout_id, home_location_id, created_at, updated_at`

func scanAsset(row pgx.Row) (*domain.Asset, error) {
	a := &domain.Asset{}
	err := row.Scan(
		&a.ID, &a.Label, &a.Kind, &a.Status, &a.CurrentHolder,
		&a.CurrentCheckoutID, &a.HomeLocationID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new asset into the database.
func (r *AssetRepo) Create(ctx context.Context, a *domain.Asset) error {
	query := `INSERT INTO assets (id, label, kind, status, current_holder, current_checkout_id, home_location_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Label, a.Kind, a.Status, a.CurrentHolder,
		a.CurrentCheckoutID, a.HomeLocationID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetByID fetches an asset by ID (without locking).
func (r *AssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	a, err := scanAsset(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset by id: %w", err)
	}
	return a, nil
}

// GetByLabel fetches an asset by its printed label.
func (r *AssetRepo) GetByLabel(ctx context.Context, label string) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE label = $1`

	a, err := scanAsset(r.pool.QueryRow(ctx, query, label))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset by label: %w", err)
	}
	return a, nil
}

// GetByIDForUpdate fetches an asset by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *AssetRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1 FOR UPDATE`

	a, err := scanAsset(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset for update: %w", err)
	}
	return a, nil
}

// ClaimForCheckout transitions available -> in_use, conditional on the
// current status. A zero row count means a concurrent claim won.
func (r *AssetRepo) ClaimForCheckout(ctx context.Context, tx pgx.Tx, assetID, userID, checkoutID uuid.UUID) (bool, error) {
	query := `UPDATE assets
		SET status = $1, current_holder = $2, current_checkout_id = $3, home_location_id = NULL, updated_at = NOW()
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query,
		domain.AssetStatusInUse, userID, checkoutID,
		assetID, domain.AssetStatusAvailable,
	)
	if err != nil {
		return false, fmt.Errorf("claim asset: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release transitions in_use -> target, conditional on the recorded checkout
// reference. A zero row count means the asset is not held under this checkout.
func (r *AssetRepo) Release(ctx context.Context, tx pgx.Tx, assetID, checkoutID uuid.UUID, target domain.AssetStatus, locationID uuid.UUID) (bool, error) {
	query := `UPDATE assets
		SET status = $1, current_holder = NULL, current_checkout_id = NULL, home_location_id = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4 AND current_checkout_id = $5`

	tag, err := tx.Exec(ctx, query,
		target, locationID,
		assetID, domain.AssetStatusInUse, checkoutID,
	)
	if err != nil {
		return false, fmt.Errorf("release asset: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetStatus performs the housekeeping transition outside any checkout.
func (r *AssetRepo) SetStatus(ctx context.Context, assetID uuid.UUID, from []domain.AssetStatus, to domain.AssetStatus) (bool, error) {
	query := `UPDATE assets SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)`

	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, query, to, assetID, states)
	if err != nil {
		return false, fmt.Errorf("set asset status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
