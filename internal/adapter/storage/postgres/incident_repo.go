package postgres

import (
	"context"
	"fmt"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"
)

// IncidentRepo implements ports.IncidentRepository.
type IncidentRepo struct {
	pool Pool
}

// NewIncidentRepo creates a new IncidentRepo.
func NewIncidentRepo(pool Pool) *IncidentRepo {
	return &IncidentRepo{pool: pool}
}

// Create inserts a device incident. Incidents are outside the settlement
// transaction boundary, so no tx parameter.
func (r *IncidentRepo) Create(ctx context.Context, i *domain.Incident) error {
	query := `INSERT INTO incidents (id, device_label, asset_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		i.ID, i.DeviceLabel, i.AssetID, i.Type, i.Payload, i.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// ListRecent returns the most recent incidents.
func (r *IncidentRepo) ListRecent(ctx context.Context, limit int) ([]domain.Incident, error) {
	query := `SELECT id, device_label, asset_id, type, payload, created_at
		FROM incidents ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		var i domain.Incident
		if err := rows.Scan(&i.ID, &i.DeviceLabel, &i.AssetID, &i.Type, &i.Payload, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
