package service

import (
	"context"
	"fmt"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReportingServiceImpl implements ports.ReportingService. Read-only views
// over the wallet and reward ledgers.
type ReportingServiceImpl struct {
	userRepo   ports.UserRepository
	ledgerRepo ports.WalletLedgerRepository
	rewardRepo ports.RewardLedgerRepository
	log        zerolog.Logger
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(
	userRepo ports.UserRepository,
	ledgerRepo ports.WalletLedgerRepository,
	rewardRepo ports.RewardLedgerRepository,
	log zerolog.Logger,
) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		rewardRepo: rewardRepo,
		log:        log,
	}
}

// GetBalance returns the user's wallet balance. The ledger sum is the source
// of truth; a drifted projection is reported and the ledger value returned.
func (s *ReportingServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("load user: %w", err))
	}
	if user == nil {
		return 0, apperror.ErrNotFound("user")
	}

	sum, err := s.ledgerRepo.SumByUser(ctx, userID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("sum ledger: %w", err))
	}
	if sum != user.Balance {
		s.log.Error().
			Str("user_id", userID.String()).
			Int64("projection", user.Balance).
			Int64("ledger_sum", sum).
			Msg("wallet projection drift detected")
	}
	return sum, nil
}

// ListLedger returns a page of the user's wallet ledger, newest first.
func (s *ReportingServiceImpl) ListLedger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.WalletLedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := s.ledgerRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list ledger: %w", err))
	}
	return entries, nil
}

// RewardTotals returns the user's accumulated points and CO2 credit.
func (s *ReportingServiceImpl) RewardTotals(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	points, err := s.rewardRepo.TotalByUser(ctx, userID, domain.RewardPoints)
	if err != nil {
		return 0, 0, apperror.InternalError(fmt.Errorf("sum points: %w", err))
	}
	co2, err := s.rewardRepo.TotalByUser(ctx, userID, domain.RewardCO2)
	if err != nil {
		return 0, 0, apperror.InternalError(fmt.Errorf("sum co2: %w", err))
	}
	return points, co2, nil
}
