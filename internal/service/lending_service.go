package service

import (
	"context"
	"fmt"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/internal/core/settlement"
	"github.com/qtu11/SipMart-sub003/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// sideEffectTimeout bounds post-commit device/notification calls.
const sideEffectTimeout = 5 * time.Second

// LendingServiceImpl implements ports.LendingService.
type LendingServiceImpl struct {
	userRepo     ports.UserRepository
	assetRepo    ports.AssetRepository
	checkoutRepo ports.CheckoutRepository
	ledgerRepo   ports.WalletLedgerRepository
	rewardRepo   ports.RewardLedgerRepository
	transactor   ports.DBTransactor
	location     ports.LocationVerifier
	signaler     ports.DeviceSignaler
	notifier     ports.Notifier
	tariff       settlement.Tariff
	cupLoan      time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

// NewLendingService creates a new LendingServiceImpl.
func NewLendingService(
	userRepo ports.UserRepository,
	assetRepo ports.AssetRepository,
	checkoutRepo ports.CheckoutRepository,
	ledgerRepo ports.WalletLedgerRepository,
	rewardRepo ports.RewardLedgerRepository,
	transactor ports.DBTransactor,
	location ports.LocationVerifier,
	signaler ports.DeviceSignaler,
	notifier ports.Notifier,
	tariff settlement.Tariff,
	cupLoanPeriod time.Duration,
	log zerolog.Logger,
) *LendingServiceImpl {
	return &LendingServiceImpl{
		userRepo:     userRepo,
		assetRepo:    assetRepo,
		checkoutRepo: checkoutRepo,
		ledgerRepo:   ledgerRepo,
		rewardRepo:   rewardRepo,
		transactor:   transactor,
		location:     location,
		signaler:     signaler,
		notifier:     notifier,
		tariff:       tariff,
		cupLoan:      cupLoanPeriod,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// Checkout opens a borrow (cup) or rental (bike). Preconditions are checked
// in a fixed order, first failure wins; the state transition, checkout row,
// ledger debit and balance update form one atomic unit.
func (s *LendingServiceImpl) Checkout(ctx context.Context, req ports.CheckoutRequest) (*ports.CheckoutResult, error) {
	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	if !user.CanBorrow() {
		return nil, apperror.ErrUserBlocked()
	}

	asset, err := s.assetRepo.GetByID(ctx, req.AssetID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load asset: %w", err))
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("asset")
	}

	// One active bike rental per user; cups are unconstrained.
	if asset.Kind == domain.AssetKindBike {
		ongoing, err := s.checkoutRepo.CountOngoingByUser(ctx, req.UserID, domain.AssetKindBike)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("count ongoing rentals: %w", err))
		}
		if ongoing > 0 {
			return nil, apperror.ErrAlreadyRenting()
		}
	}

	if !asset.IsAvailable() {
		return nil, apperror.ErrAssetNotAvailable()
	}

	var charge int64
	var due time.Time
	var entryType domain.LedgerEntryType
	openedAt := s.now()

	switch asset.Kind {
	case domain.AssetKindCup:
		charge = s.tariff.CupDeposit
		due = openedAt.Add(s.cupLoan)
		entryType = domain.EntryBorrowFee
	case domain.AssetKindBike:
		if req.PlannedHours < 1 || req.PlannedHours > 24 {
			return nil, apperror.Validation("planned_hours must be between 1 and 24")
		}
		charge = settlement.BikeFare(s.tariff, req.PlannedHours)
		due = openedAt.Add(time.Duration(req.PlannedHours) * time.Hour)
		entryType = domain.EntryRentalFare
	default:
		return nil, apperror.Validation("unknown asset kind")
	}

	if user.Balance < charge {
		return nil, apperror.ErrInsufficientBalance(charge, user.Balance)
	}

	if asset.Kind == domain.AssetKindBike && !user.IdentityVerified {
		return nil, apperror.ErrVerificationRequired()
	}

	checkout := &domain.Checkout{
		ID:          uuid.New(),
		AssetID:     asset.ID,
		UserID:      user.ID,
		Kind:        asset.Kind,
		BranchID:    req.BranchID,
		OpenedAt:    openedAt,
		DueAt:       due,
		Status:      domain.CheckoutStatusOngoing,
		ChargeBasis: charge,
		PlannedHrs:  req.PlannedHours,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock the wallet row and recheck the balance against the locked read,
	// never against the earlier unlocked one.
	lockedUser, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, user.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if lockedUser == nil {
		return nil, apperror.ErrNotFound("user")
	}
	if lockedUser.Balance < charge {
		return nil, apperror.ErrInsufficientBalance(charge, lockedUser.Balance)
	}

	// Recheck the rental count under the wallet lock. The unlocked read above
	// can race a concurrent checkout of a different bike by the same user;
	// the asset claim only guards against two checkouts of the same bike.
	if asset.Kind == domain.AssetKindBike {
		ongoing, err := s.checkoutRepo.CountOngoingByUserTx(ctx, dbTx, user.ID, domain.AssetKindBike)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("recount ongoing rentals: %w", err))
		}
		if ongoing > 0 {
			return nil, apperror.ErrAlreadyRenting()
		}
	}

	claimed, err := s.assetRepo.ClaimForCheckout(ctx, dbTx, asset.ID, user.ID, checkout.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("claim asset: %w", err))
	}
	if !claimed {
		// A concurrent checkout won the race.
		return nil, apperror.ErrAssetNotAvailable()
	}

	if err := s.checkoutRepo.Create(ctx, dbTx, checkout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create checkout: %w", err))
	}

	newBalance := lockedUser.Balance - charge
	entry := &domain.WalletLedgerEntry{
		ID:           uuid.New(),
		UserID:       user.ID,
		Type:         entryType,
		Amount:       -charge,
		BalanceAfter: newBalance,
		Description:  fmt.Sprintf("%s checkout %s", asset.Kind, asset.Label),
		ReferenceID:  &checkout.ID,
		CreatedAt:    openedAt,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append ledger: %w", err))
	}
	if err := s.userRepo.UpdateBalance(ctx, dbTx, user.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("checkout_id", checkout.ID.String()).
		Str("asset", asset.Label).
		Str("user_id", user.ID.String()).
		Int64("charge", charge).
		Msg("checkout opened")

	// Post-commit side effects, best effort only.
	s.afterCommit(asset, user.ID, true)

	return &ports.CheckoutResult{
		CheckoutID: checkout.ID,
		Charge:     charge,
		NewBalance: newBalance,
		DueAt:      due,
	}, nil
}

// Return closes a checkout, settling the deposit/fare and crediting rewards.
// A second close attempt for the same checkout fails with a conflict.
func (s *LendingServiceImpl) Return(ctx context.Context, req ports.ReturnRequest) (*ports.ReturnResult, error) {
	checkout, err := s.checkoutRepo.GetByID(ctx, req.CheckoutID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load checkout: %w", err))
	}
	if checkout == nil {
		return nil, apperror.ErrNotFound("checkout")
	}
	if !checkout.OwnedBy(req.UserID) && !req.Staff {
		return nil, apperror.ErrNotOwner()
	}
	if !checkout.IsOngoing() {
		return nil, apperror.ErrCheckoutAlreadyClosed()
	}

	asset, err := s.assetRepo.GetByID(ctx, checkout.AssetID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load asset: %w", err))
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("asset")
	}
	if !asset.HeldBy(checkout.ID) {
		return nil, apperror.ErrAssetStateMismatch()
	}

	now := s.now()
	var outcome domain.Outcome
	var target domain.AssetStatus
	var distance *float64

	switch checkout.Kind {
	case domain.AssetKindCup:
		cup := settlement.SettleCup(s.tariff, checkout.ChargeBasis, checkout.OpenedAt, checkout.DueAt, now, req.Condition)
		outcome, target = cup.Outcome, cup.TargetState
	case domain.AssetKindBike:
		if req.DistanceKm <= 0.1 || req.DistanceKm > 500 {
			return nil, apperror.Validation("distance_km must be greater than 0.1 and at most 500")
		}
		atStation, err := s.location.AtStation(ctx, asset.ID, req.BranchID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("verify station: %w", err))
		}
		if !atStation {
			return nil, apperror.ErrNotAtStation()
		}
		bike := settlement.SettleBike(s.tariff, checkout.ChargeBasis, req.DistanceKm, req.Condition)
		outcome, target = bike.Outcome, bike.TargetState
		d := req.DistanceKm
		distance = &d
	default:
		return nil, apperror.Validation("unknown checkout kind")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	closed, err := s.checkoutRepo.Close(ctx, dbTx, checkout.ID, now, distance, &outcome)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("close checkout: %w", err))
	}
	if !closed {
		// Lost the race against a concurrent close.
		return nil, apperror.ErrCheckoutAlreadyClosed()
	}

	released, err := s.assetRepo.Release(ctx, dbTx, asset.ID, checkout.ID, target, req.BranchID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("release asset: %w", err))
	}
	if !released {
		return nil, apperror.ErrAssetStateMismatch()
	}

	lockedUser, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, checkout.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if lockedUser == nil {
		return nil, apperror.ErrNotFound("user")
	}

	newBalance := lockedUser.Balance
	if outcome.Refund > 0 {
		newBalance += outcome.Refund
		entry := &domain.WalletLedgerEntry{
			ID:           uuid.New(),
			UserID:       checkout.UserID,
			Type:         domain.EntryReturnDeposit,
			Amount:       outcome.Refund,
			BalanceAfter: newBalance,
			Description:  fmt.Sprintf("deposit refund for %s", asset.Label),
			ReferenceID:  &checkout.ID,
			CreatedAt:    now,
		}
		if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("append refund: %w", err))
		}
		if err := s.userRepo.UpdateBalance(ctx, dbTx, checkout.UserID, newBalance); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}
	}

	if err := s.creditRewards(ctx, dbTx, checkout.UserID, checkout.ID, domain.RewardTypeReturn, outcome.Points, outcome.CO2Grams, now); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("checkout_id", checkout.ID.String()).
		Str("asset", asset.Label).
		Int64("refund", outcome.Refund).
		Int64("overdue_penalty", outcome.OverduePenalty).
		Int64("damage_penalty", outcome.DamagePenalty).
		Int64("points", outcome.Points).
		Msg("checkout closed")

	s.afterCommit(asset, checkout.UserID, false)

	return &ports.ReturnResult{
		Outcome:    outcome,
		NewBalance: newBalance,
		Message:    returnMessage(checkout.Kind, outcome),
	}, nil
}

// RecordTrip settles a one-leg mobility trip: fare debit plus distance-based
// reward accrual, no asset involved.
func (s *LendingServiceImpl) RecordTrip(ctx context.Context, req ports.TripRequest) (*ports.TripResult, error) {
	if req.Fare <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	now := s.now()
	points := settlement.TripPoints(s.tariff, req.DistanceKm)
	co2 := settlement.TripCO2Grams(s.tariff, req.DistanceKm)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	lockedUser, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if lockedUser == nil {
		return nil, apperror.ErrNotFound("user")
	}
	if !lockedUser.CanBorrow() {
		return nil, apperror.ErrUserBlocked()
	}
	if lockedUser.Balance < req.Fare {
		return nil, apperror.ErrInsufficientBalance(req.Fare, lockedUser.Balance)
	}

	newBalance := lockedUser.Balance - req.Fare
	entry := &domain.WalletLedgerEntry{
		ID:           uuid.New(),
		UserID:       req.UserID,
		Type:         domain.EntryRentalFare,
		Amount:       -req.Fare,
		BalanceAfter: newBalance,
		Description:  fmt.Sprintf("trip fare, %.1f km", req.DistanceKm),
		ReferenceID:  &req.RouteID,
		CreatedAt:    now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append fare: %w", err))
	}
	if err := s.userRepo.UpdateBalance(ctx, dbTx, req.UserID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	if err := s.creditRewards(ctx, dbTx, req.UserID, req.RouteID, domain.RewardTypeTrip, points, co2, now); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Float64("distance_km", req.DistanceKm).
		Int64("fare", req.Fare).
		Msg("trip recorded")

	return &ports.TripResult{NewBalance: newBalance, Points: points, CO2Grams: co2}, nil
}

// MarkCleaned is the housekeeping transition bringing a cleaned or repaired
// unit back into circulation.
func (s *LendingServiceImpl) MarkCleaned(ctx context.Context, assetID uuid.UUID) error {
	ok, err := s.assetRepo.SetStatus(ctx, assetID,
		[]domain.AssetStatus{domain.AssetStatusCleaning, domain.AssetStatusBroken},
		domain.AssetStatusAvailable)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("mark cleaned: %w", err))
	}
	if !ok {
		return apperror.ErrAssetStateMismatch()
	}
	return nil
}

// creditRewards appends point and CO2 ledger entries inside the settlement
// transaction, reading the running totals under the same lock.
func (s *LendingServiceImpl) creditRewards(
	ctx context.Context,
	tx pgx.Tx,
	userID, refID uuid.UUID,
	entryType domain.RewardEntryType,
	points, co2 int64,
	at time.Time,
) error {
	for _, credit := range []struct {
		kind   domain.RewardKind
		amount int64
	}{
		{domain.RewardPoints, points},
		{domain.RewardCO2, co2},
	} {
		if credit.amount == 0 {
			continue
		}
		last, err := s.rewardRepo.LastBalance(ctx, tx, userID, credit.kind)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("read reward balance: %w", err))
		}
		entry := &domain.RewardLedgerEntry{
			ID:           uuid.New(),
			UserID:       userID,
			Kind:         credit.kind,
			Type:         entryType,
			Amount:       credit.amount,
			BalanceAfter: last + credit.amount,
			ReferenceID:  &refID,
			CreatedAt:    at,
		}
		if err := s.rewardRepo.Append(ctx, tx, entry); err != nil {
			return apperror.InternalError(fmt.Errorf("append reward: %w", err))
		}
	}
	return nil
}

// afterCommit fires the device signal and user notification outside the
// settlement transaction. Failures are logged and discarded.
func (s *LendingServiceImpl) afterCommit(asset *domain.Asset, userID uuid.UUID, unlock bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		var err error
		if unlock {
			err = s.signaler.Unlock(ctx, asset.Label)
		} else {
			err = s.signaler.Lock(ctx, asset.Label)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("asset", asset.Label).Msg("device signal failed")
		}

		title := "Checkout opened"
		if !unlock {
			title = "Return settled"
		}
		if err := s.notifier.Notify(ctx, userID, title, asset.Label); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("notification failed")
		}
	}()
}

// returnMessage renders the human-readable settlement summary.
func returnMessage(kind domain.AssetKind, out domain.Outcome) string {
	if kind == domain.AssetKindBike {
		return fmt.Sprintf("Rental ended. %d points and %dg CO2 credit earned.", out.Points, out.CO2Grams)
	}
	if out.OverduePenalty+out.DamagePenalty > 0 {
		return fmt.Sprintf("Deposit refund %d (penalties %d withheld). %d points earned.",
			out.Refund, out.OverduePenalty+out.DamagePenalty, out.Points)
	}
	return fmt.Sprintf("Deposit %d refunded in full. %d points earned.", out.Refund, out.Points)
}
