package service

import (
	"context"
	"fmt"
	"time"

	"github.com/qtu11/SipMart-sub003/config"
	"github.com/qtu11/SipMart-sub003/internal/core/domain"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"
	"github.com/qtu11/SipMart-sub003/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// callbackSeenTTL is how long a processed external code stays in the
// fast-path replay cache. The database terminal-status transition remains
// the authoritative guard after expiry.
const callbackSeenTTL = 48 * time.Hour

// withdrawalWindow is the fixed window for the per-user withdrawal count limit.
const withdrawalWindow = 24 * time.Hour

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	userRepo    ports.UserRepository
	paymentRepo ports.PaymentTransactionRepository
	ledgerRepo  ports.WalletLedgerRepository
	transactor  ports.DBTransactor
	bridge      ports.GatewayBridge
	guard       ports.CallbackGuard
	counter     ports.WindowCounter
	notifier    ports.Notifier
	cfg         config.WithdrawalConfig
	now         func() time.Time
	log         zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	userRepo ports.UserRepository,
	paymentRepo ports.PaymentTransactionRepository,
	ledgerRepo ports.WalletLedgerRepository,
	transactor ports.DBTransactor,
	bridge ports.GatewayBridge,
	guard ports.CallbackGuard,
	counter ports.WindowCounter,
	notifier ports.Notifier,
	cfg config.WithdrawalConfig,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		ledgerRepo:  ledgerRepo,
		transactor:  transactor,
		bridge:      bridge,
		guard:       guard,
		counter:     counter,
		notifier:    notifier,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// RequestTopup records a pending funding transaction and returns the signed
// gateway redirect URL. No money moves until the gateway callback lands.
func (s *WalletServiceImpl) RequestTopup(ctx context.Context, req ports.TopupRequest) (*ports.TopupResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}

	now := s.now()
	code := domain.BuildExternalCode(req.UserID, now)

	payURL, err := s.bridge.BuildPayURL(ports.PayURLRequest{
		ExternalCode: code,
		Amount:       req.Amount,
		OrderInfo:    fmt.Sprintf("Wallet topup for %s", user.FullName),
		ClientIP:     req.ClientIP,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build pay url: %w", err))
	}

	payment := &domain.PaymentTransaction{
		ID:           uuid.New(),
		UserID:       req.UserID,
		Direction:    domain.DirectionTopup,
		Amount:       req.Amount,
		ExternalCode: code,
		Status:       domain.PaymentStatusPending,
		CreatedAt:    now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.paymentRepo.Create(ctx, dbTx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("external_code", code).
		Str("user_id", req.UserID.String()).
		Int64("amount", req.Amount).
		Msg("topup requested")

	return &ports.TopupResult{Transaction: payment, PayURL: payURL}, nil
}

// RequestWithdrawal debits the wallet immediately and records the outbound
// transaction. Large amounts stop at needs_review; the rest go straight to
// processing.
func (s *WalletServiceImpl) RequestWithdrawal(ctx context.Context, req ports.WithdrawalRequest) (*domain.PaymentTransaction, error) {
	if req.Amount < s.cfg.MinAmount || req.Amount > s.cfg.MaxAmount {
		return nil, apperror.ErrWithdrawalOutOfBounds(s.cfg.MinAmount, s.cfg.MaxAmount)
	}

	counted, err := s.counter.Allow(ctx, "withdrawals:"+req.UserID.String(), s.cfg.DailyCount, withdrawalWindow)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("withdrawal counter: %w", err))
	}
	if !counted.Allowed {
		return nil, apperror.ErrWithdrawalLimitReached()
	}

	now := s.now()
	status := domain.PaymentStatusProcessing
	if req.Amount >= s.cfg.ReviewThreshold {
		status = domain.PaymentStatusNeedsReview
	}

	payment := &domain.PaymentTransaction{
		ID:           uuid.New(),
		UserID:       req.UserID,
		Direction:    domain.DirectionWithdrawal,
		Amount:       req.Amount,
		ExternalCode: domain.BuildExternalCode(req.UserID, now),
		Status:       status,
		BankCode:     &req.BankCode,
		BankAccount:  &req.BankAccount,
		CreatedAt:    now,
	}

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
	if lockedUser.Balance < req.Amount {
		return nil, apperror.ErrInsufficientBalance(req.Amount, lockedUser.Balance)
	}

	if err := s.paymentRepo.Create(ctx, dbTx, payment); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	// The hold is the debit itself; a rejected review credits it back.
	newBalance := lockedUser.Balance - req.Amount
	entry := &domain.WalletLedgerEntry{
		ID:           uuid.New(),
		UserID:       req.UserID,
		Type:         domain.EntryWithdrawal,
		Amount:       -req.Amount,
		BalanceAfter: newBalance,
		Description:  fmt.Sprintf("withdrawal to %s %s", req.BankCode, req.BankAccount),
		ReferenceID:  &payment.ID,
		CreatedAt:    now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append ledger: %w", err))
	}
	if err := s.userRepo.UpdateBalance(ctx, dbTx, req.UserID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("external_code", payment.ExternalCode).
		Str("user_id", req.UserID.String()).
		Int64("amount", req.Amount).
		Str("status", string(status)).
		Msg("withdrawal requested")

	return payment, nil
}

// ReviewWithdrawal resolves a needs_review withdrawal. Approval forwards it
// to processing; rejection terminates it and credits the held amount back.
func (s *WalletServiceImpl) ReviewWithdrawal(ctx context.Context, txID uuid.UUID, approve bool) (*domain.PaymentTransaction, error) {
	payment, err := s.paymentRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("withdrawal")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	target := domain.PaymentStatusProcessing
	if !approve {
		target = domain.PaymentStatusRejected
	}

	moved, err := s.paymentRepo.Transition(ctx, dbTx, txID, domain.PaymentStatusNeedsReview, target)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("transition payment: %w", err))
	}
	if !moved {
		return nil, apperror.ErrWithdrawalNotReviewable()
	}

	if !approve {
		lockedUser, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, payment.UserID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if lockedUser == nil {
			return nil, apperror.ErrNotFound("user")
		}
		newBalance := lockedUser.Balance + payment.Amount
		entry := &domain.WalletLedgerEntry{
			ID:           uuid.New(),
			UserID:       payment.UserID,
			Type:         domain.EntryWithdrawalReversal,
			Amount:       payment.Amount,
			BalanceAfter: newBalance,
			Description:  "withdrawal rejected by review",
			ReferenceID:  &payment.ID,
			CreatedAt:    s.now(),
		}
		if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("append reversal: %w", err))
		}
		if err := s.userRepo.UpdateBalance(ctx, dbTx, payment.UserID, newBalance); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	payment.Status = target
	s.log.Info().
		Str("external_code", payment.ExternalCode).
		Bool("approved", approve).
		Msg("withdrawal reviewed")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		title := "Withdrawal approved"
		if !approve {
			title = "Withdrawal rejected"
		}
		if err := s.notifier.Notify(ctx, payment.UserID, title, payment.ExternalCode); err != nil {
			s.log.Warn().Err(err).Msg("notification failed")
		}
	}()

	return payment, nil
}

// HandleGatewayCallback processes the signed processor callback. The sequence
// is fixed: signature first, replay fast path second, then the terminal
// transition and ledger credit in one transaction. Each external code credits
// the ledger at most once no matter how often the callback is replayed.
func (s *WalletServiceImpl) HandleGatewayCallback(ctx context.Context, params map[string]string) (*ports.CallbackResult, error) {
	if err := s.bridge.VerifyCallback(params); err != nil {
		return nil, err
	}

	code := params[paramTxnRef]
	if code == "" {
		return nil, apperror.Validation("missing transaction reference")
	}

	seen, err := s.guard.Seen(ctx, code)
	if err != nil {
		// Cache miss on error; the database transition still protects us.
		s.log.Warn().Err(err).Str("external_code", code).Msg("callback cache check failed")
	}
	if seen {
		return nil, apperror.ErrCallbackAlreadyProcessed()
	}

	payment, err := s.paymentRepo.GetByExternalCode(ctx, code)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("payment transaction")
	}

	// Sanity check against a forged but correctly signed reference.
	embedded, err := domain.UserIDFromExternalCode(code)
	if err != nil || embedded != payment.UserID {
		return nil, apperror.ErrInvalidSignature()
	}

	resultCode := params[paramResponseCode]
	success := resultCode == ResponseCodeSuccess
	target := domain.PaymentStatusRejected
	if success {
		target = domain.PaymentStatusCompleted
	}
	now := s.now()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	moved, err := s.paymentRepo.MarkTerminal(ctx, dbTx, code, target, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark terminal: %w", err))
	}
	if !moved {
		return nil, apperror.ErrCallbackAlreadyProcessed()
	}

	// A successful topup credits the wallet; a withdrawal the gateway refused
	// releases the hold taken at request time. Successful withdrawals and
	// failed topups move no money here.
	var credit *domain.WalletLedgerEntry
	switch {
	case success && payment.Direction == domain.DirectionTopup:
		credit = &domain.WalletLedgerEntry{
			Type:        domain.EntryDepositTopup,
			Amount:      payment.Amount,
			Description: "gateway topup " + code,
		}
	case !success && payment.Direction == domain.DirectionWithdrawal:
		credit = &domain.WalletLedgerEntry{
			Type:        domain.EntryWithdrawalReversal,
			Amount:      payment.Amount,
			Description: "withdrawal refused by gateway " + code,
		}
	}
	if credit != nil {
		lockedUser, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, payment.UserID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if lockedUser == nil {
			return nil, apperror.ErrNotFound("user")
		}
		credit.ID = uuid.New()
		credit.UserID = payment.UserID
		credit.BalanceAfter = lockedUser.Balance + credit.Amount
		credit.ReferenceID = &payment.ID
		credit.CreatedAt = now
		if err := s.ledgerRepo.Append(ctx, dbTx, credit); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("append %s: %w", credit.Type, err))
		}
		if err := s.userRepo.UpdateBalance(ctx, dbTx, payment.UserID, credit.BalanceAfter); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if err := s.guard.MarkSeen(ctx, code, callbackSeenTTL); err != nil {
		s.log.Warn().Err(err).Str("external_code", code).Msg("callback cache mark failed")
	}

	payment.Status = target
	payment.ProcessedAt = &now

	s.log.Info().
		Str("external_code", code).
		Str("result_code", resultCode).
		Bool("success", success).
		Msg("gateway callback processed")

	return &ports.CallbackResult{
		Transaction: payment,
		Success:     success,
		Message:     GatewayResultMessage(resultCode),
	}, nil
}
