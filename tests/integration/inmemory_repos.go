package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryUserRepo) UpdateBalance(_ context.Context, _ pgx.Tx, id uuid.UUID, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.Balance = balance
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Asset Repo ---

type inMemoryAssetRepo struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]*domain.Asset
}

func newInMemoryAssetRepo() *inMemoryAssetRepo {
	return &inMemoryAssetRepo{assets: make(map[uuid.UUID]*domain.Asset)}
}

func (r *inMemoryAssetRepo) Create(_ context.Context, a *domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.assets[a.ID] = &cp
	return nil
}

func (r *inMemoryAssetRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAssetRepo) GetByLabel(_ context.Context, label string) (*domain.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.assets {
		if a.Label == label {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryAssetRepo) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Asset, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryAssetRepo) ClaimForCheckout(_ context.Context, _ pgx.Tx, assetID, userID, checkoutID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[assetID]
	if !ok || a.Status != domain.AssetStatusAvailable {
		return false, nil
	}
	a.Status = domain.AssetStatusInUse
	a.CurrentHolder = &userID
	a.CurrentCheckoutID = &checkoutID
	a.HomeLocationID = nil
	return true, nil
}

func (r *inMemoryAssetRepo) Release(_ context.Context, _ pgx.Tx, assetID, checkoutID uuid.UUID, target domain.AssetStatus, locationID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[assetID]
	if !ok || a.Status != domain.AssetStatusInUse {
		return false, nil
	}
	if a.CurrentCheckoutID == nil || *a.CurrentCheckoutID != checkoutID {
		return false, nil
	}
	a.Status = target
	a.CurrentHolder = nil
	a.CurrentCheckoutID = nil
	a.HomeLocationID = &locationID
	return true, nil
}

func (r *inMemoryAssetRepo) SetStatus(_ context.Context, assetID uuid.UUID, from []domain.AssetStatus, to domain.AssetStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[assetID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if a.Status == f {
			a.Status = to
			return true, nil
		}
	}
	return false, nil
}

// --- In-Memory Checkout Repo ---

type inMemoryCheckoutRepo struct {
	mu        sync.RWMutex
	checkouts map[uuid.UUID]*domain.Checkout
}

func newInMemoryCheckoutRepo() *inMemoryCheckoutRepo {
	return &inMemoryCheckoutRepo{checkouts: make(map[uuid.UUID]*domain.Checkout)}
}

func (r *inMemoryCheckoutRepo) Create(_ context.Context, _ pgx.Tx, co *domain.Checkout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *co
	r.checkouts[co.ID] = &cp
	return nil
}

func (r *inMemoryCheckoutRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Checkout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	co, ok := r.checkouts[id]
	if !ok {
		return nil, nil
	}
	cp := *co
	return &cp, nil
}

func (r *inMemoryCheckoutRepo) Close(_ context.Context, _ pgx.Tx, id uuid.UUID, closedAt time.Time, distanceKm *float64, outcome *domain.Outcome) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	co, ok := r.checkouts[id]
	if !ok || co.Status != domain.CheckoutStatusOngoing {
		return false, nil
	}
	co.Status = domain.CheckoutStatusCompleted
	co.ClosedAt = &closedAt
	co.DistanceKm = distanceKm
	co.Outcome = outcome
	return true, nil
}

func (r *inMemoryCheckoutRepo) CountOngoingByUser(_ context.Context, userID uuid.UUID, kind domain.AssetKind) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, co := range r.checkouts {
		if co.UserID == userID && co.Kind == kind && co.Status == domain.CheckoutStatusOngoing {
			n++
		}
	}
	return n, nil
}

func (r *inMemoryCheckoutRepo) CountOngoingByUserTx(ctx context.Context, _ pgx.Tx, userID uuid.UUID, kind domain.AssetKind) (int64, error) {
	return r.CountOngoingByUser(ctx, userID, kind)
}

func (r *inMemoryCheckoutRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Checkout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Checkout
	for _, co := range r.checkouts {
		if co.UserID == userID {
			out = append(out, *co)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// --- In-Memory Wallet Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.WalletLedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Append(_ context.Context, _ pgx.Tx, entry *domain.WalletLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.WalletLedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.WalletLedgerEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *inMemoryLedgerRepo) SumByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, e := range r.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

// --- In-Memory Reward Ledger Repo ---

type inMemoryRewardRepo struct {
	mu      sync.RWMutex
	entries []domain.RewardLedgerEntry
}

func newInMemoryRewardRepo() *inMemoryRewardRepo {
	return &inMemoryRewardRepo{}
}

func (r *inMemoryRewardRepo) Append(_ context.Context, _ pgx.Tx, entry *domain.RewardLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryRewardRepo) LastBalance(_ context.Context, _ pgx.Tx, userID uuid.UUID, kind domain.RewardKind) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID && r.entries[i].Kind == kind {
			return r.entries[i].BalanceAfter, nil
		}
	}
	return 0, nil
}

func (r *inMemoryRewardRepo) TotalByUser(_ context.Context, userID uuid.UUID, kind domain.RewardKind) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, e := range r.entries {
		if e.UserID == userID && e.Kind == kind {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryRewardRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.RewardLedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.RewardLedgerEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// --- In-Memory Payment Transaction Repo ---

type inMemoryPaymentRepo struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*domain.PaymentTransaction
	byCode map[string]*domain.PaymentTransaction
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{
		byID:   make(map[uuid.UUID]*domain.PaymentTransaction),
		byCode: make(map[string]*domain.PaymentTransaction),
	}
}

func (r *inMemoryPaymentRepo) Create(_ context.Context, _ pgx.Tx, p *domain.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byCode[p.ExternalCode]; dup {
		return fmt.Errorf("duplicate external code")
	}
	cp := *p
	r.byID[p.ID] = &cp
	r.byCode[p.ExternalCode] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) GetByExternalCode(_ context.Context, code string) (*domain.PaymentTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) MarkTerminal(_ context.Context, _ pgx.Tx, externalCode string, to domain.PaymentStatus, processedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byCode[externalCode]
	if !ok || (p.Status != domain.PaymentStatusPending && p.Status != domain.PaymentStatusProcessing) {
		return false, nil
	}
	p.Status = to
	p.ProcessedAt = &processedAt
	return true, nil
}

func (r *inMemoryPaymentRepo) Transition(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to domain.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

// --- In-Memory Incident Repo ---

type inMemoryIncidentRepo struct {
	mu        sync.RWMutex
	incidents []domain.Incident
}

func newInMemoryIncidentRepo() *inMemoryIncidentRepo {
	return &inMemoryIncidentRepo{}
}

func (r *inMemoryIncidentRepo) Create(_ context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = append(r.incidents, *incident)
	return nil
}

func (r *inMemoryIncidentRepo) ListRecent(_ context.Context, limit int) ([]domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Incident, len(r.incidents))
	copy(out, r.incidents)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transactions with a single mutex, standing in
// for the row locks the real store takes. Commit or the deferred Rollback
// releases it exactly once.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(_ context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{release: &t.mu}, nil
}

// memTx is a pgx.Tx implementation for in-memory testing.
type memTx struct {
	release *sync.Mutex
	done    bool
}

func (t *memTx) finish() {
	if !t.done {
		t.done = true
		t.release.Unlock()
	}
}

func (t *memTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(context.Context) error          { t.finish(); return nil }
func (t *memTx) Rollback(context.Context) error        { t.finish(); return nil }
func (t *memTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *memTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *memTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *memTx) Conn() *pgx.Conn                                         { return nil }
