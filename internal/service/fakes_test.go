package service

// In-memory fakes backing the service tests. They honor the same conditional
// transition semantics as the postgres adapters so the services' race guards
// are exercised for real.

import (
	"context"
	"sync"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"
	"github.com/qtu11/SipMart-sub003/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	mu         sync.Mutex
	committed  bool
	rolledBack bool
	onCommit   []func()
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = true
	for _, fn := range t.onCommit {
		fn()
	}
	t.onCommit = nil
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.committed {
		t.rolledBack = true
		t.onCommit = nil
	}
	return nil
}

type fakeTransactor struct {
	mu   sync.Mutex
	txs  []*fakeTx
	fail error
}

func (f *fakeTransactor) Begin(_ context.Context) (pgx.Tx, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &fakeTx{}
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakeTransactor) lastTx() *fakeTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.txs) == 0 {
		return nil
	}
	return f.txs[len(f.txs)-1]
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		cp := *u
		r.users[u.ID] = &cp
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeUserRepo) UpdateBalance(_ context.Context, _ pgx.Tx, id uuid.UUID, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Balance = balance
	}
	return nil
}

type fakeAssetRepo struct {
	mu     sync.Mutex
	assets map[uuid.UUID]*domain.Asset
}

func newFakeAssetRepo(assets ...*domain.Asset) *fakeAssetRepo {
	r := &fakeAssetRepo{assets: make(map[uuid.UUID]*domain.Asset)}
	for _, a := range assets {
		cp := *a
		r.assets[a.ID] = &cp
	}
	return r
}

func (r *fakeAssetRepo) Create(_ context.Context, a *domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.assets[a.ID] = &cp
	return nil
}

func (r *fakeAssetRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAssetRepo) GetByLabel(_ context.Context, label string) (*domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		if a.Label == label {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAssetRepo) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Asset, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeAssetRepo) ClaimForCheckout(_ context.Context, _ pgx.Tx, assetID, userID, checkoutID uuid.UUID) (bool, error) {
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

func (r *fakeAssetRepo) Release(_ context.Context, _ pgx.Tx, assetID, checkoutID uuid.UUID, target domain.AssetStatus, locationID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[assetID]
	if !ok || a.Status != domain.AssetStatusInUse ||
		a.CurrentCheckoutID == nil || *a.CurrentCheckoutID != checkoutID {
		return false, nil
	}
	a.Status = target
	a.CurrentHolder = nil
	a.CurrentCheckoutID = nil
	a.HomeLocationID = &locationID
	return true, nil
}

func (r *fakeAssetRepo) SetStatus(_ context.Context, assetID uuid.UUID, from []domain.AssetStatus, to domain.AssetStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[assetID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if a.Status == s {
			a.Status = to
			return true, nil
		}
	}
	return false, nil
}

type fakeCheckoutRepo struct {
	mu        sync.Mutex
	checkouts map[uuid.UUID]*domain.Checkout
}

func newFakeCheckoutRepo(checkouts ...*domain.Checkout) *fakeCheckoutRepo {
	r := &fakeCheckoutRepo{checkouts: make(map[uuid.UUID]*domain.Checkout)}
	for _, c := range checkouts {
		cp := *c
		r.checkouts[c.ID] = &cp
	}
	return r
}

func (r *fakeCheckoutRepo) Create(_ context.Context, _ pgx.Tx, c *domain.Checkout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.checkouts[c.ID] = &cp
	return nil
}

func (r *fakeCheckoutRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checkouts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCheckoutRepo) Close(_ context.Context, _ pgx.Tx, id uuid.UUID, closedAt time.Time, distanceKm *float64, outcome *domain.Outcome) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.checkouts[id]
	if !ok || c.Status != domain.CheckoutStatusOngoing {
		return false, nil
	}
	c.Status = domain.CheckoutStatusCompleted
	c.ClosedAt = &closedAt
	c.DistanceKm = distanceKm
	c.Outcome = outcome
	return true, nil
}

func (r *fakeCheckoutRepo) CountOngoingByUser(_ context.Context, userID uuid.UUID, kind domain.AssetKind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.checkouts {
		if c.UserID == userID && c.Kind == kind && c.Status == domain.CheckoutStatusOngoing {
			n++
		}
	}
	return n, nil
}

func (r *fakeCheckoutRepo) CountOngoingByUserTx(ctx context.Context, _ pgx.Tx, userID uuid.UUID, kind domain.AssetKind) (int64, error) {
	return r.CountOngoingByUser(ctx, userID, kind)
}

func (r *fakeCheckoutRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Checkout
	for _, c := range r.checkouts {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries []domain.WalletLedgerEntry
}

func (r *fakeLedgerRepo) Append(_ context.Context, _ pgx.Tx, e *domain.WalletLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *fakeLedgerRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.WalletLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WalletLedgerEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) SumByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, e := range r.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r *fakeLedgerRepo) byType(t domain.LedgerEntryType) []domain.WalletLedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WalletLedgerEntry
	for _, e := range r.entries {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeRewardRepo struct {
	mu      sync.Mutex
	entries []domain.RewardLedgerEntry
}

func (r *fakeRewardRepo) Append(_ context.Context, _ pgx.Tx, e *domain.RewardLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *fakeRewardRepo) LastBalance(_ context.Context, _ pgx.Tx, userID uuid.UUID, kind domain.RewardKind) (int64, error) {
	return r.total(userID, kind), nil
}

func (r *fakeRewardRepo) TotalByUser(_ context.Context, userID uuid.UUID, kind domain.RewardKind) (int64, error) {
	return r.total(userID, kind), nil
}

func (r *fakeRewardRepo) total(userID uuid.UUID, kind domain.RewardKind) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, e := range r.entries {
		if e.UserID == userID && e.Kind == kind {
			sum += e.Amount
		}
	}
	return sum
}

func (r *fakeRewardRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.RewardLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RewardLedgerEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePaymentRepo struct {
	mu  sync.Mutex
	txs map[string]*domain.PaymentTransaction // keyed by external code
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{txs: make(map[string]*domain.PaymentTransaction)}
}

func (r *fakePaymentRepo) Create(_ context.Context, _ pgx.Tx, p *domain.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.txs[p.ExternalCode] = &cp
	return nil
}

func (r *fakePaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.txs {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) GetByExternalCode(_ context.Context, code string) (*domain.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.txs[code]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) MarkTerminal(_ context.Context, _ pgx.Tx, externalCode string, to domain.PaymentStatus, processedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.txs[externalCode]
	if !ok || (p.Status != domain.PaymentStatusPending && p.Status != domain.PaymentStatusProcessing) {
		return false, nil
	}
	p.Status = to
	p.ProcessedAt = &processedAt
	return true, nil
}

func (r *fakePaymentRepo) Transition(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to domain.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.txs {
		if p.ID == id {
			if p.Status != from {
				return false, nil
			}
			p.Status = to
			return true, nil
		}
	}
	return false, nil
}

type stubLocation struct{ atStation bool }

func (s *stubLocation) AtStation(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return s.atStation, nil
}

type recordingSignaler struct {
	mu       sync.Mutex
	unlocked []string
	locked   []string
}

func (s *recordingSignaler) Unlock(_ context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked = append(s.unlocked, label)
	return nil
}

func (s *recordingSignaler) Lock(_ context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = append(s.locked, label)
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(_ context.Context, _ uuid.UUID, _, _ string) error { return nil }

type fakeCallbackGuard struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeCallbackGuard() *fakeCallbackGuard {
	return &fakeCallbackGuard{seen: make(map[string]bool)}
}

func (g *fakeCallbackGuard) Seen(_ context.Context, code string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen[code], nil
}

func (g *fakeCallbackGuard) MarkSeen(_ context.Context, code string, _ time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen[code] = true
	return nil
}

type fakeWindowCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeWindowCounter() *fakeWindowCounter {
	return &fakeWindowCounter{counts: make(map[string]int64)}
}

func (c *fakeWindowCounter) Allow(_ context.Context, key string, limit int64, window time.Duration) (*ports.CounterResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	n := c.counts[key]
	res := &ports.CounterResult{
		Allowed:   n <= limit,
		Limit:     limit,
		Remaining: limit - n,
		ResetAt:   time.Now().Add(window).Unix(),
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	return res, nil
}
