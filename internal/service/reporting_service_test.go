package service

import (
	"context"
	"testing"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBalance_LedgerIsSourceOfTruth(t *testing.T) {
	user := sampleUser(99999) // stale projection
	users := newFakeUserRepo(user)
	ledger := &fakeLedgerRepo{}
	for _, amount := range []int64{100000, -30000} {
		require.NoError(t, ledger.Append(context.Background(), nil, &domain.WalletLedgerEntry{
			ID:     uuid.New(),
			UserID: user.ID,
			Amount: amount,
		}))
	}

	svc := NewReportingService(users, ledger, &fakeRewardRepo{}, zerolog.Nop())

	balance, err := svc.GetBalance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70000), balance)
}

func TestGetBalance_UnknownUser(t *testing.T) {
	svc := NewReportingService(newFakeUserRepo(), &fakeLedgerRepo{}, &fakeRewardRepo{}, zerolog.Nop())
	_, err := svc.GetBalance(context.Background(), uuid.New())
	assert.Equal(t, "NF_001", appErrCode(t, err))
}

func TestRewardTotals(t *testing.T) {
	user := sampleUser(0)
	rewards := &fakeRewardRepo{}
	now := time.Now()
	for _, e := range []domain.RewardLedgerEntry{
		{ID: uuid.New(), UserID: user.ID, Kind: domain.RewardPoints, Amount: 15, CreatedAt: now},
		{ID: uuid.New(), UserID: user.ID, Kind: domain.RewardPoints, Amount: 10, CreatedAt: now},
		{ID: uuid.New(), UserID: user.ID, Kind: domain.RewardCO2, Amount: 1875, CreatedAt: now},
	} {
		entry := e
		require.NoError(t, rewards.Append(context.Background(), nil, &entry))
	}

	svc := NewReportingService(newFakeUserRepo(user), &fakeLedgerRepo{}, rewards, zerolog.Nop())

	points, co2, err := svc.RewardTotals(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), points)
	assert.Equal(t, int64(1875), co2)
}
