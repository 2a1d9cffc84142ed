package domain

import (
	"time"

	"github.com/google/uuid"
)

// RewardKind separates the two reward ledgers kept per user.
type RewardKind string

const (
	RewardPoints RewardKind = "points"
	RewardCO2    RewardKind = "co2_grams" // environmental credit, integer grams
)

// RewardEntryType classifies the reason for a reward ledger entry.
type RewardEntryType string

const (
	RewardTypeReturn RewardEntryType = "return_reward"
	RewardTypeTrip   RewardEntryType = "trip_reward"
	RewardTypeAdjust RewardEntryType = "adjustment"
)

// RewardLedgerEntry is one append-only point/credit-affecting event, with the
// same BalanceAfter ordering invariant as the wallet ledger, scoped per user
// per reward kind.
type RewardLedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Kind         RewardKind      `json:"kind"`
	Type         RewardEntryType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	ReferenceID  *uuid.UUID      `json:"reference_id,omitempty"` // checkout
	CreatedAt    time.Time       `json:"created_at"`
}
