package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntryType classifies a wallet ledger entry.
type LedgerEntryType string

const (
	EntryBorrowFee          LedgerEntryType = "borrow_fee"     // cup deposit debit at checkout
	EntryReturnDeposit      LedgerEntryType = "return_deposit" // refund credit at return
	EntryRentalFare         LedgerEntryType = "rental_fare"    // bike/trip fare debit
	EntryDepositTopup       LedgerEntryType = "deposit_topup"
	EntryWithdrawal         LedgerEntryType = "withdrawal"
	EntryWithdrawalReversal LedgerEntryType = "withdrawal_reversal"
)

// WalletLedgerEntry is one append-only, balance-affecting event. Amount is
// signed; BalanceAfter must equal the user's running balance at insertion
// time under the per-user wallet lock.
type WalletLedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         LedgerEntryType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	Description  string          `json:"description"`
	ReferenceID  *uuid.UUID      `json:"reference_id,omitempty"` // checkout or payment transaction
	CreatedAt    time.Time       `json:"created_at"`
}
