package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentDirection is the direction of money movement through the gateway.
type PaymentDirection string

const (
	DirectionTopup      PaymentDirection = "topup"
	DirectionWithdrawal PaymentDirection = "withdrawal"
)

// PaymentStatus is the lifecycle state of a gateway transaction.
// A given ExternalCode transitions to a terminal state at most once.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusProcessing  PaymentStatus = "processing"
	PaymentStatusNeedsReview PaymentStatus = "needs_review"
	PaymentStatusCompleted   PaymentStatus = "completed"
	PaymentStatusRejected    PaymentStatus = "rejected"
)

// PaymentTransaction tracks one funding or withdrawal request against the
// external processor. The wallet ledger effect tied to it is applied at most
// once, keyed on ExternalCode.
type PaymentTransaction struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	Direction    PaymentDirection `json:"direction"`
	Amount       int64            `json:"amount"`
	ExternalCode string           `json:"external_code"`
	Status       PaymentStatus    `json:"status"`
	BankCode     *string          `json:"bank_code,omitempty"`
	BankAccount  *string          `json:"bank_account,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`
}

// IsTerminal reports whether the transaction has reached a final state.
func (p *PaymentTransaction) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusRejected
}

// BuildExternalCode constructs the gateway transaction reference. The acting
// user id is embedded so the inbound callback can recover it without a
// server-side session.
func BuildExternalCode(userID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("SMT-%s-%d", userID.String(), at.UnixMilli())
}

// UserIDFromExternalCode recovers the embedded user id from a transaction reference.
func UserIDFromExternalCode(code string) (uuid.UUID, error) {
	parts := strings.Split(code, "-")
	// SMT + 5 uuid groups + millis
	if len(parts) != 7 || parts[0] != "SMT" {
		return uuid.Nil, fmt.Errorf("malformed external code %q", code)
	}
	return uuid.Parse(strings.Join(parts[1:6], "-"))
}
