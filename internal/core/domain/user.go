package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the wallet holder. Balance is a materialized projection of the
// wallet ledger, updated transactionally under the same row lock as the
// ledger append; the ledger remains the source of truth.
type User struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"full_name"`
	Balance          int64     `json:"balance"`
	Blacklisted      bool      `json:"blacklisted"`
	IdentityVerified bool      `json:"identity_verified"`
	Staff            bool      `json:"staff"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CanBorrow reports whether the user passes the blanket account precondition.
func (u *User) CanBorrow() bool {
	return !u.Blacklisted
}
