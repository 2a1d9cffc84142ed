package domain

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutStatus is the lifecycle state of a borrow/rental record.
type CheckoutStatus string

const (
	CheckoutStatusOngoing   CheckoutStatus = "ongoing"
	CheckoutStatusCompleted CheckoutStatus = "completed"
)

// ReturnCondition is supplied by the closer of a cup checkout.
type ReturnCondition string

const (
	ConditionClean   ReturnCondition = "clean"
	ConditionDirty   ReturnCondition = "dirty"
	ConditionDamaged ReturnCondition = "damaged"
)

// Outcome is the settlement breakdown stored exactly once when a checkout closes.
type Outcome struct {
	Refund         int64 `json:"refund"`          // credited back to the wallet (cups)
	OverduePenalty int64 `json:"overdue_penalty"` // withheld from the deposit
	DamagePenalty  int64 `json:"damage_penalty"`
	Fare           int64 `json:"fare"`   // charged at open for bikes, recorded here for the audit trail
	Points         int64 `json:"points"` // reward points credited
	CO2Grams       int64 `json:"co2_grams"`
	HoursOverdue   int64 `json:"hours_overdue"`
}

// Checkout is one borrow or rental. Rows are never deleted; a closed checkout
// with its Outcome forms the immutable audit trail of the settlement.
type Checkout struct {
	ID          uuid.UUID      `json:"id"`
	AssetID     uuid.UUID      `json:"asset_id"`
	UserID      uuid.UUID      `json:"user_id"`
	Kind        AssetKind      `json:"kind"`
	BranchID    uuid.UUID      `json:"branch_id"` // issuing branch/station
	OpenedAt    time.Time      `json:"opened_at"`
	DueAt       time.Time      `json:"due_at"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`
	Status      CheckoutStatus `json:"status"`
	ChargeBasis int64          `json:"charge_basis"` // fixed deposit (cups) or planned fare (bikes)
	PlannedHrs  int            `json:"planned_hours,omitempty"`
	DistanceKm  *float64       `json:"distance_km,omitempty"` // bikes, supplied at close
	Outcome     *Outcome       `json:"outcome,omitempty"`
}

// IsOngoing reports whether the checkout can still be closed.
func (c *Checkout) IsOngoing() bool {
	return c.Status == CheckoutStatusOngoing
}

// OwnedBy reports whether the given user opened this checkout.
func (c *Checkout) OwnedBy(userID uuid.UUID) bool {
	return c.UserID == userID
}
