package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssetKind distinguishes the two classes of lendable units.
type AssetKind string

const (
	AssetKindCup  AssetKind = "cup"
	AssetKindBike AssetKind = "bike"
)

// AssetStatus is the lifecycle state of a physical unit.
type AssetStatus string

const (
	AssetStatusAvailable AssetStatus = "available"
	AssetStatusInUse     AssetStatus = "in_use"
	AssetStatusCleaning  AssetStatus = "cleaning" // cups only, post-return
	AssetStatusBroken    AssetStatus = "broken"
	// Housekeeping states for bikes, not part of the lending path.
	AssetStatusCharging    AssetStatus = "charging"
	AssetStatusMaintenance AssetStatus = "maintenance"
)

// Asset is the authoritative record of one physical unit (a cup or a bike).
// Invariant: CurrentCheckoutID is set iff Status == in_use iff CurrentHolder is set.
type Asset struct {
	ID                uuid.UUID   `json:"id"`
	Label             string      `json:"label"` // printed/QR label on the unit
	Kind              AssetKind   `json:"kind"`
	Status            AssetStatus `json:"status"`
	CurrentHolder     *uuid.UUID  `json:"current_holder,omitempty"`
	CurrentCheckoutID *uuid.UUID  `json:"current_checkout_id,omitempty"`
	HomeLocationID    *uuid.UUID  `json:"home_location_id,omitempty"` // station/branch, nil while in use
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// IsAvailable reports whether the asset can start a new checkout.
func (a *Asset) IsAvailable() bool {
	return a.Status == AssetStatusAvailable && a.CurrentCheckoutID == nil
}

// HeldBy reports whether the asset is currently checked out under the given checkout.
func (a *Asset) HeldBy(checkoutID uuid.UUID) bool {
	return a.Status == AssetStatusInUse &&
		a.CurrentCheckoutID != nil && *a.CurrentCheckoutID == checkoutID
}

// ReturnTarget computes the post-return state for this asset kind given the
// return condition. Damaged units go to broken; returned cups always pass
// through cleaning, bikes go straight back to available.
func (a *Asset) ReturnTarget(condition ReturnCondition) AssetStatus {
	if condition == ConditionDamaged {
		return AssetStatusBroken
	}
	if a.Kind == AssetKindCup {
		return AssetStatusCleaning
	}
	return AssetStatusAvailable
}
