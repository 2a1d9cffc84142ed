// Package settlement computes the financial outcome of closing a checkout.
// Everything here is pure arithmetic over a Tariff; no I/O, no clocks.
package settlement

import (
	"math"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"
)

// Tariff holds the pricing and reward parameters. Monetary values are in
// minor units (VND), CO2 in grams.
type Tariff struct {
	CupDeposit       int64
	PenaltyPerHour   int64
	BasePoints       int64
	EarlyBonusPoints int64
	EarlyWindow      time.Duration
	BikeFarePerHour  int64
	PointsPerKmX10   int64 // points granted per 10 km ridden
	CO2GramsPerKm    int64
}

// CupOutcome is the settlement of a returned cup plus the asset state it
// implies.
type CupOutcome struct {
	domain.Outcome
	TargetState domain.AssetStatus
}

// SettleCup computes the deposit refund, penalties and reward points for a
// cup returned at `now`.
//
// The overdue penalty is capped at half the deposit and the damage penalty
// is a fixed 30% of the deposit, applied in addition. Because the two caps
// do not jointly bound the sum, the refund is explicitly clamped at zero:
// a cup that is both long-overdue and damaged forfeits the whole deposit,
// never more.
func SettleCup(t Tariff, deposit int64, openedAt, dueAt, now time.Time, condition domain.ReturnCondition) CupOutcome {
	out := CupOutcome{TargetState: domain.AssetStatusCleaning}

	hoursOverdue := overdueHours(dueAt, now)
	out.HoursOverdue = hoursOverdue

	out.OverduePenalty = hoursOverdue * t.PenaltyPerHour
	if limit := deposit / 2; out.OverduePenalty > limit {
		out.OverduePenalty = limit
	}

	damaged := condition == domain.ConditionDamaged
	if damaged {
		out.DamagePenalty = deposit * 3 / 10
		out.TargetState = domain.AssetStatusBroken
	}

	out.Refund = deposit - out.OverduePenalty - out.DamagePenalty
	if out.Refund < 0 {
		out.Refund = 0
	}

	if !damaged {
		out.Points = t.BasePoints - hoursOverdue
		if out.Points < 0 {
			out.Points = 0
		}
		if hoursOverdue == 0 && now.Sub(openedAt) <= t.EarlyWindow {
			out.Points += t.EarlyBonusPoints
		}
	}

	return out
}

// BikeOutcome is the settlement of an ended bike rental.
type BikeOutcome struct {
	domain.Outcome
	TargetState domain.AssetStatus
}

// SettleBike computes the reward accrual for a bike returned after riding
// distanceKm. The fare was charged when the rental opened; close only
// records distance and derives points and CO2 credit via the configured
// linear functions.
func SettleBike(t Tariff, fare int64, distanceKm float64, condition domain.ReturnCondition) BikeOutcome {
	out := BikeOutcome{TargetState: domain.AssetStatusAvailable}
	out.Fare = fare

	if condition == domain.ConditionDamaged {
		out.TargetState = domain.AssetStatusBroken
		return out
	}

	out.Points = TripPoints(t, distanceKm)
	out.CO2Grams = TripCO2Grams(t, distanceKm)
	return out
}

// BikeFare is the up-front charge for a planned rental duration.
func BikeFare(t Tariff, plannedHours int) int64 {
	return int64(plannedHours) * t.BikeFarePerHour
}

// TripPoints is the distance-proportional reward, shared by bike rentals and
// one-leg mobility trips.
func TripPoints(t Tariff, distanceKm float64) int64 {
	return int64(math.Floor(distanceKm * float64(t.PointsPerKmX10) / 10))
}

// TripCO2Grams is the distance-proportional environmental credit.
func TripCO2Grams(t Tariff, distanceKm float64) int64 {
	return int64(math.Round(distanceKm * float64(t.CO2GramsPerKm)))
}

// overdueHours is the count of started hours past the due time, zero when
// returned on time.
func overdueHours(dueAt, now time.Time) int64 {
	if !now.After(dueAt) {
		return 0
	}
	d := now.Sub(dueAt)
	h := int64(d / time.Hour)
	if d%time.Hour != 0 {
		h++
	}
	return h
}
