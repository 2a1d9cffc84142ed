package settlement

import (
	"testing"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func testTariff() Tariff {
	return Tariff{
		CupDeposit:       30000,
		PenaltyPerHour:   2000,
		BasePoints:       10,
		EarlyBonusPoints: 5,
		EarlyWindow:      6 * time.Hour,
		BikeFarePerHour:  15000,
		PointsPerKmX10:   10,
		CO2GramsPerKm:    150,
	}
}

var (
	opened = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	due    = opened.Add(48 * time.Hour)
)

func TestSettleCup_CleanOnTime(t *testing.T) {
	// Returned 2h after opening: full refund, base points plus early bonus.
	out := SettleCup(testTariff(), 30000, opened, due, opened.Add(2*time.Hour), domain.ConditionClean)

	assert.Equal(t, int64(30000), out.Refund)
	assert.Equal(t, int64(0), out.OverduePenalty)
	assert.Equal(t, int64(0), out.DamagePenalty)
	assert.Equal(t, int64(15), out.Points) // 10 base + 5 early bonus
	assert.Equal(t, domain.AssetStatusCleaning, out.TargetState)
}

func TestSettleCup_CleanOnTime_PastEarlyWindow(t *testing.T) {
	out := SettleCup(testTariff(), 30000, opened, due, opened.Add(7*time.Hour), domain.ConditionClean)

	assert.Equal(t, int64(30000), out.Refund)
	assert.Equal(t, int64(10), out.Points) // no early bonus after 6h
}

func TestSettleCup_FourHoursOverdue(t *testing.T) {
	out := SettleCup(testTariff(), 30000, opened, due, due.Add(4*time.Hour), domain.ConditionClean)

	assert.Equal(t, int64(8000), out.OverduePenalty) // min(4*2000, 15000)
	assert.Equal(t, int64(22000), out.Refund)
	assert.Equal(t, int64(6), out.Points) // max(0, 10-4)
	assert.Equal(t, int64(4), out.HoursOverdue)
}

func TestSettleCup_PartialHourCountsFull(t *testing.T) {
	out := SettleCup(testTariff(), 30000, opened, due, due.Add(61*time.Minute), domain.ConditionClean)
	assert.Equal(t, int64(2), out.HoursOverdue)
	assert.Equal(t, int64(4000), out.OverduePenalty)
}

func TestSettleCup_OverduePenaltyCapped(t *testing.T) {
	// 100 hours overdue: raw penalty 200000, capped at deposit/2.
	out := SettleCup(testTariff(), 30000, opened, due, due.Add(100*time.Hour), domain.ConditionClean)

	assert.Equal(t, int64(15000), out.OverduePenalty)
	assert.Equal(t, int64(15000), out.Refund)
	assert.Equal(t, int64(0), out.Points)
}

func TestSettleCup_Damaged(t *testing.T) {
	out := SettleCup(testTariff(), 30000, opened, due, due.Add(-time.Hour), domain.ConditionDamaged)

	assert.Equal(t, int64(9000), out.DamagePenalty) // 30% of deposit
	assert.Equal(t, int64(21000), out.Refund)
	assert.Equal(t, int64(0), out.Points, "damaged cups never earn points")
	assert.Equal(t, domain.AssetStatusBroken, out.TargetState)
}

func TestSettleCup_DamagedAndLongOverdue_RefundNeverNegative(t *testing.T) {
	out := SettleCup(testTariff(), 30000, opened, due, due.Add(100*time.Hour), domain.ConditionDamaged)

	assert.Equal(t, int64(15000), out.OverduePenalty)
	assert.Equal(t, int64(9000), out.DamagePenalty)
	assert.Equal(t, int64(6000), out.Refund)
	assert.GreaterOrEqual(t, out.Refund, int64(0), "refund must never go negative")

	// Sweep deposits and overdue spans: the clamp guarantees non-negative
	// refunds for any tariff arithmetic.
	for _, deposit := range []int64{1, 7, 100, 30000, 999999} {
		for _, hrs := range []int{0, 1, 50, 1000} {
			got := SettleCup(testTariff(), deposit, opened, due, due.Add(time.Duration(hrs)*time.Hour), domain.ConditionDamaged)
			assert.GreaterOrEqual(t, got.Refund, int64(0), "deposit=%d hrs=%d", deposit, hrs)
		}
	}
}

func TestSettleCup_OverdueNeverEarnsEarlyBonus(t *testing.T) {
	tariff := testTariff()
	// Short loan: due 1h after opening, returned 2h after opening.
	shortDue := opened.Add(time.Hour)
	out := SettleCup(tariff, 30000, opened, shortDue, opened.Add(2*time.Hour), domain.ConditionClean)

	assert.Equal(t, int64(1), out.HoursOverdue)
	assert.Equal(t, int64(9), out.Points, "overdue return gets no early bonus even inside the window")
}

func TestSettleBike(t *testing.T) {
	out := SettleBike(testTariff(), 30000, 12.5, domain.ConditionClean)

	assert.Equal(t, int64(30000), out.Fare)
	assert.Equal(t, int64(12), out.Points)     // floor(12.5 * 10 / 10)
	assert.Equal(t, int64(1875), out.CO2Grams) // 12.5 * 150
	assert.Equal(t, domain.AssetStatusAvailable, out.TargetState)
}

func TestSettleBike_Damaged(t *testing.T) {
	out := SettleBike(testTariff(), 30000, 5, domain.ConditionDamaged)

	assert.Equal(t, domain.AssetStatusBroken, out.TargetState)
	assert.Equal(t, int64(0), out.Points)
	assert.Equal(t, int64(0), out.CO2Grams)
}

func TestBikeFare(t *testing.T) {
	assert.Equal(t, int64(15000), BikeFare(testTariff(), 1))
	assert.Equal(t, int64(360000), BikeFare(testTariff(), 24))
}

func TestTripAccrual(t *testing.T) {
	tariff := testTariff()
	assert.Equal(t, int64(3), TripPoints(tariff, 3.9))
	assert.Equal(t, int64(585), TripCO2Grams(tariff, 3.9))
	assert.Equal(t, int64(0), TripPoints(tariff, 0.4))
}

func TestOverdueHours(t *testing.T) {
	assert.Equal(t, int64(0), overdueHours(due, due))
	assert.Equal(t, int64(0), overdueHours(due, due.Add(-time.Minute)))
	assert.Equal(t, int64(1), overdueHours(due, due.Add(time.Second)))
	assert.Equal(t, int64(1), overdueHours(due, due.Add(time.Hour)))
	assert.Equal(t, int64(2), overdueHours(due, due.Add(time.Hour+time.Second)))
}
