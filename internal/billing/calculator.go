package billing

import (
	"math"
	"time"

	"github.com/labkeeper/labkeeper/internal/equipment"
)

// Calculate converts a usage record into a monetary amount. It is a pure
// function over its inputs: identical inputs always yield identical amounts.
//
// Per-cycle rates charge rate * cycles. Per-hour rates charge the metered
// minutes, snapped to the equipment's billing granularity, at rate per hour.
// Surge pricing multiplies a positive amount when the usage timestamp hour
// falls inside the surge window. The result is never negative and a zero
// duration always yields zero cost.
func Calculate(usage UsageRecord, eq equipment.Equipment, settings PricingSettings) float64 {
	var amount float64
	if eq.BillsPerCycle() {
		amount = float64(usage.Cycles) * eq.Rate
	} else {
		billable := usage.DurationMinutes
		if billable < 0 {
			billable = 0
		}
		if eq.UnitMinutes > 0 {
			billable = snapToUnit(billable, eq.UnitMinutes, eq.RoundingMode)
		}
		amount = float64(billable) / 60.0 * eq.Rate
	}
	if amount > 0 && settings.SurgePricingEnabled && inSurgeWindow(usage.RecordedAt.Hour(), settings.SurgeStartHour, settings.SurgeEndHour) {
		amount *= settings.SurgeMultiplier
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// EstimateForInterval prices a hypothetical, not-yet-completed usage of the
// interval, for pre-booking cost preview. The interval start stands in for
// the checkout timestamp when judging surge.
func EstimateForInterval(eq equipment.Equipment, start, end time.Time, settings PricingSettings) float64 {
	minutes := int(end.Sub(start).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	usage := UsageRecord{
		DurationMinutes: minutes,
		Cycles:          1,
		RecordedAt:      start,
	}
	return Calculate(usage, eq, settings)
}

// snapToUnit rounds minutes to a multiple of unit, either always up or to
// the nearest multiple.
func snapToUnit(minutes, unit int, mode equipment.RoundingMode) int {
	if unit <= 0 || minutes <= 0 {
		return minutes
	}
	ratio := float64(minutes) / float64(unit)
	switch mode {
	case equipment.RoundNearest:
		return int(math.Round(ratio)) * unit
	default:
		return int(math.Ceil(ratio)) * unit
	}
}

// inSurgeWindow checks membership of hour in the half-open [start, end)
// window. A window with start after end wraps past midnight.
func inSurgeWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
