package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func slot(startHour, endHour int) Interval {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	return Interval{Start: day.Add(time.Duration(startHour) * time.Hour), End: day.Add(time.Duration(endHour) * time.Hour)}
}

func TestIntervalOverlaps(t *testing.T) {
	require.True(t, slot(10, 12).Overlaps(slot(11, 13)))
	require.True(t, slot(11, 13).Overlaps(slot(10, 12)))

	// Containment in both directions.
	require.True(t, slot(10, 14).Overlaps(slot(11, 12)))
	require.True(t, slot(11, 12).Overlaps(slot(10, 14)))

	// Half-open: a shared boundary is not a conflict.
	require.False(t, slot(10, 12).Overlaps(slot(12, 14)))
	require.False(t, slot(12, 14).Overlaps(slot(10, 12)))

	require.False(t, slot(10, 11).Overlaps(slot(12, 13)))
}

func TestOverlapsIsSymmetric(t *testing.T) {
	pairs := [][2]Interval{
		{slot(10, 12), slot(11, 13)},
		{slot(10, 12), slot(12, 14)},
		{slot(9, 17), slot(12, 13)},
		{slot(10, 11), slot(15, 16)},
	}
	for _, pair := range pairs {
		require.Equal(t, pair[0].Overlaps(pair[1]), pair[1].Overlaps(pair[0]))
	}
}

func TestConflictingSkipsCancelled(t *testing.T) {
	existing := []Reservation{
		{ID: "r1", EquipmentID: "eq-1", StartTime: slot(10, 12).Start, EndTime: slot(10, 12).End, Status: StatusCancelled},
		{ID: "r2", EquipmentID: "eq-1", StartTime: slot(13, 15).Start, EndTime: slot(13, 15).End, Status: StatusAwaitingCheckIn},
	}

	_, conflict := Conflicting(slot(10, 12), existing)
	require.False(t, conflict, "cancelled reservations release their slot")

	hit, conflict := Conflicting(slot(14, 16), existing)
	require.True(t, conflict)
	require.Equal(t, "r2", hit.ID)
}

func TestConflictingHoldsNonCancelledStatuses(t *testing.T) {
	for _, status := range []Status{StatusAwaitingCheckIn, StatusCheckedIn, StatusCompleted, StatusNoShow} {
		existing := []Reservation{{ID: "r1", StartTime: slot(10, 12).Start, EndTime: slot(10, 12).End, Status: status}}
		_, conflict := Conflicting(slot(11, 13), existing)
		require.True(t, conflict, string(status))
	}
}

func TestCheckOverlapIgnoresOtherEquipment(t *testing.T) {
	existing := []Reservation{
		{ID: "r1", EquipmentID: "eq-other", StartTime: slot(10, 12).Start, EndTime: slot(10, 12).End, Status: StatusAwaitingCheckIn},
	}

	require.False(t, CheckOverlap("eq-1", slot(10, 12), existing))
	require.True(t, CheckOverlap("eq-other", slot(10, 12), existing))
}
