// Package booking owns the reservation lifecycle and the scheduling
// conflict resolution for shared equipment.
package booking

import (
	"fmt"
	"time"
)

// Status enumerates reservation lifecycle states.
type Status string

const (
	// StatusAwaitingCheckIn is the initial state of every reservation.
	StatusAwaitingCheckIn Status = "awaiting_check_in"
	// StatusCheckedIn marks a reservation whose usage is in progress.
	StatusCheckedIn Status = "checked_in"
	// StatusCompleted marks a checked-out reservation. Terminal.
	StatusCompleted Status = "completed"
	// StatusCancelled marks a withdrawn reservation. Terminal.
	StatusCancelled Status = "cancelled"
	// StatusNoShow marks a reservation the holder never claimed. Terminal.
	StatusNoShow Status = "no_show"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// GracePeriod tolerates submission latency when validating start times.
const GracePeriod = 5 * time.Minute

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. Touching
// boundaries do not conflict.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Reservation is one claim on a piece of equipment for a half-open time
// interval. Reservations are never physically deleted; cancellation is a
// status change.
type Reservation struct {
	ID              string
	PrincipalID     string
	CompanyID       string
	EquipmentID     string
	ProjectID       string
	StartTime       time.Time
	EndTime         time.Time
	ActualStartTime *time.Time
	ActualEndTime   *time.Time
	Status          Status
	Note            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OwnerID implements authz.Scoped.
func (r Reservation) OwnerID() string { return r.PrincipalID }

// TenantID implements authz.Scoped.
func (r Reservation) TenantID() string { return r.CompanyID }

// Slot returns the booked interval.
func (r Reservation) Slot() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}

// CreateInput describes a reservation request.
type CreateInput struct {
	EquipmentID string
	ProjectID   string
	Start       time.Time
	End         time.Time
	Note        string
}

// ValidationError reports a malformed request, naming the violated field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Reason)
}

// OverlapError reports a scheduling conflict. It is distinguishable from
// plain validation failures so callers can offer the waitlist path, and it
// carries the conflicting reservation's interval.
type OverlapError struct {
	EquipmentID      string
	Requested        Interval
	ConflictID       string
	ConflictInterval Interval
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("booking: equipment %s already reserved from %s to %s",
		e.EquipmentID, e.ConflictInterval.Start.Format(time.RFC3339), e.ConflictInterval.End.Format(time.RFC3339))
}

// TransitionError reports a lifecycle operation attempted from a state that
// does not permit it. The current state travels with the error.
type TransitionError struct {
	ReservationID string
	Current       Status
	Operation     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("booking: cannot %s reservation %s in state %s", e.Operation, e.ReservationID, e.Current)
}
