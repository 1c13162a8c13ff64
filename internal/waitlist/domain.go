// Package waitlist queues demand for contested equipment intervals.
package waitlist

import (
	"errors"
	"time"

	"github.com/labkeeper/labkeeper/internal/booking"
)

// Status enumerates waitlist entry states.
type Status string

const (
	// StatusPending marks an entry waiting for the slot to free up.
	StatusPending Status = "pending"
	// StatusNotified marks an entry whose requester was told a slot opened.
	StatusNotified Status = "notified"
	// StatusFulfilled marks an entry that became a reservation.
	StatusFulfilled Status = "fulfilled"
	// StatusExpired marks an entry aged out by policy.
	StatusExpired Status = "expired"
	// StatusCancelled marks an entry withdrawn by the requester.
	StatusCancelled Status = "cancelled"
)

// Entry is one queued demand signal for an equipment interval.
type Entry struct {
	ID          string
	PrincipalID string
	CompanyID   string
	EquipmentID string
	StartTime   time.Time
	EndTime     time.Time
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnerID implements authz.Scoped.
func (e Entry) OwnerID() string { return e.PrincipalID }

// TenantID implements authz.Scoped.
func (e Entry) TenantID() string { return e.CompanyID }

// Slot returns the requested interval.
func (e Entry) Slot() booking.Interval {
	return booking.Interval{Start: e.StartTime, End: e.EndTime}
}

var (
	// ErrNotFound indicates the entry does not exist.
	ErrNotFound = errors.New("waitlist: entry not found")
	// ErrNotPending indicates the entry left the queue already.
	ErrNotPending = errors.New("waitlist: entry is not pending")
	// ErrInvalidInterval indicates a malformed requested interval.
	ErrInvalidInterval = errors.New("waitlist: end time must be after start time")
)
