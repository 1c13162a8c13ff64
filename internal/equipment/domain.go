// Package equipment manages the bookable lab assets and their rate
// configuration.
package equipment

import (
	"errors"
	"strings"
	"time"
)

// RoundingMode controls how billable minutes snap to the billing unit.
type RoundingMode string

const (
	// RoundCeiling rounds billable minutes up to the next unit multiple.
	RoundCeiling RoundingMode = "ceiling"
	// RoundNearest rounds billable minutes to the nearest unit multiple.
	RoundNearest RoundingMode = "nearest"
)

// Valid reports whether the mode is one of the supported modes.
func (m RoundingMode) Valid() bool {
	return m == RoundCeiling || m == RoundNearest
}

// Equipment is a bookable asset owned by the facility.
type Equipment struct {
	ID              string
	Name            string
	Category        string
	Rate            float64
	RateUnit        string
	UnitMinutes     int
	RoundingMode    RoundingMode
	RequiresBooking bool
	Note            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BillsPerCycle reports whether the free-text rate unit denotes a per-cycle
// charge rather than a per-hour one.
func (e Equipment) BillsPerCycle() bool {
	return strings.Contains(strings.ToLower(e.RateUnit), "cycle")
}

// CreateInput describes a request to register equipment.
type CreateInput struct {
	Name            string
	Category        string
	Rate            float64
	RateUnit        string
	UnitMinutes     int
	RoundingMode    RoundingMode
	RequiresBooking bool
	Note            string
}

// UpdateInput describes a request to edit equipment.
type UpdateInput struct {
	Name            string
	Category        string
	Rate            float64
	RateUnit        string
	UnitMinutes     int
	RoundingMode    RoundingMode
	RequiresBooking bool
	Note            string
}

var (
	// ErrNotFound indicates the equipment does not exist.
	ErrNotFound = errors.New("equipment: not found")
	// ErrNameRequired indicates a missing name.
	ErrNameRequired = errors.New("equipment: name required")
	// ErrNegativeRate indicates a negative rate amount.
	ErrNegativeRate = errors.New("equipment: rate must be >= 0")
	// ErrInvalidGranularity indicates a bad billing granularity policy.
	ErrInvalidGranularity = errors.New("equipment: unit minutes must be >= 0 and rounding mode ceiling or nearest")
)
