// Package billing converts metered equipment usage into monetary amounts.
package billing

import (
	"errors"
	"time"
)

// UsageRecord is an immutable fact produced exactly once per completed
// reservation at checkout. It is never mutated after creation.
type UsageRecord struct {
	ID              string
	ReservationID   string
	PrincipalID     string
	CompanyID       string
	EquipmentID     string
	DurationMinutes int
	Cycles          int
	RecordedAt      time.Time
}

// OwnerID implements authz.Scoped.
func (u UsageRecord) OwnerID() string { return u.PrincipalID }

// TenantID implements authz.Scoped.
func (u UsageRecord) TenantID() string { return u.CompanyID }

// PricingSettings holds the facility-wide pricing configuration supplied by
// the settings provider. Read-only to this core.
type PricingSettings struct {
	SurgePricingEnabled bool    `json:"surge_pricing_enabled"`
	SurgeMultiplier     float64 `json:"surge_multiplier"`
	SurgeStartHour      int     `json:"surge_start_hour"`
	SurgeEndHour        int     `json:"surge_end_hour"`
	OpenHour            int     `json:"open_hour"`
	CloseHour           int     `json:"close_hour"`
}

// ErrSettingsNotFound indicates the pricing settings row is missing.
var ErrSettingsNotFound = errors.New("billing: pricing settings not found")
