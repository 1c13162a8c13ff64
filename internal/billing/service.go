package billing

import (
	"context"

	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/equipment"
	"github.com/labkeeper/labkeeper/internal/shared"
)

// UsageListerPort abstracts usage record reads.
type UsageListerPort interface {
	List(ctx context.Context, equipmentID string, limit int) ([]UsageRecord, error)
}

// EquipmentPort provides rate configuration lookups.
type EquipmentPort interface {
	Get(ctx context.Context, id string) (equipment.Equipment, error)
}

// SettingsPort supplies pricing settings.
type SettingsPort interface {
	Pricing(ctx context.Context) (PricingSettings, error)
}

// Charge pairs a usage record with its computed amount.
type Charge struct {
	Usage  UsageRecord
	Amount float64
}

// Service exposes scope-filtered usage listings with computed charges.
type Service struct {
	usage     UsageListerPort
	equipment EquipmentPort
	settings  SettingsPort
	resolver  *authz.Resolver
}

// NewService builds a billing Service.
func NewService(usage UsageListerPort, eq EquipmentPort, settings SettingsPort, resolver *authz.Resolver) *Service {
	return &Service{usage: usage, equipment: eq, settings: settings, resolver: resolver}
}

// ListCharges returns the usage records visible to the principal together
// with their amounts. Who may view a charge follows the usage_record scope
// in the permission table.
func (s *Service) ListCharges(ctx context.Context, p *shared.Principal, equipmentID string, limit int) ([]Charge, error) {
	records, err := s.usage.List(ctx, equipmentID, limit)
	if err != nil {
		return nil, err
	}
	visible := authz.Filter(s.resolver, p, authz.ResourceUsageRecord, authz.ActionView, records)

	settings, err := s.settings.Pricing(ctx)
	if err != nil {
		return nil, err
	}

	// Equipment rows are few per listing; memoise lookups per request.
	eqCache := make(map[string]equipment.Equipment)
	charges := make([]Charge, 0, len(visible))
	for _, u := range visible {
		eq, ok := eqCache[u.EquipmentID]
		if !ok {
			eq, err = s.equipment.Get(ctx, u.EquipmentID)
			if err != nil {
				return nil, err
			}
			eqCache[u.EquipmentID] = eq
		}
		charges = append(charges, Charge{Usage: u, Amount: Calculate(u, eq, settings)})
	}
	return charges, nil
}
