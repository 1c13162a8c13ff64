package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/billing"
	"github.com/labkeeper/labkeeper/internal/equipment"
	"github.com/labkeeper/labkeeper/internal/shared"
)

// RepositoryPort abstracts reservation persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id string) (Reservation, error)
	List(ctx context.Context, equipmentID string, limit int) ([]Reservation, error)
}

// EquipmentPort provides equipment lookups.
type EquipmentPort interface {
	Get(ctx context.Context, id string) (equipment.Equipment, error)
}

// SettingsPort supplies pricing settings for cost previews.
type SettingsPort interface {
	Pricing(ctx context.Context) (billing.PricingSettings, error)
}

// EventPublisher announces lifecycle events consumed outside the core
// create/cancel path. Publication is fire-and-forget; failures are logged,
// never surfaced to the caller.
type EventPublisher interface {
	ReservationCancelled(ctx context.Context, equipmentID string, slot Interval) error
}

// Service is the reservation lifecycle manager.
type Service struct {
	repo      RepositoryPort
	equipment EquipmentPort
	settings  SettingsPort
	resolver  *authz.Resolver
	audit     shared.AuditRecorder
	events    EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds a booking Service.
func NewService(repo RepositoryPort, eq EquipmentPort, settings SettingsPort, resolver *authz.Resolver, audit shared.AuditRecorder, events EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		equipment: eq,
		settings:  settings,
		resolver:  resolver,
		audit:     audit,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates and persists a new reservation in AwaitingCheckIn. The
// overlap check and the insert run in one transaction under the equipment's
// advisory lock, so two concurrent overlapping requests cannot both succeed.
func (s *Service) Create(ctx context.Context, p *shared.Principal, input CreateInput) (Reservation, error) {
	if p == nil {
		return Reservation{}, shared.ErrMissingPrincipal
	}
	now := s.now()
	if !input.End.After(input.Start) {
		return Reservation{}, &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	if input.Start.Before(now.Add(-GracePeriod)) {
		return Reservation{}, &ValidationError{Field: "start_time", Reason: "must not be in the past"}
	}

	eq, err := s.equipment.Get(ctx, input.EquipmentID)
	if err != nil {
		return Reservation{}, err
	}
	if !eq.RequiresBooking {
		return Reservation{}, &ValidationError{Field: "equipment_id", Reason: "equipment does not take reservations"}
	}

	res := Reservation{
		ID:          uuid.NewString(),
		PrincipalID: p.ID,
		CompanyID:   p.CompanyID,
		EquipmentID: eq.ID,
		ProjectID:   input.ProjectID,
		StartTime:   input.Start,
		EndTime:     input.End,
		Status:      StatusAwaitingCheckIn,
		Note:        input.Note,
		CreatedAt:   now.UTC(),
	}
	res.UpdatedAt = res.CreatedAt

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockEquipment(ctx, eq.ID); err != nil {
			return err
		}
		existing, err := tx.ListNonCancelled(ctx, eq.ID)
		if err != nil {
			return err
		}
		if conflict, ok := Conflicting(res.Slot(), existing); ok {
			return &OverlapError{
				EquipmentID:      eq.ID,
				Requested:        res.Slot(),
				ConflictID:       conflict.ID,
				ConflictInterval: conflict.Slot(),
			}
		}
		return tx.Insert(ctx, res)
	})
	if err != nil {
		return Reservation{}, err
	}
	s.record(ctx, p.ID, "reservation.create", res.ID)
	return res, nil
}

// CheckIn transitions AwaitingCheckIn to CheckedIn and stamps the actual
// start time.
func (s *Service) CheckIn(ctx context.Context, p *shared.Principal, id string) (Reservation, error) {
	res, err := s.transition(ctx, p, id, "check in", func(res *Reservation, now time.Time) error {
		if res.Status != StatusAwaitingCheckIn {
			return &TransitionError{ReservationID: res.ID, Current: res.Status, Operation: "check in"}
		}
		start := now
		res.ActualStartTime = &start
		res.Status = StatusCheckedIn
		return nil
	}, nil)
	if err != nil {
		return Reservation{}, err
	}
	s.record(ctx, p.ID, "reservation.check_in", id)
	return res, nil
}

// CheckOut transitions CheckedIn to Completed, meters the usage and emits
// exactly one usage record in the same transaction as the status change.
// cycles is the number of machine cycles run, for per-cycle equipment;
// callers booking per-hour equipment pass 1.
func (s *Service) CheckOut(ctx context.Context, p *shared.Principal, id string, cycles int) (Reservation, billing.UsageRecord, error) {
	if cycles < 1 {
		cycles = 1
	}
	var usage billing.UsageRecord
	res, err := s.transition(ctx, p, id, "check out", func(res *Reservation, now time.Time) error {
		if res.Status != StatusCheckedIn || res.ActualStartTime == nil {
			return &TransitionError{ReservationID: res.ID, Current: res.Status, Operation: "check out"}
		}
		end := now
		res.ActualEndTime = &end
		res.Status = StatusCompleted

		minutes := int(end.Sub(*res.ActualStartTime).Minutes())
		if minutes < 0 {
			minutes = 0
		}
		usage = billing.UsageRecord{
			ID:              uuid.NewString(),
			ReservationID:   res.ID,
			PrincipalID:     res.PrincipalID,
			CompanyID:       res.CompanyID,
			EquipmentID:     res.EquipmentID,
			DurationMinutes: minutes,
			Cycles:          cycles,
			RecordedAt:      end,
		}
		return nil
	}, func(ctx context.Context, tx TxRepository) error {
		return tx.EmitUsage(ctx, usage)
	})
	if err != nil {
		return Reservation{}, billing.UsageRecord{}, err
	}
	s.record(ctx, p.ID, "reservation.check_out", id)
	return res, usage, nil
}

// Cancel withdraws a reservation before check-in. An in-progress usage
// cannot be silently discarded, so CheckedIn never cancels. After commit a
// cancellation event is published for the waitlist promotion worker.
func (s *Service) Cancel(ctx context.Context, p *shared.Principal, id string) (Reservation, error) {
	res, err := s.transition(ctx, p, id, "cancel", func(res *Reservation, now time.Time) error {
		if res.Status != StatusAwaitingCheckIn {
			return &TransitionError{ReservationID: res.ID, Current: res.Status, Operation: "cancel"}
		}
		res.Status = StatusCancelled
		return nil
	}, nil)
	if err != nil {
		return Reservation{}, err
	}
	s.record(ctx, p.ID, "reservation.cancel", id)
	if s.events != nil {
		if err := s.events.ReservationCancelled(ctx, res.EquipmentID, res.Slot()); err != nil && s.logger != nil {
			s.logger.Warn("publish cancellation event", slog.Any("error", err), slog.String("reservation", id))
		}
	}
	return res, nil
}

// MarkNoShow moves an unclaimed reservation to NoShow. Facility staff only:
// it requires all-tenant edit scope on reservations.
func (s *Service) MarkNoShow(ctx context.Context, p *shared.Principal, id string) (Reservation, error) {
	if p == nil {
		return Reservation{}, shared.ErrMissingPrincipal
	}
	if scope, ok := s.resolver.ResolveScope(authz.Role(p.Role), authz.ResourceReservation, authz.ActionEdit); !ok || scope != authz.ScopeAll {
		return Reservation{}, shared.ErrPermissionDenied
	}
	res, err := s.transition(ctx, p, id, "mark no-show", func(res *Reservation, now time.Time) error {
		if res.Status != StatusAwaitingCheckIn {
			return &TransitionError{ReservationID: res.ID, Current: res.Status, Operation: "mark no-show"}
		}
		res.Status = StatusNoShow
		return nil
	}, nil)
	if err != nil {
		return Reservation{}, err
	}
	s.record(ctx, p.ID, "reservation.no_show", id)
	return res, nil
}

// List returns the reservations visible to the principal under the scope
// granted for viewing reservations.
func (s *Service) List(ctx context.Context, p *shared.Principal, equipmentID string, limit int) ([]Reservation, error) {
	all, err := s.repo.List(ctx, equipmentID, limit)
	if err != nil {
		return nil, err
	}
	return authz.Filter(s.resolver, p, authz.ResourceReservation, authz.ActionView, all), nil
}

// EstimateCost prices a hypothetical reservation of the interval, for
// pre-booking preview. Same algorithm as checkout billing.
func (s *Service) EstimateCost(ctx context.Context, equipmentID string, slot Interval) (float64, error) {
	if !slot.End.After(slot.Start) {
		return 0, &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	eq, err := s.equipment.Get(ctx, equipmentID)
	if err != nil {
		return 0, err
	}
	settings, err := s.settings.Pricing(ctx)
	if err != nil {
		return 0, err
	}
	return billing.EstimateForInterval(eq, slot.Start, slot.End, settings), nil
}

// transition loads a reservation under a row lock, authorizes the principal
// against it, applies the mutation and persists it, all in one transaction.
// extra, when set, runs in the same transaction after the update.
func (s *Service) transition(ctx context.Context, p *shared.Principal, id, op string, mutate func(*Reservation, time.Time) error, extra func(context.Context, TxRepository) error) (Reservation, error) {
	if p == nil {
		return Reservation{}, shared.ErrMissingPrincipal
	}
	var out Reservation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !s.resolver.Visible(p, authz.ResourceReservation, authz.ActionEdit, res) {
			return shared.ErrPermissionDenied
		}
		now := s.now()
		if err := mutate(&res, now); err != nil {
			return err
		}
		res.UpdatedAt = now.UTC()
		if err := tx.Update(ctx, res); err != nil {
			return err
		}
		if extra != nil {
			if err := extra(ctx, tx); err != nil {
				return err
			}
		}
		out = res
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "reservation",
		EntityID: entityID,
	})
}
