package waitlist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/booking"
	"github.com/labkeeper/labkeeper/internal/shared"
)

// RepositoryPort abstracts waitlist persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	List(ctx context.Context, equipmentID string) ([]Entry, error)
	OldestPendingOverlapping(ctx context.Context, equipmentID string, start, end time.Time) (Entry, error)
}

// NotifierPort sends a slot-available notification to the requester of an
// entry. Dispatch is fire-and-forget from the promotion worker's view.
type NotifierPort interface {
	SlotAvailable(ctx context.Context, e Entry) error
}

// Service manages queued demand for contested intervals.
type Service struct {
	repo     RepositoryPort
	resolver *authz.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a waitlist Service.
func NewService(repo RepositoryPort, resolver *authz.Resolver, logger *slog.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, logger: logger, now: time.Now}
}

// Enqueue adds a pending entry for the requested interval. Callers reach
// here after a create attempt failed with an overlap conflict.
func (s *Service) Enqueue(ctx context.Context, p *shared.Principal, equipmentID string, slot booking.Interval) (Entry, error) {
	if p == nil {
		return Entry{}, shared.ErrMissingPrincipal
	}
	if !slot.End.After(slot.Start) {
		return Entry{}, ErrInvalidInterval
	}
	e := Entry{
		ID:          uuid.NewString(),
		PrincipalID: p.ID,
		CompanyID:   p.CompanyID,
		EquipmentID: equipmentID,
		StartTime:   slot.Start,
		EndTime:     slot.End,
		Status:      StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	e.UpdatedAt = e.CreatedAt
	if err := s.repo.Insert(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Cancel withdraws a pending entry on requester action.
func (s *Service) Cancel(ctx context.Context, p *shared.Principal, id string) error {
	if p == nil {
		return shared.ErrMissingPrincipal
	}
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.resolver.Visible(p, authz.ResourceWaitlist, authz.ActionEdit, e) {
		return shared.ErrPermissionDenied
	}
	return s.repo.UpdateStatus(ctx, id, StatusPending, StatusCancelled)
}

// List returns the entries visible to the principal.
func (s *Service) List(ctx context.Context, p *shared.Principal, equipmentID string) ([]Entry, error) {
	all, err := s.repo.List(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	return authz.Filter(s.resolver, p, authz.ResourceWaitlist, authz.ActionView, all), nil
}

// PromoteNext runs when a reservation frees a window. It marks the
// longest-waiting overlapping pending entry as Notified and hands it to the
// notifier. It never books on the requester's behalf: promotion means an
// invitation, not an automatic reservation.
func (s *Service) PromoteNext(ctx context.Context, equipmentID string, start, end time.Time, notifier NotifierPort) error {
	e, err := s.repo.OldestPendingOverlapping(ctx, equipmentID, start, end)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, e.ID, StatusPending, StatusNotified); err != nil {
		if errors.Is(err, ErrNotPending) {
			// Lost the race against a cancel or another promotion run.
			return nil
		}
		return err
	}
	e.Status = StatusNotified
	if notifier != nil {
		if err := notifier.SlotAvailable(ctx, e); err != nil && s.logger != nil {
			s.logger.Warn("notify waitlist entry", slog.Any("error", err), slog.String("entry", e.ID))
		}
	}
	return nil
}
