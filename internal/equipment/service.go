package equipment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/labkeeper/labkeeper/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, e Equipment) error
	Update(ctx context.Context, e Equipment) error
	Get(ctx context.Context, id string) (Equipment, error)
	List(ctx context.Context) ([]Equipment, error)
}

// Service coordinates equipment management.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditRecorder
}

// NewService builds a Service.
func NewService(repo RepositoryPort, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create registers new equipment. Operators only; the handler enforces the
// permission before calling in.
func (s *Service) Create(ctx context.Context, actorID string, input CreateInput) (Equipment, error) {
	if err := validate(input.Name, input.Rate, input.UnitMinutes, input.RoundingMode); err != nil {
		return Equipment{}, err
	}
	e := Equipment{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(input.Name),
		Category:        strings.TrimSpace(input.Category),
		Rate:            input.Rate,
		RateUnit:        strings.TrimSpace(input.RateUnit),
		UnitMinutes:     input.UnitMinutes,
		RoundingMode:    input.RoundingMode,
		RequiresBooking: input.RequiresBooking,
		Note:            input.Note,
		CreatedAt:       time.Now().UTC(),
	}
	e.UpdatedAt = e.CreatedAt
	if err := s.repo.Insert(ctx, e); err != nil {
		return Equipment{}, err
	}
	s.record(ctx, actorID, "equipment.create", e.ID)
	return e, nil
}

// Update edits existing equipment.
func (s *Service) Update(ctx context.Context, actorID, id string, input UpdateInput) (Equipment, error) {
	if err := validate(input.Name, input.Rate, input.UnitMinutes, input.RoundingMode); err != nil {
		return Equipment{}, err
	}
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return Equipment{}, err
	}
	e.Name = strings.TrimSpace(input.Name)
	e.Category = strings.TrimSpace(input.Category)
	e.Rate = input.Rate
	e.RateUnit = strings.TrimSpace(input.RateUnit)
	e.UnitMinutes = input.UnitMinutes
	e.RoundingMode = input.RoundingMode
	e.RequiresBooking = input.RequiresBooking
	e.Note = input.Note
	if err := s.repo.Update(ctx, e); err != nil {
		return Equipment{}, err
	}
	s.record(ctx, actorID, "equipment.update", e.ID)
	return e, nil
}

// Get fetches one piece of equipment. Readable by every authenticated role.
func (s *Service) Get(ctx context.Context, id string) (Equipment, error) {
	return s.repo.Get(ctx, id)
}

// List returns all equipment.
func (s *Service) List(ctx context.Context) ([]Equipment, error) {
	return s.repo.List(ctx)
}

func validate(name string, rate float64, unitMinutes int, mode RoundingMode) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	if rate < 0 {
		return ErrNegativeRate
	}
	if unitMinutes < 0 || (unitMinutes > 0 && !mode.Valid()) {
		return ErrInvalidGranularity
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "equipment",
		EntityID: entityID,
	})
}
