package booking

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labkeeper/labkeeper/internal/authz"
	"github.com/labkeeper/labkeeper/internal/billing"
	"github.com/labkeeper/labkeeper/internal/equipment"
	"github.com/labkeeper/labkeeper/internal/shared"
)

type memoryRepo struct {
	reservations map[string]Reservation
	usage        map[string]billing.UsageRecord // keyed by reservation id
	locked       []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		reservations: make(map[string]Reservation),
		usage:        make(map[string]billing.UsageRecord),
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, (*memoryTx)(m))
}

func (m *memoryRepo) Get(ctx context.Context, id string) (Reservation, error) {
	res, ok := m.reservations[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return res, nil
}

func (m *memoryRepo) List(ctx context.Context, equipmentID string, limit int) ([]Reservation, error) {
	var out []Reservation
	for _, res := range m.reservations {
		if equipmentID == "" || res.EquipmentID == equipmentID {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryTx memoryRepo

func (t *memoryTx) LockEquipment(ctx context.Context, equipmentID string) error {
	t.locked = append(t.locked, equipmentID)
	return nil
}

func (t *memoryTx) ListNonCancelled(ctx context.Context, equipmentID string) ([]Reservation, error) {
	var out []Reservation
	for _, res := range t.reservations {
		if res.EquipmentID == equipmentID && res.Status != StatusCancelled {
			out = append(out, res)
		}
	}
	return out, nil
}

func (t *memoryTx) Insert(ctx context.Context, r Reservation) error {
	t.reservations[r.ID] = r
	return nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id string) (Reservation, error) {
	res, ok := t.reservations[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return res, nil
}

func (t *memoryTx) Update(ctx context.Context, r Reservation) error {
	if _, ok := t.reservations[r.ID]; !ok {
		return ErrNotFound
	}
	t.reservations[r.ID] = r
	return nil
}

func (t *memoryTx) EmitUsage(ctx context.Context, u billing.UsageRecord) error {
	if _, ok := t.usage[u.ReservationID]; ok {
		return billing.ErrDuplicateUsage
	}
	t.usage[u.ReservationID] = u
	return nil
}

type memoryEquipment map[string]equipment.Equipment

func (m memoryEquipment) Get(ctx context.Context, id string) (equipment.Equipment, error) {
	eq, ok := m[id]
	if !ok {
		return equipment.Equipment{}, equipment.ErrNotFound
	}
	return eq, nil
}

type staticSettings billing.PricingSettings

func (s staticSettings) Pricing(ctx context.Context) (billing.PricingSettings, error) {
	return billing.PricingSettings(s), nil
}

type capturedEvent struct {
	equipmentID string
	slot        Interval
}

type memoryPublisher struct {
	events []capturedEvent
	err    error
}

func (p *memoryPublisher) ReservationCancelled(ctx context.Context, equipmentID string, slot Interval) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, capturedEvent{equipmentID: equipmentID, slot: slot})
	return nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var baseTime = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	repo   *memoryRepo
	events *memoryPublisher
	audit  *memoryAudit
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	events := &memoryPublisher{}
	audit := &memoryAudit{}
	eq := memoryEquipment{
		"eq-1":    {ID: "eq-1", Name: "CNC Mill", Rate: 1000, RateUnit: "per hour", UnitMinutes: 15, RoundingMode: equipment.RoundCeiling, RequiresBooking: true},
		"walk-up": {ID: "walk-up", Name: "Bench Scope", Rate: 0, RequiresBooking: false},
	}
	svc := NewService(repo, eq, staticSettings{}, authz.NewResolver(authz.DefaultTable()), audit, events, nil)
	now := baseTime
	clock := &now
	svc.now = func() time.Time { return *clock }
	return &fixture{svc: svc, repo: repo, events: events, audit: audit, clock: clock}
}

func member(id, company string) *shared.Principal {
	return &shared.Principal{ID: id, CompanyID: company, Role: string(authz.RoleMember)}
}

func manager(id string) *shared.Principal {
	return &shared.Principal{ID: id, CompanyID: "facility", Role: string(authz.RoleLabManager)}
}

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, member("alice", "t1"), CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	require.Equal(t, StatusAwaitingCheckIn, res.Status)
	require.Equal(t, "alice", res.PrincipalID)
	require.Equal(t, "t1", res.CompanyID)
	require.Contains(t, f.repo.locked, "eq-1")
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, "reservation.create", f.audit.logs[0].Action)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, nil, CreateInput{EquipmentID: "eq-1", Start: baseTime, End: baseTime.Add(time.Hour)})
	require.ErrorIs(t, err, shared.ErrMissingPrincipal)

	_, err = f.svc.Create(ctx, member("alice", "t1"), CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(2 * time.Hour),
		End:         baseTime.Add(time.Hour),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "end_time", verr.Field)

	_, err = f.svc.Create(ctx, member("alice", "t1"), CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(-time.Hour),
		End:         baseTime.Add(time.Hour),
	})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "start_time", verr.Field)

	_, err = f.svc.Create(ctx, member("alice", "t1"), CreateInput{
		EquipmentID: "missing",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(2 * time.Hour),
	})
	require.ErrorIs(t, err, equipment.ErrNotFound)
}

func TestCreateToleratesGracePeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), member("alice", "t1"), CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(-GracePeriod + time.Minute),
		End:         baseTime.Add(time.Hour),
	})
	require.NoError(t, err)
}

func TestCreateRejectsWalkUpEquipment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), member("alice", "t1"), CreateInput{
		EquipmentID: "walk-up",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(2 * time.Hour),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "equipment_id", verr.Field)
}

func TestCreateOverlapConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, member("alice", "t1"), CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, member("bob", "t1"), CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(2 * time.Hour),
		End:         baseTime.Add(4 * time.Hour),
	})
	var oerr *OverlapError
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, "eq-1", oerr.EquipmentID)
	require.Equal(t, first.ID, oerr.ConflictID)
	require.Equal(t, first.Slot(), oerr.ConflictInterval)

	// A reservation starting exactly at the other's end does not conflict.
	_, err = f.svc.Create(ctx, member("bob", "t1"), CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(3 * time.Hour),
		End:         baseTime.Add(4 * time.Hour),
	})
	require.NoError(t, err)
}

func TestCreateReclaimsCancelledSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := member("alice", "t1")

	res, err := f.svc.Create(ctx, alice, CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, alice, res.ID)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, member("bob", "t1"), CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)
}

func TestCheckInAndCheckOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := member("alice", "t1")

	res, err := f.svc.Create(ctx, alice, CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	*f.clock = baseTime.Add(time.Hour)
	res, err = f.svc.CheckIn(ctx, alice, res.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCheckedIn, res.Status)
	require.NotNil(t, res.ActualStartTime)
	require.Equal(t, baseTime.Add(time.Hour), *res.ActualStartTime)

	*f.clock = baseTime.Add(time.Hour + 47*time.Minute)
	res, usage, err := f.svc.CheckOut(ctx, alice, res.ID, 0)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.NotNil(t, res.ActualEndTime)
	require.Equal(t, 47, usage.DurationMinutes)
	require.Equal(t, 1, usage.Cycles, "cycles floor at one")
	require.Equal(t, res.ID, usage.ReservationID)
	require.Equal(t, "eq-1", usage.EquipmentID)

	stored, ok := f.repo.usage[res.ID]
	require.True(t, ok, "usage record persisted with the status change")
	require.Equal(t, usage, stored)
}

func TestCheckOutIsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := member("alice", "t1")

	res, err := f.svc.Create(ctx, alice, CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	*f.clock = baseTime.Add(time.Hour)
	_, err = f.svc.CheckIn(ctx, alice, res.ID)
	require.NoError(t, err)

	*f.clock = baseTime.Add(2 * time.Hour)
	_, _, err = f.svc.CheckOut(ctx, alice, res.ID, 1)
	require.NoError(t, err)

	_, _, err = f.svc.CheckOut(ctx, alice, res.ID, 1)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, StatusCompleted, terr.Current)
	require.Len(t, f.repo.usage, 1)
}

func TestStateMachineClosure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := member("alice", "t1")

	res, err := f.svc.Create(ctx, alice, CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	// Checkout before check-in is not a transition.
	_, _, err = f.svc.CheckOut(ctx, alice, res.ID, 1)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)

	*f.clock = baseTime.Add(time.Hour)
	_, err = f.svc.CheckIn(ctx, alice, res.ID)
	require.NoError(t, err)

	// An in-progress usage cannot be discarded.
	_, err = f.svc.Cancel(ctx, alice, res.ID)
	require.ErrorAs(t, err, &terr)
	require.Equal(t, StatusCheckedIn, terr.Current)

	// Nor double checked in.
	_, err = f.svc.CheckIn(ctx, alice, res.ID)
	require.ErrorAs(t, err, &terr)
}

func TestCancelPublishesPromotionEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := member("alice", "t1")

	res, err := f.svc.Create(ctx, alice, CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, alice, res.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	require.Len(t, f.events.events, 1)
	require.Equal(t, "eq-1", f.events.events[0].equipmentID)
	require.Equal(t, res.Slot(), f.events.events[0].slot)
}

func TestCancelSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")
	ctx := context.Background()
	alice := member("alice", "t1")

	res, err := f.svc.Create(ctx, alice, CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, alice, res.ID)
	require.NoError(t, err, "the cancellation itself must not fail")
	require.Equal(t, StatusCancelled, cancelled.Status)
}

func TestTransitionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, member("alice", "t1"), CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.CheckIn(ctx, member("bob", "t1"), res.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	// A tenant admin manages reservations across their own company.
	admin := &shared.Principal{ID: "dana", CompanyID: "t1", Role: string(authz.RoleCompanyAdmin)}
	_, err = f.svc.CheckIn(ctx, admin, res.ID)
	require.NoError(t, err)
}

func TestMarkNoShowRequiresFacilityStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := member("alice", "t1")

	res, err := f.svc.Create(ctx, alice, CreateInput{
		EquipmentID: "eq-1",
		Start:       baseTime.Add(time.Hour),
		End:         baseTime.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.MarkNoShow(ctx, alice, res.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied, "holders cannot no-show themselves")

	marked, err := f.svc.MarkNoShow(ctx, manager("staff"), res.ID)
	require.NoError(t, err)
	require.Equal(t, StatusNoShow, marked.Status)
}

func TestListFiltersByScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, p := range []*shared.Principal{member("alice", "t1"), member("bob", "t1"), member("carol", "t2")} {
		_, err := f.svc.Create(ctx, p, CreateInput{
			EquipmentID: "eq-1",
			Start:       baseTime.Add(time.Duration(i+1) * 4 * time.Hour),
			End:         baseTime.Add(time.Duration(i+1)*4*time.Hour + time.Hour),
		})
		require.NoError(t, err)
	}

	all, err := f.svc.List(ctx, manager("staff"), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	admin := &shared.Principal{ID: "dana", CompanyID: "t1", Role: string(authz.RoleCompanyAdmin)}
	tenant, err := f.svc.List(ctx, admin, "", 0)
	require.NoError(t, err)
	require.Len(t, tenant, 2)

	own, err := f.svc.List(ctx, member("alice", "t1"), "", 0)
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, "alice", own[0].PrincipalID)
}

func TestEstimateCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	amount, err := f.svc.EstimateCost(ctx, "eq-1", Interval{Start: baseTime, End: baseTime.Add(47 * time.Minute)})
	require.NoError(t, err)
	require.InDelta(t, 1000.0, amount, 0.0001)

	_, err = f.svc.EstimateCost(ctx, "eq-1", Interval{Start: baseTime, End: baseTime})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
