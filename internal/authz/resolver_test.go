package authz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/labkeeper/labkeeper/internal/shared"
)

type scopedRecord struct {
	owner  string
	tenant string
}

func (r scopedRecord) OwnerID() string  { return r.owner }
func (r scopedRecord) TenantID() string { return r.tenant }

func TestManageSubsumesEveryAction(t *testing.T) {
	r := NewResolver(DefaultTable())

	for _, action := range []string{ActionView, ActionCreate, ActionEdit, ActionDelete} {
		require.True(t, r.HasPermission(RoleLabManager, ResourceReservation, action), action)
	}
}

func TestDefaultDeny(t *testing.T) {
	r := NewResolver(DefaultTable())

	require.False(t, r.HasPermission(RoleVisitor, ResourceReservation, ActionCreate))
	require.False(t, r.HasPermission(RoleMember, ResourceSettings, ActionView))
	require.False(t, r.HasPermission(Role("unknown"), ResourceEquipment, ActionView))

	_, ok := r.ResolveScope(RoleVisitor, ResourceWaitlist, ActionView)
	require.False(t, ok)
}

func TestResolveScope(t *testing.T) {
	r := NewResolver(DefaultTable())

	scope, ok := r.ResolveScope(RoleMember, ResourceReservation, ActionView)
	require.True(t, ok)
	require.Equal(t, ScopeOwnOnly, scope)

	scope, ok = r.ResolveScope(RoleCompanyAdmin, ResourceReservation, ActionView)
	require.True(t, ok)
	require.Equal(t, ScopeOwnTenant, scope)

	scope, ok = r.ResolveScope(RoleLabManager, ResourceReservation, ActionView)
	require.True(t, ok)
	require.Equal(t, ScopeAll, scope)
}

func TestWiderScopeWinsOverNarrower(t *testing.T) {
	table := Table{
		RoleTechnician: {
			{Resource: ResourceReservation, Action: ActionView, Scope: ScopeOwnOnly},
			{Resource: ResourceReservation, Action: ActionManage, Scope: ScopeAll},
		},
	}
	r := NewResolver(table)

	scope, ok := r.ResolveScope(RoleTechnician, ResourceReservation, ActionView)
	require.True(t, ok)
	require.Equal(t, ScopeAll, scope)
}

func TestFilterByScope(t *testing.T) {
	r := NewResolver(DefaultTable())
	records := []scopedRecord{
		{owner: "alice", tenant: "t1"},
		{owner: "bob", tenant: "t1"},
		{owner: "carol", tenant: "t2"},
	}

	manager := &shared.Principal{ID: "staff", CompanyID: "facility", Role: string(RoleLabManager)}
	require.Len(t, Filter(r, manager, ResourceReservation, ActionView, records), 3)

	admin := &shared.Principal{ID: "dana", CompanyID: "t1", Role: string(RoleCompanyAdmin)}
	tenantView := Filter(r, admin, ResourceReservation, ActionView, records)
	require.Len(t, tenantView, 2)
	for _, rec := range tenantView {
		require.Equal(t, "t1", rec.TenantID())
	}

	alice := &shared.Principal{ID: "alice", CompanyID: "t1", Role: string(RoleMember)}
	ownView := Filter(r, alice, ResourceReservation, ActionView, records)
	require.Len(t, ownView, 1)
	require.Equal(t, "alice", ownView[0].OwnerID())

	visitor := &shared.Principal{ID: "guest", CompanyID: "", Role: string(RoleVisitor)}
	require.Empty(t, Filter(r, visitor, ResourceReservation, ActionView, records))

	require.Empty(t, Filter[scopedRecord](r, nil, ResourceReservation, ActionView, records))
}

func TestVisible(t *testing.T) {
	r := NewResolver(DefaultTable())
	rec := scopedRecord{owner: "alice", tenant: "t1"}

	require.True(t, r.Visible(&shared.Principal{ID: "alice", CompanyID: "t1", Role: string(RoleMember)}, ResourceReservation, ActionEdit, rec))
	require.False(t, r.Visible(&shared.Principal{ID: "bob", CompanyID: "t1", Role: string(RoleMember)}, ResourceReservation, ActionEdit, rec))
	require.True(t, r.Visible(&shared.Principal{ID: "dana", CompanyID: "t1", Role: string(RoleCompanyAdmin)}, ResourceReservation, ActionEdit, rec))
	require.False(t, r.Visible(&shared.Principal{ID: "erin", CompanyID: "t2", Role: string(RoleCompanyAdmin)}, ResourceReservation, ActionEdit, rec))
	require.False(t, r.Visible(nil, ResourceReservation, ActionEdit, rec))
}

func TestRoleCategories(t *testing.T) {
	require.Equal(t, CategoryFacility, RoleLabManager.Category())
	require.Equal(t, CategoryFacility, RoleTechnician.Category())
	require.Equal(t, CategoryTenant, RoleCompanyAdmin.Category())
	require.Equal(t, CategoryTenant, RoleMember.Category())
	require.Equal(t, CategoryExternal, RoleVisitor.Category())
}
