// Package authz implements the static role-and-tenant scoped permission
// resolver that gates every operation in the booking core.
package authz

// Role is a single, non-combinable role held by a principal.
type Role string

const (
	// RoleLabManager operates the facility and manages every resource kind.
	RoleLabManager Role = "lab_manager"
	// RoleTechnician supports facility operations across all tenants.
	RoleTechnician Role = "technician"
	// RoleCompanyAdmin administers reservations within one tenant company.
	RoleCompanyAdmin Role = "company_admin"
	// RoleMember is a regular tenant member booking for themselves.
	RoleMember Role = "member"
	// RoleVisitor is an external guest with read-only equipment access.
	RoleVisitor Role = "visitor"
)

// RoleCategory is a coarse grouping of roles.
type RoleCategory string

const (
	CategoryFacility RoleCategory = "facility"
	CategoryTenant   RoleCategory = "tenant"
	CategoryExternal RoleCategory = "external"
)

// Category returns the coarse category of the role.
func (r Role) Category() RoleCategory {
	switch r {
	case RoleLabManager, RoleTechnician:
		return CategoryFacility
	case RoleCompanyAdmin, RoleMember:
		return CategoryTenant
	default:
		return CategoryExternal
	}
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleLabManager, RoleTechnician, RoleCompanyAdmin, RoleMember, RoleVisitor:
		return true
	}
	return false
}

// Scope limits which records an action may touch.
type Scope string

const (
	// ScopeAll grants access to every record regardless of owner or tenant.
	ScopeAll Scope = "all"
	// ScopeOwnTenant grants access to records belonging to the principal's company.
	ScopeOwnTenant Scope = "own_tenant"
	// ScopeOwnOnly grants access to records owned by the principal.
	ScopeOwnOnly Scope = "own_only"
)

// Resource kinds known to the permission table.
const (
	ResourceEquipment   = "equipment"
	ResourceReservation = "reservation"
	ResourceUsageRecord = "usage_record"
	ResourceWaitlist    = "waitlist"
	ResourceSettings    = "settings"
)

// Actions known to the permission table. ActionManage subsumes every other
// action on the same resource kind.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionManage = "manage"
)

// PermissionEntry grants one action on one resource kind at a scope.
type PermissionEntry struct {
	Resource string
	Action   string
	Scope    Scope
}

// Table maps each role to its granted permissions. It is loaded once at
// process start and treated as immutable afterwards.
type Table map[Role][]PermissionEntry

// DefaultTable returns the built-in role permission table.
func DefaultTable() Table {
	return Table{
		RoleLabManager: {
			{Resource: ResourceEquipment, Action: ActionManage, Scope: ScopeAll},
			{Resource: ResourceReservation, Action: ActionManage, Scope: ScopeAll},
			{Resource: ResourceUsageRecord, Action: ActionManage, Scope: ScopeAll},
			{Resource: ResourceWaitlist, Action: ActionManage, Scope: ScopeAll},
			{Resource: ResourceSettings, Action: ActionManage, Scope: ScopeAll},
		},
		RoleTechnician: {
			{Resource: ResourceEquipment, Action: ActionView, Scope: ScopeAll},
			{Resource: ResourceEquipment, Action: ActionEdit, Scope: ScopeAll},
			{Resource: ResourceReservation, Action: ActionView, Scope: ScopeAll},
			{Resource: ResourceReservation, Action: ActionEdit, Scope: ScopeAll},
			{Resource: ResourceUsageRecord, Action: ActionView, Scope: ScopeAll},
			{Resource: ResourceWaitlist, Action: ActionView, Scope: ScopeAll},
			{Resource: ResourceSettings, Action: ActionView, Scope: ScopeAll},
		},
		RoleCompanyAdmin: {
			{Resource: ResourceEquipment, Action: ActionView, Scope: ScopeAll},
			{Resource: ResourceReservation, Action: ActionCreate, Scope: ScopeOwnTenant},
			{Resource: ResourceReservation, Action: ActionView, Scope: ScopeOwnTenant},
			{Resource: ResourceReservation, Action: ActionEdit, Scope: ScopeOwnTenant},
			{Resource: ResourceUsageRecord, Action: ActionView, Scope: ScopeOwnTenant},
			{Resource: ResourceWaitlist, Action: ActionCreate, Scope: ScopeOwnTenant},
			{Resource: ResourceWaitlist, Action: ActionView, Scope: ScopeOwnTenant},
			{Resource: ResourceWaitlist, Action: ActionEdit, Scope: ScopeOwnTenant},
		},
		RoleMember: {
			{Resource: ResourceEquipment, Action: ActionView, Scope: ScopeAll},
			{Resource: ResourceReservation, Action: ActionCreate, Scope: ScopeOwnOnly},
			{Resource: ResourceReservation, Action: ActionView, Scope: ScopeOwnOnly},
			{Resource: ResourceReservation, Action: ActionEdit, Scope: ScopeOwnOnly},
			{Resource: ResourceUsageRecord, Action: ActionView, Scope: ScopeOwnOnly},
			{Resource: ResourceWaitlist, Action: ActionCreate, Scope: ScopeOwnOnly},
			{Resource: ResourceWaitlist, Action: ActionView, Scope: ScopeOwnOnly},
			{Resource: ResourceWaitlist, Action: ActionEdit, Scope: ScopeOwnOnly},
		},
		RoleVisitor: {
			{Resource: ResourceEquipment, Action: ActionView, Scope: ScopeAll},
		},
	}
}
