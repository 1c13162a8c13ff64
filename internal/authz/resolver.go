package authz

import (
	"github.com/labkeeper/labkeeper/internal/shared"
)

// Scoped is implemented by records that carry owner and tenant identifiers
// for scope-based filtering.
type Scoped interface {
	OwnerID() string
	TenantID() string
}

// Resolver answers authorization questions from an immutable permission
// table. It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	table Table
}

// NewResolver builds a Resolver over the given table. Pass DefaultTable()
// in production; tests may supply a reduced table.
func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// HasPermission reports whether the role may perform action on the resource
// kind. A "manage" entry on the resource kind subsumes every action. Absence
// of a matching entry always denies.
func (r *Resolver) HasPermission(role Role, resource, action string) bool {
	_, ok := r.ResolveScope(role, resource, action)
	return ok
}

// ResolveScope returns the scope granted to the role for the action on the
// resource kind. The second return value is false when no entry matches.
// When both an exact entry and a manage entry exist, the broader scope wins.
func (r *Resolver) ResolveScope(role Role, resource, action string) (Scope, bool) {
	entries, ok := r.table[role]
	if !ok {
		return "", false
	}
	var (
		found Scope
		match bool
	)
	for _, e := range entries {
		if e.Resource != resource {
			continue
		}
		if e.Action != action && e.Action != ActionManage {
			continue
		}
		if !match || wider(e.Scope, found) {
			found = e.Scope
		}
		match = true
	}
	return found, match
}

// wider reports whether a covers more records than b.
func wider(a, b Scope) bool {
	return rank(a) > rank(b)
}

func rank(s Scope) int {
	switch s {
	case ScopeAll:
		return 3
	case ScopeOwnTenant:
		return 2
	case ScopeOwnOnly:
		return 1
	}
	return 0
}

// Visible reports whether a single record is visible to the principal under
// the scope granted for the action.
func (r *Resolver) Visible(p *shared.Principal, resource, action string, rec Scoped) bool {
	if p == nil {
		return false
	}
	scope, ok := r.ResolveScope(Role(p.Role), resource, action)
	if !ok {
		return false
	}
	switch scope {
	case ScopeAll:
		return true
	case ScopeOwnTenant:
		return rec.TenantID() == p.CompanyID
	case ScopeOwnOnly:
		return rec.OwnerID() == p.ID
	}
	return false
}

// Filter returns the subset of items visible to the principal for the given
// action. With no matching permission the result is empty, never nil-checked
// as an error: default is deny.
func Filter[T Scoped](r *Resolver, p *shared.Principal, resource, action string, items []T) []T {
	out := make([]T, 0, len(items))
	if p == nil {
		return out
	}
	scope, ok := r.ResolveScope(Role(p.Role), resource, action)
	if !ok {
		return out
	}
	for _, it := range items {
		switch scope {
		case ScopeAll:
			out = append(out, it)
		case ScopeOwnTenant:
			if it.TenantID() == p.CompanyID {
				out = append(out, it)
			}
		case ScopeOwnOnly:
			if it.OwnerID() == p.ID {
				out = append(out, it)
			}
		}
	}
	return out
}
