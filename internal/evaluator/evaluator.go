// Package evaluator answers feature and permission access queries for a
// session against its resolved version.
package evaluator

import (
	"sort"

	"github.com/entitlement-engine/go-core/pkg/types"
)

// Evaluator evaluates access for one session: an immutable policy document
// snapshot, the session's access record (nil when unauthenticated), and the
// account's assigned roles. All operations are pure in-memory reads; repeated
// checks are cheap dictionary lookups and need no memoization.
type Evaluator struct {
	doc    *types.PolicyDocument
	record *types.AccessRecord
	roles  []string
}

// New creates an evaluator bound to a session. record may be nil for an
// unauthenticated session, in which case every access check fails closed.
func New(doc *types.PolicyDocument, record *types.AccessRecord, roles []string) *Evaluator {
	return &Evaluator{doc: doc, record: record, roles: roles}
}

// Bound reports whether an access record is bound to the session
func (e *Evaluator) Bound() bool {
	return e.record != nil
}

// Version returns the session's current version. Returns an empty version
// when no record is bound or the version id does not resolve; read-model
// convenience, never an error.
func (e *Evaluator) Version() *types.Version {
	if e.record == nil {
		return &types.Version{}
	}
	return e.VersionByID(e.record.VersionID)
}

// VersionByID returns a version by id, or an empty version when absent
func (e *Evaluator) VersionByID(id string) *types.Version {
	if v, ok := e.doc.Versions[id]; ok {
		return v
	}
	return &types.Version{}
}

// DomainVersions returns the versions of the session's domain in declared
// order; empty when no record is bound.
func (e *Evaluator) DomainVersions() []*types.Version {
	if e.record == nil {
		return nil
	}
	d, ok := e.doc.Domains[e.record.DomainID]
	if !ok {
		return nil
	}

	versions := make([]*types.Version, 0, len(d.VersionIDs))
	for _, id := range d.VersionIDs {
		if v, ok := e.doc.Versions[id]; ok {
			versions = append(versions, v)
		}
	}
	return versions
}

// RolesForVersion returns all role records available for assignment within
// the session's version, sorted ascending by title.
func (e *Evaluator) RolesForVersion() []*types.Role {
	version := e.Version()

	roles := make([]*types.Role, 0, len(version.Roles))
	for _, id := range version.Roles {
		if r, ok := e.doc.Roles[id]; ok {
			roles = append(roles, r)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Title < roles[j].Title })
	return roles
}

// RolesByIDs returns the subset of the version's roles matching ids, sorted
// ascending by id. Used to render the roles currently assigned to a user.
func (e *Evaluator) RolesByIDs(ids []string) []*types.Role {
	version := e.Version()

	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}

	var roles []*types.Role
	for _, id := range version.Roles {
		if _, ok := requested[id]; !ok {
			continue
		}
		if r, ok := e.doc.Roles[id]; ok {
			roles = append(roles, r)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles
}

// DomainModules returns the module ids of the session's version
func (e *Evaluator) DomainModules() []string {
	return e.Version().Modules
}

// ModuleIsActive checks if a module is present in the session's version
func (e *Evaluator) ModuleIsActive(moduleID string) bool {
	return e.Version().HasModule(moduleID)
}

// CanAccess reports whether the session may use a feature at all: the
// feature must be present in the current version and at least one of the
// account's roles must hold a non-empty permission entry for it. Fails
// closed for unauthenticated sessions.
func (e *Evaluator) CanAccess(featureID string) bool {
	if !e.featureGate(featureID) {
		return false
	}

	for _, roleID := range e.roles {
		if len(e.doc.Access.Permissions(featureID, roleID)) > 0 {
			return true
		}
	}
	return false
}

// CanAccessPermission reports whether the session may perform a specific
// permission within a feature. A role whose entry contains the document-wide
// wildcard sentinel holds every permission for the feature. Short-circuits on
// the first satisfying role; the result is independent of role order.
func (e *Evaluator) CanAccessPermission(featureID, permissionID string) bool {
	if !e.featureGate(featureID) {
		return false
	}

	wildcard := e.doc.Settings.PermissionAll
	for _, roleID := range e.roles {
		for _, granted := range e.doc.Access.Permissions(featureID, roleID) {
			if granted == permissionID || (wildcard != "" && granted == wildcard) {
				return true
			}
		}
	}
	return false
}

// UserFeaturePermissions returns the deduplicated union of permission ids
// granted to any of roleIDs for a feature, sorted ascending.
func (e *Evaluator) UserFeaturePermissions(featureID string, roleIDs []string) []string {
	seen := make(map[string]struct{})
	for _, roleID := range roleIDs {
		for _, granted := range e.doc.Access.Permissions(featureID, roleID) {
			seen[granted] = struct{}{}
		}
	}

	permissions := make([]string, 0, len(seen))
	for p := range seen {
		permissions = append(permissions, p)
	}
	sort.Strings(permissions)
	return permissions
}

// featureGate applies the two preconditions shared by every access check:
// a bound record and the feature present in the current version. A feature
// absent from the version is inaccessible regardless of role.
func (e *Evaluator) featureGate(featureID string) bool {
	if e.record == nil {
		return false
	}
	version, ok := e.doc.Versions[e.record.VersionID]
	if !ok {
		return false
	}
	return version.HasFeature(featureID)
}
