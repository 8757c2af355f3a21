// Package types provides shared types for the entitlement engine
package types

import (
	"time"
)

// PolicyDocument is the decoded entitlement policy tree: domains, versions,
// roles, and the feature/role access matrix. It is loaded once and shared
// read-only across concurrent sessions; nothing mutates it after construction.
type PolicyDocument struct {
	Domains  map[string]*Domain  `json:"domains" yaml:"domains"`
	Versions map[string]*Version `json:"versions" yaml:"versions"`
	Roles    map[string]*Role    `json:"roles" yaml:"roles"`
	Access   AccessMatrix        `json:"access" yaml:"access"`
	Settings Settings            `json:"settings" yaml:"settings"`
}

// AccessMatrix maps featureID -> roleID -> granted permission ids.
type AccessMatrix map[string]map[string][]string

// Permissions returns the permission ids granted to a role for a feature.
// Missing entries yield nil.
func (m AccessMatrix) Permissions(featureID, roleID string) []string {
	byRole, ok := m[featureID]
	if !ok {
		return nil
	}
	return byRole[roleID]
}

// RolesForFeature returns the role ids that have any entry for a feature.
func (m AccessMatrix) RolesForFeature(featureID string) []string {
	byRole, ok := m[featureID]
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(byRole))
	for roleID := range byRole {
		roles = append(roles, roleID)
	}
	return roles
}

// Settings holds document-wide application settings.
type Settings struct {
	// PermissionAll is the wildcard sentinel: a role granted this value for a
	// feature holds every permission on that feature.
	PermissionAll string `json:"permissionAll" yaml:"permissionAll"`
}

// Domain is a tenant scope owning an ordered set of versions. The order is
// semantically meaningful: index 0 is the domain's default version.
type Domain struct {
	ID            string   `json:"id" yaml:"id"`
	Title         string   `json:"title" yaml:"title"`
	VersionIDs    []string `json:"versions" yaml:"versions"`
	Network       []string `json:"network,omitempty" yaml:"network,omitempty"`
	SignupEnabled bool     `json:"signupEnabled,omitempty" yaml:"signupEnabled,omitempty"`
}

// DomainRef is a lightweight id+title projection of a domain, used when
// rendering a domain's sibling network.
type DomainRef struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Version is a named bundle of features, modules, and assignable roles; the
// unit an account is actually entitled to.
type Version struct {
	ID       string   `json:"id" yaml:"id"`
	Tag      string   `json:"tag" yaml:"tag"`
	Features []string `json:"features,omitempty" yaml:"features,omitempty"`
	Modules  []string `json:"modules,omitempty" yaml:"modules,omitempty"`
	Roles    []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// HasFeature checks if the version includes a feature
func (v *Version) HasFeature(featureID string) bool {
	for _, f := range v.Features {
		if f == featureID {
			return true
		}
	}
	return false
}

// HasModule checks if the version includes a module
func (v *Version) HasModule(moduleID string) bool {
	for _, m := range v.Modules {
		if m == moduleID {
			return true
		}
	}
	return false
}

// HasRole checks if the version offers a role for assignment
func (v *Version) HasRole(roleID string) bool {
	for _, r := range v.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Role is an assignable role within a version.
type Role struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// AccessRecord is the durable binding of an account to a domain, version, and
// activation time. A new record supersedes the old one whenever the effective
// version changes; records are never patched across a version boundary, which
// preserves a change trail.
type AccessRecord struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	DomainID    string    `json:"domainId"`
	VersionID   string    `json:"versionId"`
	ActivatedAt time.Time `json:"activatedAt"`
}

// Identity is the effective session identity: the domain the session operates
// in, the (possibly absent) authenticated account, and its assigned roles.
// Derived per session, never persisted.
type Identity struct {
	DomainID  string   `json:"domainId"`
	AccountID string   `json:"accountId,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// Authenticated reports whether the identity carries an account id.
func (i Identity) Authenticated() bool {
	return i.AccountID != ""
}

// HasRole checks if the identity holds a specific role
func (i Identity) HasRole(roleID string) bool {
	for _, r := range i.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// IdentityOverride substitutes alternate identity fields for the caller's,
// typically for debugging or impersonation. Each present field takes
// precedence independently; absent fields fall back to the caller value.
type IdentityOverride struct {
	DomainID  *string  `json:"domainId,omitempty" yaml:"domainId,omitempty"`
	AccountID *string  `json:"accountId,omitempty" yaml:"accountId,omitempty"`
	Roles     []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}
