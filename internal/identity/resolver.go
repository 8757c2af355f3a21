// Package identity merges caller-supplied identity with an optional
// impersonation override into the effective session identity.
package identity

import (
	"github.com/entitlement-engine/go-core/pkg/types"
)

// Resolve produces the effective identity for a session. Each override field
// that is present takes precedence over the corresponding caller value; fields
// absent from the override fall back to the caller's. A nil override is a pure
// pass-through.
//
// No validation against the policy document happens here; unresolved ids are
// validated downstream.
func Resolve(caller types.Identity, override *types.IdentityOverride) types.Identity {
	if override == nil {
		return caller
	}

	resolved := caller
	if override.DomainID != nil {
		resolved.DomainID = *override.DomainID
	}
	if override.AccountID != nil {
		resolved.AccountID = *override.AccountID
	}
	if override.Roles != nil {
		resolved.Roles = override.Roles
	}
	return resolved
}
