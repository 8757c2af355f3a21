// Package domain resolves domains and versions against a policy document
// snapshot: default-version selection, signup eligibility, sibling networks,
// and tag-filtered version listings.
package domain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/entitlement-engine/go-core/pkg/types"
)

var (
	// ErrUnknownDomain is returned when a domain id has no entry in the document
	ErrUnknownDomain = errors.New("domain not found in policy document")

	// ErrNoVersions is returned when an active domain declares no versions.
	// This is a fatal configuration error: a domain cannot be activated
	// without a default version to assign.
	ErrNoVersions = errors.New("domain has no versions")
)

// Resolver answers domain and version queries over an immutable policy
// document snapshot. It performs no I/O and is safe for concurrent use.
type Resolver struct {
	doc *types.PolicyDocument
}

// NewResolver creates a resolver over a policy document snapshot
func NewResolver(doc *types.PolicyDocument) *Resolver {
	return &Resolver{doc: doc}
}

// DefaultVersionID returns the default version for a domain: the first
// element of the domain's ordered version sequence.
func (r *Resolver) DefaultVersionID(domainID string) (string, error) {
	d, ok := r.doc.Domains[domainID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDomain, domainID)
	}
	if len(d.VersionIDs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoVersions, domainID)
	}
	return d.VersionIDs[0], nil
}

// VersionsForDomain returns the domain's version records in declared order.
// Unknown domains and dangling version ids degrade to an empty result; this
// is a display path, not an access-decision path.
func (r *Resolver) VersionsForDomain(domainID string) []*types.Version {
	d, ok := r.doc.Domains[domainID]
	if !ok {
		return nil
	}

	versions := make([]*types.Version, 0, len(d.VersionIDs))
	for _, id := range d.VersionIDs {
		if v, ok := r.doc.Versions[id]; ok {
			versions = append(versions, v)
		}
	}
	return versions
}

// SignupDomains returns all domains flagged signup-eligible, unordered.
func (r *Resolver) SignupDomains() []*types.Domain {
	var domains []*types.Domain
	for _, d := range r.doc.Domains {
		if d.SignupEnabled {
			domains = append(domains, d)
		}
	}
	return domains
}

// DomainNetwork returns the sibling domains declared in a domain's network
// list as id+title references. A domain that declares no network, or an
// unknown domain, returns an empty result.
func (r *Resolver) DomainNetwork(domainID string) []types.DomainRef {
	d, ok := r.doc.Domains[domainID]
	if !ok {
		return nil
	}

	refs := make([]types.DomainRef, 0, len(d.Network))
	for _, id := range d.Network {
		sibling, ok := r.doc.Domains[id]
		if !ok {
			continue
		}
		refs = append(refs, types.DomainRef{ID: sibling.ID, Title: sibling.Title})
	}
	return refs
}

// TaggedVersions returns versions whose tag matches the filter, sorted
// ascending by the named field ("id" or "tag"; anything else sorts by id).
// Retained for compatibility with the legacy pre-domain data shape; the
// access-decision path never consults tags.
func (r *Resolver) TaggedVersions(filter TagFilter, sortKey string) []*types.Version {
	var versions []*types.Version
	for _, v := range r.doc.Versions {
		if filter.Matches(v.Tag) {
			versions = append(versions, v)
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		if sortKey == "tag" {
			return versions[i].Tag < versions[j].Tag
		}
		return versions[i].ID < versions[j].ID
	})
	return versions
}
