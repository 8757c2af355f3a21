package policy

import (
	"errors"
	"fmt"

	"github.com/entitlement-engine/go-core/pkg/types"
)

// ErrInvalidDocument is returned when a policy document is structurally invalid
var ErrInvalidDocument = errors.New("invalid policy document")

// Validate checks the structural integrity of a policy document: required
// top-level maps and domain version lists that resolve to declared versions.
// Per-path holes elsewhere (dangling role ids, sparse access entries) are
// tolerated and degrade to empty reads at lookup time.
func Validate(doc *types.PolicyDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.Domains == nil {
		return fmt.Errorf("%w: missing domains", ErrInvalidDocument)
	}
	if doc.Versions == nil {
		return fmt.Errorf("%w: missing versions", ErrInvalidDocument)
	}

	for domainID, d := range doc.Domains {
		if d == nil {
			return fmt.Errorf("%w: domain %s is empty", ErrInvalidDocument, domainID)
		}
		for _, versionID := range d.VersionIDs {
			if _, ok := doc.Versions[versionID]; !ok {
				return fmt.Errorf("%w: domain %s references unknown version %s",
					ErrInvalidDocument, domainID, versionID)
			}
		}
		for _, siblingID := range d.Network {
			if _, ok := doc.Domains[siblingID]; !ok {
				return fmt.Errorf("%w: domain %s network references unknown domain %s",
					ErrInvalidDocument, domainID, siblingID)
			}
		}
	}

	return nil
}
