// Package lifecycle manages the access-record lifecycle: first activation,
// domain transfer, and version change.
package lifecycle

import (
	"context"
	"errors"

	"github.com/entitlement-engine/go-core/pkg/types"
)

var (
	// ErrRecordNotFound is returned when an account has no current access record
	ErrRecordNotFound = errors.New("access record not found")

	// ErrMissingDomain is returned when a first activation is attempted
	// without an effective domain
	ErrMissingDomain = errors.New("cannot create a new access record without a domain")

	// ErrPersistence is returned when the store rejects a create or update.
	// The manager never retries; retry policy belongs to the caller.
	ErrPersistence = errors.New("access record persistence rejected")
)

// Store is the persistence port for access records. Implementations own
// durable storage and ordering between concurrent writes for the same
// account; conflicting writes surface as errors, which the manager wraps
// as ErrPersistence.
type Store interface {
	// LoadCurrent retrieves the account's current access record.
	// Returns ErrRecordNotFound when the account has none.
	LoadCurrent(ctx context.Context, accountID string) (*types.AccessRecord, error)

	// Create persists a brand-new access record, superseding any current one
	Create(ctx context.Context, record *types.AccessRecord) error

	// Update persists changes to the current access record in place
	Update(ctx context.Context, record *types.AccessRecord) error
}
