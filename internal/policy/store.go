// Package policy provides policy document storage, loading, and hot-reload
package policy

import (
	"sync"

	"github.com/entitlement-engine/go-core/pkg/types"
)

// Store holds the current policy document snapshot.
//
// Snapshots are immutable: readers keep using the snapshot they obtained even
// while a reload swaps in a new one, so resolver and evaluator instances never
// observe a half-updated document.
type Store interface {
	// Snapshot returns the current immutable policy document
	Snapshot() *types.PolicyDocument

	// Replace validates a document and atomically swaps it in
	Replace(doc *types.PolicyDocument) error
}

// MemoryStore implements an in-memory policy document store
type MemoryStore struct {
	doc *types.PolicyDocument
	mu  sync.RWMutex
}

// NewMemoryStore creates a store seeded with an empty document
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: emptyDocument()}
}

// Snapshot returns the current immutable policy document
func (s *MemoryStore) Snapshot() *types.PolicyDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.doc
}

// Replace validates a document and atomically swaps it in
func (s *MemoryStore) Replace(doc *types.PolicyDocument) error {
	if err := Validate(doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc
	return nil
}

func emptyDocument() *types.PolicyDocument {
	return &types.PolicyDocument{
		Domains:  map[string]*types.Domain{},
		Versions: map[string]*types.Version{},
		Roles:    map[string]*types.Role{},
		Access:   types.AccessMatrix{},
	}
}
