package lifecycle

import (
	"context"
	"sync"

	"github.com/entitlement-engine/go-core/pkg/types"
)

// MemoryStore implements Store with in-process storage. It keeps one current
// record per account; Create supersedes the previous record. Suitable for
// tests and single-process deployments.
type MemoryStore struct {
	records map[string]*types.AccessRecord
	mu      sync.RWMutex
}

// NewMemoryStore creates an in-memory access record store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*types.AccessRecord)}
}

// LoadCurrent retrieves the account's current access record
func (s *MemoryStore) LoadCurrent(ctx context.Context, accountID string) (*types.AccessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[accountID]
	if !ok {
		return nil, ErrRecordNotFound
	}

	// Copy so callers cannot mutate the stored record
	out := *record
	return &out, nil
}

// Create persists a brand-new access record, superseding any current one
func (s *MemoryStore) Create(ctx context.Context, record *types.AccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	s.records[record.AccountID] = &stored
	return nil
}

// Update persists changes to the current access record in place
func (s *MemoryStore) Update(ctx context.Context, record *types.AccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[record.AccountID]
	if !ok || current.ID != record.ID {
		return ErrRecordNotFound
	}

	stored := *record
	s.records[record.AccountID] = &stored
	return nil
}
