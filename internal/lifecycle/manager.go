package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/entitlement-engine/go-core/internal/audit"
	"github.com/entitlement-engine/go-core/internal/domain"
	"github.com/entitlement-engine/go-core/internal/metrics"
	"github.com/entitlement-engine/go-core/internal/policy"
	"github.com/entitlement-engine/go-core/pkg/types"
)

// Decision is the lifecycle state-machine outcome for a session or an
// explicit version change. It is returned alongside the resolved record so
// callers can observe which transition happened.
type Decision int

const (
	// DecisionNone means no record operation occurred (unauthenticated session)
	DecisionNone Decision = iota
	// DecisionReuse means the existing record was reused as-is
	DecisionReuse
	// DecisionCreate means a brand-new record was created, superseding any
	// current one (first activation, domain transfer, or version change)
	DecisionCreate
	// DecisionUpdate means the current record was updated in place
	DecisionUpdate
)

// String returns the decision name
func (d Decision) String() string {
	switch d {
	case DecisionReuse:
		return "reuse"
	case DecisionCreate:
		return "create"
	case DecisionUpdate:
		return "update"
	default:
		return "none"
	}
}

// Manager owns the access-record lifecycle for a session. Creation is the
// only path that assigns a default version; updates never cross a version
// boundary (a version change always creates a new record with a fresh
// activation timestamp).
type Manager struct {
	store    Store
	policies policy.Store
	logger   *zap.Logger
	metrics  *metrics.Metrics
	auditor  audit.Writer
	now      func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager's logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics enables lifecycle metrics
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithAuditWriter enables the lifecycle audit trail
func WithAuditWriter(w audit.Writer) Option {
	return func(m *Manager) {
		m.auditor = w
	}
}

// WithClock overrides the activation timestamp source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates an access lifecycle manager
func NewManager(store Store, policies policy.Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		policies: policies,
		logger:   zap.NewNop(),
		auditor:  audit.NopWriter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Decide classifies the session against the account's existing record:
// unauthenticated sessions perform no record operation, a missing record or
// a record bound to a different domain triggers creation, and a record in
// the effective domain is reused.
func Decide(id types.Identity, existing *types.AccessRecord) Decision {
	if !id.Authenticated() {
		return DecisionNone
	}
	if existing == nil || existing.DomainID != id.DomainID {
		return DecisionCreate
	}
	return DecisionReuse
}

// Resolve loads or establishes the access record for the effective identity.
// First activation and domain transfer require a non-empty effective domain
// and assign the domain's default version; an existing record in the same
// domain is reused without touching the store.
func (m *Manager) Resolve(ctx context.Context, id types.Identity) (*types.AccessRecord, Decision, error) {
	if !id.Authenticated() {
		return nil, DecisionNone, nil
	}

	existing, err := m.store.LoadCurrent(ctx, id.AccountID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		m.metrics.RecordPersistenceError()
		return nil, DecisionNone, fmt.Errorf("%w: load: %s", ErrPersistence, err)
	}

	decision := Decide(id, existing)
	if decision == DecisionReuse {
		m.metrics.RecordLifecycle("reuse")
		return existing, DecisionReuse, nil
	}

	if id.DomainID == "" {
		return nil, DecisionCreate, ErrMissingDomain
	}

	versionID, err := domain.NewResolver(m.policies.Snapshot()).DefaultVersionID(id.DomainID)
	if err != nil {
		return nil, DecisionCreate, err
	}

	record := &types.AccessRecord{
		ID:          uuid.NewString(),
		AccountID:   id.AccountID,
		DomainID:    id.DomainID,
		VersionID:   versionID,
		ActivatedAt: m.now(),
	}

	if err := m.store.Create(ctx, record); err != nil {
		m.metrics.RecordPersistenceError()
		m.writeAudit(audit.EventTypePersistenceError, record, err.Error())
		return nil, DecisionCreate, fmt.Errorf("%w: create: %s", ErrPersistence, err)
	}

	kind := "activated"
	eventType := audit.EventTypeActivated
	if existing != nil {
		kind = "transferred"
		eventType = audit.EventTypeDomainTransfer
	}
	m.metrics.RecordLifecycle(kind)
	m.writeAudit(eventType, record, "")

	m.logger.Info("Access record created",
		zap.String("account_id", record.AccountID),
		zap.String("domain_id", record.DomainID),
		zap.String("version_id", record.VersionID),
		zap.String("kind", kind),
	)

	return record, DecisionCreate, nil
}

// ChangeVersion applies an explicit change request to the current record.
// A different version id creates a brand-new record with a fresh activation
// timestamp rather than mutating the current one, preserving the change
// trail; the same version id updates the record in place.
func (m *Manager) ChangeVersion(ctx context.Context, current *types.AccessRecord, newValues types.AccessRecord) (*types.AccessRecord, Decision, error) {
	if current == nil {
		return nil, DecisionNone, ErrRecordNotFound
	}

	domainID := current.DomainID
	if newValues.DomainID != "" {
		domainID = newValues.DomainID
	}

	if newValues.VersionID != "" && newValues.VersionID != current.VersionID {
		record := &types.AccessRecord{
			ID:          uuid.NewString(),
			AccountID:   current.AccountID,
			DomainID:    domainID,
			VersionID:   newValues.VersionID,
			ActivatedAt: m.now(),
		}

		if err := m.store.Create(ctx, record); err != nil {
			m.metrics.RecordPersistenceError()
			m.writeAudit(audit.EventTypePersistenceError, record, err.Error())
			return nil, DecisionCreate, fmt.Errorf("%w: create: %s", ErrPersistence, err)
		}

		m.metrics.RecordLifecycle("version_changed")
		m.writeAudit(audit.EventTypeVersionChanged, record, "")

		m.logger.Info("Access record superseded by version change",
			zap.String("account_id", record.AccountID),
			zap.String("from_version", current.VersionID),
			zap.String("to_version", record.VersionID),
		)

		return record, DecisionCreate, nil
	}

	updated := *current
	updated.DomainID = domainID

	if err := m.store.Update(ctx, &updated); err != nil {
		m.metrics.RecordPersistenceError()
		m.writeAudit(audit.EventTypePersistenceError, &updated, err.Error())
		return nil, DecisionUpdate, fmt.Errorf("%w: update: %s", ErrPersistence, err)
	}

	m.metrics.RecordLifecycle("updated")
	return &updated, DecisionUpdate, nil
}

func (m *Manager) writeAudit(eventType audit.EventType, record *types.AccessRecord, detail string) {
	event := audit.NewEvent(eventType)
	event.AccountID = record.AccountID
	event.DomainID = record.DomainID
	event.VersionID = record.VersionID
	event.RecordID = record.ID
	event.Detail = detail

	if err := m.auditor.Write(event); err != nil {
		m.logger.Warn("Failed to write audit event", zap.Error(err))
	}
}
