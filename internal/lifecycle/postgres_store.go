package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/entitlement-engine/go-core/pkg/types"
)

// PostgresStore implements Store using PostgreSQL. An account's history is
// kept as an append-only series of records; exactly one row per account has
// superseded_at IS NULL and is the current record. Create supersedes the
// current row and inserts the new one in a single transaction, so two
// concurrent creates for the same account cannot both land as current: the
// partial unique index rejects the loser, which surfaces as a conflict.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed access record store
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("database connection is nil")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// LoadCurrent retrieves the account's current access record
func (s *PostgresStore) LoadCurrent(ctx context.Context, accountID string) (*types.AccessRecord, error) {
	query := `
		SELECT id, account_id, domain_id, version_id, activated_at
		FROM access_records
		WHERE account_id = $1 AND superseded_at IS NULL
	`

	record := &types.AccessRecord{}
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(
		&record.ID, &record.AccountID, &record.DomainID,
		&record.VersionID, &record.ActivatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("load access record: %w", err)
	}

	return record, nil
}

// Create persists a brand-new access record, superseding any current one
func (s *PostgresStore) Create(ctx context.Context, record *types.AccessRecord) error {
	if record == nil {
		return errors.New("access record is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	supersede := `
		UPDATE access_records
		SET superseded_at = now()
		WHERE account_id = $1 AND superseded_at IS NULL
	`
	if _, err := tx.ExecContext(ctx, supersede, record.AccountID); err != nil {
		return fmt.Errorf("supersede current record: %w", err)
	}

	insert := `
		INSERT INTO access_records (id, account_id, domain_id, version_id, activated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.ExecContext(ctx, insert,
		record.ID, record.AccountID, record.DomainID,
		record.VersionID, record.ActivatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("concurrent activation for account %s: %w", record.AccountID, err)
		}
		return fmt.Errorf("insert access record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Update persists changes to the current access record in place
func (s *PostgresStore) Update(ctx context.Context, record *types.AccessRecord) error {
	if record == nil {
		return errors.New("access record is nil")
	}

	query := `
		UPDATE access_records
		SET domain_id = $1, version_id = $2
		WHERE id = $3 AND account_id = $4 AND superseded_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query,
		record.DomainID, record.VersionID, record.ID, record.AccountID,
	)
	if err != nil {
		return fmt.Errorf("update access record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// isUniqueViolation checks for PostgreSQL error code 23505 (unique_violation)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
