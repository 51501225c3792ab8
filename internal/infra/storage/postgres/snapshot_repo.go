package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/infra/storage"
)

// SnapshotRepo implements storage.SnapshotRepository using PostgreSQL.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new PostgreSQL snapshot repository.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Upsert creates or replaces the snapshot for its (domain, section).
func (r *SnapshotRepo) Upsert(ctx context.Context, snap *storage.SectionSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO section_snapshots (domain, section, data, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (domain, section) DO UPDATE
		SET data = EXCLUDED.data,
		    fetched_at = EXCLUDED.fetched_at,
		    expires_at = EXCLUDED.expires_at`,
		strings.ToLower(snap.Domain), string(snap.Section), snap.Data, snap.FetchedAt, snap.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// Get retrieves the snapshot for a (domain, section) pair.
func (r *SnapshotRepo) Get(ctx context.Context, domainName string, section domain.Section) (*storage.SectionSnapshot, error) {
	var snap storage.SectionSnapshot
	err := r.db.GetContext(ctx, &snap, `
		SELECT domain, section, data, fetched_at, expires_at
		FROM section_snapshots
		WHERE domain = $1 AND section = $2`,
		strings.ToLower(domainName), string(section),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snap, nil
}
