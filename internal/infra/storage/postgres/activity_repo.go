package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/infra/storage"
)

// ActivityRepo implements storage.ActivityRepository using PostgreSQL.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo creates a new PostgreSQL activity repository.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// RecordAccess adds hits accesses observed up to at. last_accessed_at only
// moves forward.
func (r *ActivityRepo) RecordAccess(ctx context.Context, domainName string, at time.Time, hits int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO domain_activity (domain, last_accessed_at, access_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain) DO UPDATE
		SET last_accessed_at = GREATEST(domain_activity.last_accessed_at, EXCLUDED.last_accessed_at),
		    access_count = domain_activity.access_count + EXCLUDED.access_count`,
		strings.ToLower(domainName), at, hits,
	)
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	return nil
}

// Get retrieves a domain's activity.
func (r *ActivityRepo) Get(ctx context.Context, domainName string) (*storage.DomainActivity, error) {
	var act storage.DomainActivity
	err := r.db.GetContext(ctx, &act, `
		SELECT domain, last_accessed_at, access_count
		FROM domain_activity
		WHERE domain = $1`,
		strings.ToLower(domainName),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &act, nil
}
