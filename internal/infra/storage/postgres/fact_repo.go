package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vietddude/domainwatch/internal/core/domain"
	"github.com/vietddude/domainwatch/internal/infra/storage"
)

// FactRepo implements storage.ProviderFactRepository using PostgreSQL.
type FactRepo struct {
	db *DB
}

// NewFactRepo creates a new PostgreSQL provider fact repository.
func NewFactRepo(db *DB) *FactRepo {
	return &FactRepo{db: db}
}

// UpsertAll replaces the facts for the given categories of one domain in a
// single transaction.
func (r *FactRepo) UpsertAll(ctx context.Context, facts []storage.ProviderFact) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, f := range facts {
		var id, name, providerDomain sql.NullString
		if f.Provider != nil {
			id = sql.NullString{String: f.Provider.ID, Valid: true}
			name = sql.NullString{String: f.Provider.Name, Valid: true}
			providerDomain = sql.NullString{String: f.Provider.Domain, Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO provider_facts (domain, category, provider_id, provider_name, provider_domain, classified_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (domain, category) DO UPDATE
			SET provider_id = EXCLUDED.provider_id,
			    provider_name = EXCLUDED.provider_name,
			    provider_domain = EXCLUDED.provider_domain,
			    classified_at = EXCLUDED.classified_at`,
			strings.ToLower(f.Domain), string(f.Category), id, name, providerDomain, f.ClassifiedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert fact for %s/%s: %w", f.Domain, f.Category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit facts: %w", err)
	}
	return nil
}

// GetAll retrieves every stored fact for a domain.
func (r *FactRepo) GetAll(ctx context.Context, domainName string) ([]storage.ProviderFact, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT domain, category, provider_id, provider_name, provider_domain, classified_at
		FROM provider_facts
		WHERE domain = $1
		ORDER BY category`,
		strings.ToLower(domainName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get facts: %w", err)
	}
	defer rows.Close()

	var facts []storage.ProviderFact
	for rows.Next() {
		var (
			f                        storage.ProviderFact
			category                 string
			id, name, providerDomain sql.NullString
		)
		if err := rows.Scan(&f.Domain, &category, &id, &name, &providerDomain, &f.ClassifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		f.Category = domain.Category(category)
		if id.Valid {
			f.Provider = &domain.ProviderRef{
				ID:     id.String,
				Name:   name.String,
				Domain: providerDomain.String,
			}
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
