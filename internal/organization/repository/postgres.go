package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"membersync/internal/organization/domain"
)

// PostgresRepository implements Repository against the organizations table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an organization repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

// GetByID returns the organization for orgID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, orgID string) (*domain.Org, error) {
	var org domain.Org
	var emailDomain sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT workos_organization_id, name, email_domain, created_at, updated_at
		   FROM organizations
		  WHERE workos_organization_id = $1`, orgID,
	).Scan(&org.ID, &org.Name, &emailDomain, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if emailDomain.Valid {
		org.EmailDomain = &emailDomain.String
	}
	return &org, nil
}

// ListIDs returns the IDs of all locally-known organizations.
func (r *PostgresRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT workos_organization_id FROM organizations ORDER BY workos_organization_id`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
