package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"membersync/internal/membership/domain"
)

// PostgresRepository implements Repository against organization_memberships.
// Rows are single-row upserts/deletes with no cross-row invariant, so no
// explicit locking is needed; the (user, org) unique constraint serializes
// concurrent writers per row.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a membership repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

// GetByUserAndOrg returns the mirrored membership, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error) {
	var m domain.Membership
	err := r.db.QueryRowContext(ctx,
		`SELECT workos_user_id, workos_organization_id, workos_membership_id,
		        email, first_name, last_name, synced_at, updated_at
		   FROM organization_memberships
		  WHERE workos_user_id = $1 AND workos_organization_id = $2`,
		userID, orgID,
	).Scan(&m.UserID, &m.OrgID, &m.MembershipID, &m.Email, &m.FirstName, &m.LastName, &m.SyncedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

// ListByOrg returns all mirrored memberships for the given org.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT workos_user_id, workos_organization_id, workos_membership_id,
		        email, first_name, last_name, synced_at, updated_at
		   FROM organization_memberships
		  WHERE workos_organization_id = $1
		  ORDER BY workos_user_id`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.UserID, &m.OrgID, &m.MembershipID, &m.Email, &m.FirstName, &m.LastName, &m.SyncedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Upsert inserts or updates the mirror row keyed by (UserID, OrgID).
// The conditional update keeps a replayed stale event from overwriting a
// newer row: the write applies only when the stored updated_at is not newer
// than the incoming one.
func (r *PostgresRepository) Upsert(ctx context.Context, m *domain.Membership) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO organization_memberships
		        (workos_user_id, workos_organization_id, workos_membership_id,
		         email, first_name, last_name, synced_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (workos_user_id, workos_organization_id) DO UPDATE SET
		        workos_membership_id = EXCLUDED.workos_membership_id,
		        email      = EXCLUDED.email,
		        first_name = EXCLUDED.first_name,
		        last_name  = EXCLUDED.last_name,
		        synced_at  = EXCLUDED.synced_at,
		        updated_at = EXCLUDED.updated_at
		 WHERE organization_memberships.updated_at <= EXCLUDED.updated_at`,
		m.UserID, m.OrgID, m.MembershipID, m.Email, m.FirstName, m.LastName, m.SyncedAt, m.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("upsert membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByUserAndOrg removes the mirror row. Missing rows are a no-op.
func (r *PostgresRepository) DeleteByUserAndOrg(ctx context.Context, userID, orgID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM organization_memberships
		  WHERE workos_user_id = $1 AND workos_organization_id = $2`,
		userID, orgID,
	)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateUserFields updates identity fields on every mirrored row for the user.
// User update events are not scoped to an organization, but the mirror is
// keyed per membership, so the update fans out across all rows.
func (r *PostgresRepository) UpdateUserFields(ctx context.Context, userID, email, firstName, lastName string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE organization_memberships
		    SET email = $2, first_name = $3, last_name = $4, updated_at = $5
		  WHERE workos_user_id = $1 AND updated_at <= $5`,
		userID, email, firstName, lastName, at,
	)
	if err != nil {
		return 0, fmt.Errorf("update user fields: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAllForUser removes every mirrored row for the user (user deletion cascade).
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM organization_memberships WHERE workos_user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete user memberships: %w", err)
	}
	return res.RowsAffected()
}
