package repository

import (
	"context"
	"time"

	"membersync/internal/membership/domain"
)

// Repository defines persistence for the membership mirror. All writes are
// idempotent: webhook redelivery and the reconciliation sweep reuse the same
// operations.
type Repository interface {
	// GetByUserAndOrg returns the mirrored membership for the given user and org, or nil if not found.
	GetByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
	// ListByOrg returns all mirrored memberships for the given org.
	ListByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error)
	// Upsert inserts or updates the mirror row keyed by (UserID, OrgID).
	// A row whose updated_at is newer than m.UpdatedAt is left untouched, so a
	// replayed stale event cannot overwrite fresher state. Returns true when a
	// row was written.
	Upsert(ctx context.Context, m *domain.Membership) (bool, error)
	// DeleteByUserAndOrg removes the mirror row. Missing rows are a no-op;
	// returns true when a row was deleted.
	DeleteByUserAndOrg(ctx context.Context, userID, orgID string) (bool, error)
	// UpdateUserFields updates email/first/last on every mirrored row for the
	// user, across organizations. Returns the number of rows touched.
	UpdateUserFields(ctx context.Context, userID, email, firstName, lastName string, at time.Time) (int64, error)
	// DeleteAllForUser removes every mirrored row for the user. Returns the
	// number of rows deleted.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}
