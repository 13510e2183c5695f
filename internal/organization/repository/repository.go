package repository

import (
	"context"

	"membersync/internal/organization/domain"
)

// Repository defines the read surface the sync engine needs on organizations.
// Writes to organizations.email_domain happen inside the orgdomain repository's
// transactions so they commit atomically with the domain rows.
type Repository interface {
	// GetByID returns the organization, or nil if not found.
	GetByID(ctx context.Context, orgID string) (*domain.Org, error)
	// ListIDs returns the IDs of all locally-known organizations, for the
	// reconciliation sweep.
	ListIDs(ctx context.Context) ([]string, error)
}
