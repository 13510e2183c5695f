package repository

import (
	"context"
	"errors"
	"time"

	"membersync/internal/orgdomain/domain"
)

// ErrOrganizationNotFound is returned when a domain mutation targets an
// organization that is not mirrored locally. Callers treat it as a skip,
// not a failure: domains are only mirrored for known organizations.
var ErrOrganizationNotFound = errors.New("organization not found")

// Repository defines transactional persistence for organization domains.
//
// Every method that can change which domain is primary also updates
// organizations.email_domain inside the same transaction, so no concurrent
// reader can durably observe the two disagreeing. Methods serialize on a
// SELECT ... FOR UPDATE row lock on the parent organization, which is the
// mutual-exclusion scope for one organization's domain set.
type Repository interface {
	// ListByOrg returns all domain rows for the organization, oldest first.
	ListByOrg(ctx context.Context, orgID string) ([]*domain.OrgDomain, error)
	// ReplaceAll makes the IdP-sourced domain set for the organization equal
	// to domains (ordered as received from the IdP; the first verified entry
	// becomes primary). Manual rows are preserved even when unlisted.
	// Returns ErrOrganizationNotFound when the organization is unknown.
	ReplaceAll(ctx context.Context, orgID string, domains []domain.OrgDomain) error
	// Upsert applies a single-domain create/update/verify event. eventAt is
	// the event timestamp; rows already newer than it are left untouched.
	// A verified domain is promoted to primary only if the organization has
	// no primary yet. Returns ErrOrganizationNotFound when the organization
	// is unknown; the bool reports whether anything was written.
	Upsert(ctx context.Context, d domain.OrgDomain, eventAt time.Time) (bool, error)
	// Delete removes an IdP-sourced domain row. If the deleted row was
	// primary, the oldest remaining verified domain is promoted in its place
	// (or email_domain is cleared when none remain). Manual rows are never
	// deleted. Returns ErrOrganizationNotFound when the organization is
	// unknown; the bool reports whether a row was deleted.
	Delete(ctx context.Context, orgID, domainName string) (bool, error)
}
