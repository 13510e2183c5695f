// Package service implements the domain synchronizer: full organization
// domain syncs and granular single-domain events, both converging to the
// single verified primary invariant.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"membersync/internal/orgdomain/domain"
	"membersync/internal/orgdomain/repository"
	"membersync/internal/workos"
)

// Repo is the minimal domain repository needed by the synchronizer.
type Repo interface {
	ReplaceAll(ctx context.Context, orgID string, domains []domain.OrgDomain) error
	Upsert(ctx context.Context, d domain.OrgDomain, eventAt time.Time) (bool, error)
	Delete(ctx context.Context, orgID, domainName string) (bool, error)
}

// SyncService applies organization.* and organization_domain.* events.
// Domains are only mirrored for organizations already known locally; events
// for unknown organizations are skipped and acknowledged.
type SyncService struct {
	repo   Repo
	logger *zap.Logger
}

// NewSyncService returns a domain synchronizer with the given dependencies.
func NewSyncService(repo Repo, logger *zap.Logger) *SyncService {
	return &SyncService{repo: repo, logger: logger}
}

// SyncOrganization applies the organization's complete current domain list
// (organization.created/.updated). The first verified domain in IdP order
// becomes primary; IdP-sourced rows the list omits are dropped; manual rows
// are preserved. Returns true when the sync ran (false for unknown orgs).
func (s *SyncService) SyncOrganization(ctx context.Context, org workos.Organization) (bool, error) {
	domains := make([]domain.OrgDomain, 0, len(org.Domains))
	for _, d := range org.Domains {
		domains = append(domains, domain.OrgDomain{
			Domain:   d.Domain,
			OrgID:    org.ID,
			Verified: d.State == domain.StateVerified,
			Source:   domain.SourceIdP,
		})
	}

	err := s.repo.ReplaceAll(ctx, org.ID, domains)
	if errors.Is(err, repository.ErrOrganizationNotFound) {
		s.logger.Debug("organization not mirrored; domain sync skipped",
			zap.String("organization_id", org.ID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClearOrganization drops the IdP-sourced domain set (organization.deleted).
// The organization row itself is owned elsewhere and not touched beyond
// clearing email_domain; manual domain rows survive.
func (s *SyncService) ClearOrganization(ctx context.Context, orgID string) (bool, error) {
	err := s.repo.ReplaceAll(ctx, orgID, nil)
	if errors.Is(err, repository.ErrOrganizationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpsertDomain applies a granular organization_domain.created/updated/verified
// event. eventAt is the delivery's created_at; stale replays cannot overwrite
// newer rows.
func (s *SyncService) UpsertDomain(ctx context.Context, d workos.OrganizationDomain, verified bool, eventAt time.Time) (bool, error) {
	changed, err := s.repo.Upsert(ctx, domain.OrgDomain{
		Domain:   d.Domain,
		OrgID:    d.OrganizationID,
		Verified: verified,
		Source:   domain.SourceIdP,
	}, eventAt)
	if errors.Is(err, repository.ErrOrganizationNotFound) {
		s.logger.Debug("organization not mirrored; domain event skipped",
			zap.String("organization_id", d.OrganizationID),
			zap.String("domain", d.Domain))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return changed, nil
}

// DeleteDomain applies organization_domain.deleted/.verification_failed.
// Deleting the primary promotes the oldest remaining verified domain.
func (s *SyncService) DeleteDomain(ctx context.Context, d workos.OrganizationDomain) (bool, error) {
	deleted, err := s.repo.Delete(ctx, d.OrganizationID, d.Domain)
	if errors.Is(err, repository.ErrOrganizationNotFound) {
		s.logger.Debug("organization not mirrored; domain delete skipped",
			zap.String("organization_id", d.OrganizationID),
			zap.String("domain", d.Domain))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return deleted, nil
}
