// Package service implements the membership synchronizer: it applies
// membership and user events from the IdP to the local mirror.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"membersync/internal/membership/domain"
	"membersync/internal/workos"
)

// Repo is the minimal membership repository needed by the synchronizer.
type Repo interface {
	Upsert(ctx context.Context, m *domain.Membership) (bool, error)
	DeleteByUserAndOrg(ctx context.Context, userID, orgID string) (bool, error)
	UpdateUserFields(ctx context.Context, userID, email, firstName, lastName string, at time.Time) (int64, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

// UserFetcher is the read-through capability for membership events whose
// payload lacks user details. Implementations must honor ctx cancellation
// and carry their own timeout.
type UserFetcher interface {
	GetUser(ctx context.Context, id string) (*workos.User, error)
}

// SyncService applies membership create/update/delete and user update/delete
// events. Every operation is idempotent; redelivery and reconciliation reuse
// the same paths.
type SyncService struct {
	repo   Repo
	users  UserFetcher
	logger *zap.Logger
	nowF   func() time.Time
}

// NewSyncService returns a membership synchronizer with the given dependencies.
func NewSyncService(repo Repo, users UserFetcher, logger *zap.Logger) *SyncService {
	return &SyncService{
		repo:   repo,
		users:  users,
		logger: logger,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// UpsertMembership mirrors an active membership. user may be nil, in which
// case details are fetched from the IdP. Non-active memberships are not
// mirrored and are a no-op. A failed user fetch drops the event (logged, not
// escalated): one missing user must not block other deliveries, and the
// reconciliation job heals the resulting drift.
// Returns true when the mirror changed.
func (s *SyncService) UpsertMembership(ctx context.Context, m workos.OrganizationMembership, user *workos.User) (bool, error) {
	if domain.Status(m.Status) != domain.StatusActive {
		s.logger.Debug("membership not active; not mirrored",
			zap.String("membership_id", m.ID),
			zap.String("status", m.Status))
		return false, nil
	}

	if user == nil {
		fetched, err := s.users.GetUser(ctx, m.UserID)
		if err != nil {
			s.logger.Warn("user fetch failed; membership event dropped",
				zap.String("user_id", m.UserID),
				zap.String("organization_id", m.OrganizationID),
				zap.Error(err))
			return false, nil
		}
		user = fetched
	}

	now := s.nowF()
	updatedAt := m.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	written, err := s.repo.Upsert(ctx, &domain.Membership{
		UserID:       m.UserID,
		OrgID:        m.OrganizationID,
		MembershipID: m.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		SyncedAt:     now,
		UpdatedAt:    updatedAt,
	})
	if err != nil {
		return false, err
	}
	if !written {
		s.logger.Debug("membership upsert superseded by newer row",
			zap.String("user_id", m.UserID),
			zap.String("organization_id", m.OrganizationID))
	}
	return written, nil
}

// DeleteMembership removes the mirror row for the membership. Missing rows
// are a no-op.
func (s *SyncService) DeleteMembership(ctx context.Context, m workos.OrganizationMembership) (bool, error) {
	return s.repo.DeleteByUserAndOrg(ctx, m.UserID, m.OrganizationID)
}

// UpdateUser propagates user identity fields to every mirrored membership of
// that user. User events are not scoped to an organization.
func (s *SyncService) UpdateUser(ctx context.Context, u workos.User) (bool, error) {
	at := u.UpdatedAt
	if at.IsZero() {
		at = s.nowF()
	}
	n, err := s.repo.UpdateUserFields(ctx, u.ID, u.Email, u.FirstName, u.LastName, at)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteUser removes every mirrored membership for the user; terminal cleanup
// for a departing identity.
func (s *SyncService) DeleteUser(ctx context.Context, userID string) (bool, error) {
	n, err := s.repo.DeleteAllForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.Info("user memberships removed",
			zap.String("user_id", userID),
			zap.Int64("rows", n))
	}
	return n > 0, nil
}
