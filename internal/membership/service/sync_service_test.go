package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"membersync/internal/membership/domain"
	"membersync/internal/workos"
)

// mockRepo implements Repo for tests.
type mockRepo struct {
	upserts        []*domain.Membership
	upsertWritten  bool
	upsertErr      error
	deleted        [][2]string
	deletedOK      bool
	userUpdates    []string
	userUpdateRows int64
	userDeletes    []string
	userDeleteRows int64
	err            error
}

func (m *mockRepo) Upsert(_ context.Context, mem *domain.Membership) (bool, error) {
	m.upserts = append(m.upserts, mem)
	return m.upsertWritten, m.upsertErr
}

func (m *mockRepo) DeleteByUserAndOrg(_ context.Context, userID, orgID string) (bool, error) {
	m.deleted = append(m.deleted, [2]string{userID, orgID})
	return m.deletedOK, m.err
}

func (m *mockRepo) UpdateUserFields(_ context.Context, userID, _, _, _ string, _ time.Time) (int64, error) {
	m.userUpdates = append(m.userUpdates, userID)
	return m.userUpdateRows, m.err
}

func (m *mockRepo) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	m.userDeletes = append(m.userDeletes, userID)
	return m.userDeleteRows, m.err
}

// mockUsers implements UserFetcher for tests.
type mockUsers struct {
	user  *workos.User
	err   error
	calls int
}

func (m *mockUsers) GetUser(context.Context, string) (*workos.User, error) {
	m.calls++
	return m.user, m.err
}

func activeMembership() workos.OrganizationMembership {
	return workos.OrganizationMembership{
		ID:             "om_01",
		UserID:         "user_01",
		OrganizationID: "org_01",
		Status:         "active",
		UpdatedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestUpsertMembership_WithUserPayload(t *testing.T) {
	repo := &mockRepo{upsertWritten: true}
	users := &mockUsers{}
	svc := NewSyncService(repo, users, zap.NewNop())

	user := &workos.User{ID: "user_01", Email: "jo@acme.com", FirstName: "Jo", LastName: "Smith"}
	applied, err := svc.UpsertMembership(context.Background(), activeMembership(), user)
	if err != nil {
		t.Fatalf("UpsertMembership: %v", err)
	}
	if !applied {
		t.Error("applied = false, want true")
	}
	if users.calls != 0 {
		t.Errorf("GetUser calls = %d, want 0 (user supplied)", users.calls)
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(repo.upserts))
	}
	got := repo.upserts[0]
	if got.UserID != "user_01" || got.OrgID != "org_01" || got.Email != "jo@acme.com" {
		t.Errorf("upsert row = %+v", got)
	}
	if !got.UpdatedAt.Equal(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("UpdatedAt = %v, want event timestamp", got.UpdatedAt)
	}
}

func TestUpsertMembership_FetchesUserWhenMissing(t *testing.T) {
	repo := &mockRepo{upsertWritten: true}
	users := &mockUsers{user: &workos.User{ID: "user_01", Email: "jo@acme.com"}}
	svc := NewSyncService(repo, users, zap.NewNop())

	applied, err := svc.UpsertMembership(context.Background(), activeMembership(), nil)
	if err != nil {
		t.Fatalf("UpsertMembership: %v", err)
	}
	if !applied {
		t.Error("applied = false, want true")
	}
	if users.calls != 1 {
		t.Errorf("GetUser calls = %d, want 1", users.calls)
	}
	if repo.upserts[0].Email != "jo@acme.com" {
		t.Errorf("Email = %q", repo.upserts[0].Email)
	}
}

func TestUpsertMembership_InactiveIsNoOp(t *testing.T) {
	for _, status := range []string{"pending", "inactive", ""} {
		t.Run("status "+status, func(t *testing.T) {
			repo := &mockRepo{}
			svc := NewSyncService(repo, &mockUsers{}, zap.NewNop())

			m := activeMembership()
			m.Status = status
			applied, err := svc.UpsertMembership(context.Background(), m, nil)
			if err != nil {
				t.Fatalf("UpsertMembership: %v", err)
			}
			if applied {
				t.Error("applied = true, want false")
			}
			if len(repo.upserts) != 0 {
				t.Error("non-active membership must not be written")
			}
		})
	}
}

func TestUpsertMembership_FetchFailureDropsEvent(t *testing.T) {
	repo := &mockRepo{}
	users := &mockUsers{err: errors.New("idp timeout")}
	svc := NewSyncService(repo, users, zap.NewNop())

	applied, err := svc.UpsertMembership(context.Background(), activeMembership(), nil)
	if err != nil {
		t.Fatalf("UpsertMembership: %v (fetch failure must be dropped, not raised)", err)
	}
	if applied {
		t.Error("applied = true, want false")
	}
	if len(repo.upserts) != 0 {
		t.Error("dropped event must not be written")
	}
}

func TestUpsertMembership_StaleWriteReportsUnchanged(t *testing.T) {
	repo := &mockRepo{upsertWritten: false}
	svc := NewSyncService(repo, &mockUsers{}, zap.NewNop())

	applied, err := svc.UpsertMembership(context.Background(), activeMembership(), &workos.User{ID: "user_01"})
	if err != nil {
		t.Fatalf("UpsertMembership: %v", err)
	}
	if applied {
		t.Error("applied = true, want false for superseded write")
	}
}

func TestUpsertMembership_ZeroUpdatedAtFallsBackToNow(t *testing.T) {
	now := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	repo := &mockRepo{upsertWritten: true}
	svc := NewSyncService(repo, &mockUsers{}, zap.NewNop())
	svc.nowF = func() time.Time { return now }

	m := activeMembership()
	m.UpdatedAt = time.Time{}
	if _, err := svc.UpsertMembership(context.Background(), m, &workos.User{ID: "user_01"}); err != nil {
		t.Fatalf("UpsertMembership: %v", err)
	}
	if !repo.upserts[0].UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want now", repo.upserts[0].UpdatedAt)
	}
}

func TestDeleteMembership(t *testing.T) {
	repo := &mockRepo{deletedOK: true}
	svc := NewSyncService(repo, &mockUsers{}, zap.NewNop())

	applied, err := svc.DeleteMembership(context.Background(), activeMembership())
	if err != nil {
		t.Fatalf("DeleteMembership: %v", err)
	}
	if !applied {
		t.Error("applied = false, want true")
	}
	if repo.deleted[0] != [2]string{"user_01", "org_01"} {
		t.Errorf("deleted = %+v", repo.deleted)
	}
}

func TestUpdateUser(t *testing.T) {
	repo := &mockRepo{userUpdateRows: 2}
	svc := NewSyncService(repo, &mockUsers{}, zap.NewNop())

	applied, err := svc.UpdateUser(context.Background(), workos.User{ID: "user_01", Email: "new@acme.com"})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if !applied {
		t.Error("applied = false, want true")
	}
}

func TestUpdateUser_NoMirroredRows(t *testing.T) {
	repo := &mockRepo{userUpdateRows: 0}
	svc := NewSyncService(repo, &mockUsers{}, zap.NewNop())

	applied, err := svc.UpdateUser(context.Background(), workos.User{ID: "user_01"})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if applied {
		t.Error("applied = true, want false when no rows matched")
	}
}

func TestDeleteUser(t *testing.T) {
	repo := &mockRepo{userDeleteRows: 3}
	svc := NewSyncService(repo, &mockUsers{}, zap.NewNop())

	applied, err := svc.DeleteUser(context.Background(), "user_01")
	if err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if !applied {
		t.Error("applied = false, want true")
	}
	if repo.userDeletes[0] != "user_01" {
		t.Errorf("userDeletes = %+v", repo.userDeletes)
	}
}
