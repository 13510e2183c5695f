package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"membersync/internal/workos"
)

// mockMemberships implements MembershipSynchronizer for tests.
type mockMemberships struct {
	upserts     []workos.OrganizationMembership
	deletes     []workos.OrganizationMembership
	userUpdates []workos.User
	userDeletes []string
	applied     bool
	err         error
}

func (m *mockMemberships) UpsertMembership(_ context.Context, om workos.OrganizationMembership, _ *workos.User) (bool, error) {
	m.upserts = append(m.upserts, om)
	return m.applied, m.err
}

func (m *mockMemberships) DeleteMembership(_ context.Context, om workos.OrganizationMembership) (bool, error) {
	m.deletes = append(m.deletes, om)
	return m.applied, m.err
}

func (m *mockMemberships) UpdateUser(_ context.Context, u workos.User) (bool, error) {
	m.userUpdates = append(m.userUpdates, u)
	return m.applied, m.err
}

func (m *mockMemberships) DeleteUser(_ context.Context, userID string) (bool, error) {
	m.userDeletes = append(m.userDeletes, userID)
	return m.applied, m.err
}

// mockDomains implements DomainSynchronizer for tests.
type mockDomains struct {
	syncs    []workos.Organization
	clears   []string
	upserts  []workos.OrganizationDomain
	verified []bool
	deletes  []workos.OrganizationDomain
	applied  bool
	err      error
}

func (m *mockDomains) SyncOrganization(_ context.Context, org workos.Organization) (bool, error) {
	m.syncs = append(m.syncs, org)
	return m.applied, m.err
}

func (m *mockDomains) ClearOrganization(_ context.Context, orgID string) (bool, error) {
	m.clears = append(m.clears, orgID)
	return m.applied, m.err
}

func (m *mockDomains) UpsertDomain(_ context.Context, d workos.OrganizationDomain, verified bool, _ time.Time) (bool, error) {
	m.upserts = append(m.upserts, d)
	m.verified = append(m.verified, verified)
	return m.applied, m.err
}

func (m *mockDomains) DeleteDomain(_ context.Context, d workos.OrganizationDomain) (bool, error) {
	m.deletes = append(m.deletes, d)
	return m.applied, m.err
}

// countInvalidator implements cache.Invalidator for tests.
type countInvalidator struct {
	calls int
}

func (c *countInvalidator) Invalidate(context.Context) { c.calls++ }

func event(id, typ, data string) *Event {
	return &Event{ID: id, Type: typ, Data: json.RawMessage(data), CreatedAt: time.Unix(1700000000, 0)}
}

func TestDispatch_MembershipCreated(t *testing.T) {
	members := &mockMemberships{applied: true}
	inv := &countInvalidator{}
	d := NewDispatcher(members, &mockDomains{}, inv, zap.NewNop())

	out, err := d.Dispatch(context.Background(),
		event("e1", "organization_membership.created", `{"id":"om_01","user_id":"user_01","organization_id":"org_01","status":"active"}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out != OutcomeApplied {
		t.Errorf("outcome = %q, want applied", out)
	}
	if len(members.upserts) != 1 || members.upserts[0].UserID != "user_01" {
		t.Errorf("upserts = %+v", members.upserts)
	}
	if inv.calls != 1 {
		t.Errorf("invalidations = %d, want 1", inv.calls)
	}
}

func TestDispatch_SkippedNoInvalidation(t *testing.T) {
	members := &mockMemberships{applied: false}
	inv := &countInvalidator{}
	d := NewDispatcher(members, &mockDomains{}, inv, zap.NewNop())

	out, err := d.Dispatch(context.Background(),
		event("e1", "organization_membership.created", `{"id":"om_01","user_id":"user_01","organization_id":"org_01","status":"inactive"}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out != OutcomeSkipped {
		t.Errorf("outcome = %q, want skipped", out)
	}
	if inv.calls != 0 {
		t.Errorf("invalidations = %d, want 0", inv.calls)
	}
}

func TestDispatch_UnknownTypeAcknowledged(t *testing.T) {
	inv := &countInvalidator{}
	d := NewDispatcher(&mockMemberships{}, &mockDomains{}, inv, zap.NewNop())

	out, err := d.Dispatch(context.Background(), event("e1", "connection.activated", `{}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out != OutcomeIgnored {
		t.Errorf("outcome = %q, want ignored", out)
	}
	if inv.calls != 0 {
		t.Errorf("invalidations = %d, want 0", inv.calls)
	}
}

func TestDispatch_UserCreatedIsNoOp(t *testing.T) {
	members := &mockMemberships{applied: true}
	d := NewDispatcher(members, &mockDomains{}, &countInvalidator{}, zap.NewNop())

	out, err := d.Dispatch(context.Background(), event("e1", "user.created", `{"id":"user_01"}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out != OutcomeSkipped {
		t.Errorf("outcome = %q, want skipped", out)
	}
	if len(members.userUpdates) != 0 {
		t.Errorf("user.created must not touch the synchronizer")
	}
}

func TestDispatch_Routing(t *testing.T) {
	cases := []struct {
		typ   string
		data  string
		check func(t *testing.T, m *mockMemberships, dm *mockDomains)
	}{
		{
			"organization_membership.deleted",
			`{"id":"om_01","user_id":"user_01","organization_id":"org_01"}`,
			func(t *testing.T, m *mockMemberships, _ *mockDomains) {
				if len(m.deletes) != 1 {
					t.Error("expected DeleteMembership")
				}
			},
		},
		{
			"user.updated",
			`{"id":"user_01","email":"a@b.c"}`,
			func(t *testing.T, m *mockMemberships, _ *mockDomains) {
				if len(m.userUpdates) != 1 || m.userUpdates[0].Email != "a@b.c" {
					t.Errorf("userUpdates = %+v", m.userUpdates)
				}
			},
		},
		{
			"user.deleted",
			`{"id":"user_01"}`,
			func(t *testing.T, m *mockMemberships, _ *mockDomains) {
				if len(m.userDeletes) != 1 || m.userDeletes[0] != "user_01" {
					t.Errorf("userDeletes = %+v", m.userDeletes)
				}
			},
		},
		{
			"organization.updated",
			`{"id":"org_01","name":"Acme","domains":[{"domain":"acme.com","state":"verified"}]}`,
			func(t *testing.T, _ *mockMemberships, dm *mockDomains) {
				if len(dm.syncs) != 1 || len(dm.syncs[0].Domains) != 1 {
					t.Errorf("syncs = %+v", dm.syncs)
				}
			},
		},
		{
			"organization.deleted",
			`{"id":"org_01"}`,
			func(t *testing.T, _ *mockMemberships, dm *mockDomains) {
				if len(dm.clears) != 1 || dm.clears[0] != "org_01" {
					t.Errorf("clears = %+v", dm.clears)
				}
			},
		},
		{
			"organization_domain.verified",
			`{"domain":"acme.com","organization_id":"org_01","state":"pending"}`,
			func(t *testing.T, _ *mockMemberships, dm *mockDomains) {
				// .verified implies verified even when the payload state lags.
				if len(dm.upserts) != 1 || !dm.verified[0] {
					t.Errorf("upserts = %+v verified = %+v", dm.upserts, dm.verified)
				}
			},
		},
		{
			"organization_domain.created",
			`{"domain":"acme.com","organization_id":"org_01","state":"pending"}`,
			func(t *testing.T, _ *mockMemberships, dm *mockDomains) {
				if len(dm.upserts) != 1 || dm.verified[0] {
					t.Errorf("upserts = %+v verified = %+v", dm.upserts, dm.verified)
				}
			},
		},
		{
			"organization_domain.deleted",
			`{"domain":"acme.com","organization_id":"org_01"}`,
			func(t *testing.T, _ *mockMemberships, dm *mockDomains) {
				if len(dm.deletes) != 1 || dm.deletes[0].Domain != "acme.com" {
					t.Errorf("deletes = %+v", dm.deletes)
				}
			},
		},
		{
			"organization_domain.verification_failed",
			`{"domain":"acme.com","organization_id":"org_01"}`,
			func(t *testing.T, _ *mockMemberships, dm *mockDomains) {
				if len(dm.deletes) != 1 {
					t.Error("expected DeleteDomain")
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			members := &mockMemberships{applied: true}
			domains := &mockDomains{applied: true}
			d := NewDispatcher(members, domains, &countInvalidator{}, zap.NewNop())
			if _, err := d.Dispatch(context.Background(), event("e1", tc.typ, tc.data)); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			tc.check(t, members, domains)
		})
	}
}

func TestDispatch_BadPayload(t *testing.T) {
	d := NewDispatcher(&mockMemberships{}, &mockDomains{}, &countInvalidator{}, zap.NewNop())

	_, err := d.Dispatch(context.Background(), event("e1", "user.updated", `"not an object"`))
	if !errors.Is(err, ErrBadPayload) {
		t.Errorf("Dispatch = %v, want ErrBadPayload", err)
	}
}

func TestDispatch_SynchronizerErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	inv := &countInvalidator{}
	d := NewDispatcher(&mockMemberships{err: boom}, &mockDomains{}, inv, zap.NewNop())

	_, err := d.Dispatch(context.Background(),
		event("e1", "organization_membership.created", `{"id":"om_01","status":"active"}`))
	if !errors.Is(err, boom) {
		t.Errorf("Dispatch = %v, want wrapped db error", err)
	}
	if inv.calls != 0 {
		t.Errorf("invalidations after failure = %d, want 0", inv.calls)
	}
}
