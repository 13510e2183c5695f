package webhook

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"membersync/internal/cache"
	orgdomain "membersync/internal/orgdomain/domain"
	"membersync/internal/workos"
)

// Outcome is what the dispatcher did with an event.
type Outcome string

const (
	// OutcomeApplied: the event mutated the mirror.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped: recognized event, nothing to change (inactive
	// membership, unknown org, stale replay, documented no-op).
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored: unrecognized event type, acknowledged for forward
	// compatibility.
	OutcomeIgnored Outcome = "ignored"
)

// MembershipSynchronizer applies membership and user events to the mirror.
type MembershipSynchronizer interface {
	UpsertMembership(ctx context.Context, m workos.OrganizationMembership, user *workos.User) (bool, error)
	DeleteMembership(ctx context.Context, m workos.OrganizationMembership) (bool, error)
	UpdateUser(ctx context.Context, u workos.User) (bool, error)
	DeleteUser(ctx context.Context, userID string) (bool, error)
}

// DomainSynchronizer applies organization and domain events to the mirror.
type DomainSynchronizer interface {
	SyncOrganization(ctx context.Context, org workos.Organization) (bool, error)
	ClearOrganization(ctx context.Context, orgID string) (bool, error)
	UpsertDomain(ctx context.Context, d workos.OrganizationDomain, verified bool, eventAt time.Time) (bool, error)
	DeleteDomain(ctx context.Context, d workos.OrganizationDomain) (bool, error)
}

// Dispatcher routes a decoded event to the synchronizer for its type.
// Unknown types are logged and acknowledged so new IdP event types never
// cause retries. After a mutation it notifies the cache invalidator exactly
// once per delivery, regardless of how many rows changed.
type Dispatcher struct {
	memberships MembershipSynchronizer
	domains     DomainSynchronizer
	invalidator cache.Invalidator
	logger      *zap.Logger
}

// NewDispatcher returns a Dispatcher over the two synchronizers.
func NewDispatcher(memberships MembershipSynchronizer, domains DomainSynchronizer, invalidator cache.Invalidator, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		memberships: memberships,
		domains:     domains,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Dispatch handles one event to completion. Errors are store or IdP failures
// the sender should retry (500); everything else acknowledges.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) (Outcome, error) {
	applied, err := d.route(ctx, ev)
	if err != nil {
		return "", err
	}
	if applied {
		d.invalidator.Invalidate(ctx)
		return OutcomeApplied, nil
	}
	if recognized(ev.Type) {
		return OutcomeSkipped, nil
	}
	d.logger.Debug("unknown event type acknowledged", zap.String("event", ev.Type), zap.String("id", ev.ID))
	return OutcomeIgnored, nil
}

func recognized(eventType string) bool {
	for _, family := range []string{"user.", "organization.", "organization_membership.", "organization_domain."} {
		if strings.HasPrefix(eventType, family) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) route(ctx context.Context, ev *Event) (bool, error) {
	switch ev.Type {
	case "organization_membership.created", "organization_membership.updated":
		m, err := decodeData[workos.OrganizationMembership](ev)
		if err != nil {
			return false, err
		}
		return d.memberships.UpsertMembership(ctx, m, nil)

	case "organization_membership.deleted":
		m, err := decodeData[workos.OrganizationMembership](ev)
		if err != nil {
			return false, err
		}
		return d.memberships.DeleteMembership(ctx, m)

	case "user.created":
		// Documented no-op: a user without a membership has nothing to mirror.
		return false, nil

	case "user.updated":
		u, err := decodeData[workos.User](ev)
		if err != nil {
			return false, err
		}
		return d.memberships.UpdateUser(ctx, u)

	case "user.deleted":
		u, err := decodeData[workos.User](ev)
		if err != nil {
			return false, err
		}
		return d.memberships.DeleteUser(ctx, u.ID)

	case "organization.created", "organization.updated":
		org, err := decodeData[workos.Organization](ev)
		if err != nil {
			return false, err
		}
		return d.domains.SyncOrganization(ctx, org)

	case "organization.deleted":
		org, err := decodeData[workos.Organization](ev)
		if err != nil {
			return false, err
		}
		return d.domains.ClearOrganization(ctx, org.ID)

	case "organization_domain.created", "organization_domain.updated", "organization_domain.verified":
		dom, err := decodeData[workos.OrganizationDomain](ev)
		if err != nil {
			return false, err
		}
		verified := dom.State == orgdomain.StateVerified || ev.Type == "organization_domain.verified"
		return d.domains.UpsertDomain(ctx, dom, verified, ev.CreatedAt)

	case "organization_domain.deleted", "organization_domain.verification_failed":
		dom, err := decodeData[workos.OrganizationDomain](ev)
		if err != nil {
			return false, err
		}
		return d.domains.DeleteDomain(ctx, dom)

	default:
		return false, nil
	}
}
