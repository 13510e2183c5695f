// Package reconcile rebuilds the membership mirror by full enumeration of
// the IdP: backfill and drift recovery for deliveries the webhook path
// missed. It reuses the synchronizer's idempotent upsert, so the event path
// and the enumeration path converge to the same state.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"membersync/internal/cache"
	"membersync/internal/telemetry"
	"membersync/internal/workos"
)

// Report is the outcome of one reconciliation run. Errors are per-item
// failures; the run itself completes best-effort.
type Report struct {
	OrgsProcessed      int      `json:"orgsProcessed"`
	MembershipsCreated int      `json:"membershipsCreated"`
	Errors             []string `json:"errors"`
}

// OrgLister enumerates locally-known organizations.
type OrgLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// IdPClient is the enumeration surface of the WorkOS client.
type IdPClient interface {
	ListUsers(ctx context.Context, orgID, after string) ([]workos.User, string, error)
	GetActiveMembership(ctx context.Context, userID, orgID string) (*workos.OrganizationMembership, error)
}

// MembershipUpserter is the synchronizer write path the job reuses.
type MembershipUpserter interface {
	UpsertMembership(ctx context.Context, m workos.OrganizationMembership, user *workos.User) (bool, error)
}

// Job sweeps every local organization, paginating the IdP's user listing to
// completion and upserting each user's active membership.
type Job struct {
	orgs        OrgLister
	idp         IdPClient
	memberships MembershipUpserter
	invalidator cache.Invalidator
	metrics     *telemetry.Metrics
	batchSize   int
	logger      *zap.Logger
}

// NewJob returns a reconciliation job. batchSize bounds how many
// organizations are processed concurrently (load on the IdP API); values
// below 1 fall back to 10.
func NewJob(orgs OrgLister, idp IdPClient, memberships MembershipUpserter, invalidator cache.Invalidator, metrics *telemetry.Metrics, batchSize int, logger *zap.Logger) *Job {
	if batchSize < 1 {
		batchSize = 10
	}
	return &Job{
		orgs:        orgs,
		idp:         idp,
		memberships: memberships,
		invalidator: invalidator,
		metrics:     metrics,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Run executes the sweep. Per-user and per-organization failures land in the
// report's error list and never abort the run; the error return is reserved
// for not being able to enumerate organizations at all. One cache
// invalidation fires at the end of the run, since the sweep touches a large
// fraction of the mirror.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	orgIDs, err := j.orgs.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list organizations: %w", err)
	}

	report := &Report{Errors: []string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.batchSize)

	for _, orgID := range orgIDs {
		orgID := orgID
		g.Go(func() error {
			created, errs := j.reconcileOrg(gctx, orgID)
			mu.Lock()
			report.OrgsProcessed++
			report.MembershipsCreated += created
			report.Errors = append(report.Errors, errs...)
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only observes ctx cancellation.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	j.invalidator.Invalidate(ctx)
	j.metrics.RecordReconcileRun(ctx, report.OrgsProcessed, len(report.Errors))
	j.logger.Info("reconciliation run complete",
		zap.Int("orgs_processed", report.OrgsProcessed),
		zap.Int("memberships_created", report.MembershipsCreated),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

// reconcileOrg paginates one organization's user listing to completion and
// upserts each user's active membership. Failures are collected, not raised:
// one bad record must not stop the sweep.
func (j *Job) reconcileOrg(ctx context.Context, orgID string) (created int, errs []string) {
	after := ""
	for {
		users, next, err := j.idp.ListUsers(ctx, orgID, after)
		if err != nil {
			errs = append(errs, fmt.Sprintf("org %s: list users: %v", orgID, err))
			return created, errs
		}

		for _, u := range users {
			u := u
			m, err := j.idp.GetActiveMembership(ctx, u.ID, orgID)
			if err != nil {
				errs = append(errs, fmt.Sprintf("org %s user %s: fetch membership: %v", orgID, u.ID, err))
				continue
			}
			if m == nil {
				continue
			}
			applied, err := j.memberships.UpsertMembership(ctx, *m, &u)
			if err != nil {
				errs = append(errs, fmt.Sprintf("org %s user %s: upsert: %v", orgID, u.ID, err))
				continue
			}
			if applied {
				created++
			}
		}

		if next == "" {
			return created, errs
		}
		after = next
	}
}
