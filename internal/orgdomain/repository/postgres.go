package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"membersync/internal/orgdomain/domain"
)

// PostgresRepository implements Repository against organization_domains and
// the email_domain column of organizations.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a domain repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

// lockOrg takes the row lock that serializes all domain mutations for one
// organization. Returns ErrOrganizationNotFound if the org is not mirrored.
func lockOrg(ctx context.Context, tx *sql.Tx, orgID string) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM organizations WHERE workos_organization_id = $1 FOR UPDATE`, orgID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrganizationNotFound
	}
	if err != nil {
		return fmt.Errorf("lock organization: %w", err)
	}
	return nil
}

// setEmailDomain writes organizations.email_domain inside the caller's
// transaction. emailDomain == "" clears the column.
func setEmailDomain(ctx context.Context, tx *sql.Tx, orgID, emailDomain string, at time.Time) error {
	var val any
	if emailDomain != "" {
		val = emailDomain
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE organizations SET email_domain = $2, updated_at = $3 WHERE workos_organization_id = $1`,
		orgID, val, at,
	); err != nil {
		return fmt.Errorf("set email_domain: %w", err)
	}
	return nil
}

// domainOwner returns the organization currently holding the domain row and
// whether that row is primary; "" when the domain is not mirrored. The domain
// key is global, so the owner may differ from the organization an event
// names.
func domainOwner(ctx context.Context, tx *sql.Tx, name string) (string, bool, error) {
	var orgID string
	var isPrimary bool
	err := tx.QueryRowContext(ctx,
		`SELECT workos_organization_id, is_primary FROM organization_domains WHERE domain = $1`, name,
	).Scan(&orgID, &isPrimary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read domain owner: %w", err)
	}
	return orgID, isPrimary, nil
}

// promoteOldestVerified fills an organization's empty primary slot with its
// oldest verified domain and points email_domain at it; with no verified
// domain left, email_domain clears. Callers hold the org row lock and have
// already removed or demoted the previous primary.
func promoteOldestVerified(ctx context.Context, tx *sql.Tx, orgID string, at time.Time) error {
	var replacement string
	err := tx.QueryRowContext(ctx,
		`SELECT domain FROM organization_domains
		  WHERE workos_organization_id = $1 AND verified
		  ORDER BY created_at, domain
		  LIMIT 1`,
		orgID,
	).Scan(&replacement)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return setEmailDomain(ctx, tx, orgID, "", at)
	case err != nil:
		return fmt.Errorf("select replacement: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE organization_domains
		    SET is_primary = TRUE, updated_at = $3
		  WHERE domain = $2 AND workos_organization_id = $1`,
		orgID, replacement, at,
	); err != nil {
		return fmt.Errorf("promote replacement: %w", err)
	}
	return setEmailDomain(ctx, tx, orgID, replacement, at)
}

// currentPrimary returns the organization's primary domain, or "" if none.
func currentPrimary(ctx context.Context, tx *sql.Tx, orgID string) (string, error) {
	var d string
	err := tx.QueryRowContext(ctx,
		`SELECT domain FROM organization_domains WHERE workos_organization_id = $1 AND is_primary`, orgID,
	).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("current primary: %w", err)
	}
	return d, nil
}

// ListByOrg returns all domain rows for the organization, oldest first.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.OrgDomain, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT domain, workos_organization_id, verified, is_primary, source, created_at, updated_at
		   FROM organization_domains
		  WHERE workos_organization_id = $1
		  ORDER BY created_at, domain`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []*domain.OrgDomain
	for rows.Next() {
		var d domain.OrgDomain
		if err := rows.Scan(&d.Domain, &d.OrgID, &d.Verified, &d.IsPrimary, &d.Source, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ReplaceAll makes the IdP-sourced domain set equal to domains. The first
// verified domain in IdP order becomes primary; manual rows are preserved
// even when the IdP does not list them. Everything commits atomically with
// the email_domain update, or not at all.
func (r *PostgresRepository) ReplaceAll(ctx context.Context, orgID string, domains []domain.OrgDomain) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := lockOrg(ctx, tx, orgID); err != nil {
		return err
	}

	now := time.Now().UTC()

	// First verified domain in list order is the primary candidate.
	candidate := ""
	names := make([]string, 0, len(domains))
	for _, d := range domains {
		name := domain.NormalizeDomain(d.Domain)
		names = append(names, name)
		if candidate == "" && d.Verified {
			candidate = name
		}
	}

	// Upsert every listed domain as non-primary; rows owned by operators
	// (source = manual) keep their attributes.
	for i, d := range domains {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO organization_domains
			        (domain, workos_organization_id, verified, is_primary, source, created_at, updated_at)
			 VALUES ($1, $2, $3, FALSE, 'idp', $4, $4)
			 ON CONFLICT (domain) DO UPDATE SET
			        workos_organization_id = EXCLUDED.workos_organization_id,
			        verified   = EXCLUDED.verified,
			        updated_at = EXCLUDED.updated_at
			 WHERE organization_domains.source = 'idp'`,
			names[i], orgID, d.Verified, now,
		); err != nil {
			return fmt.Errorf("upsert domain %q: %w", names[i], err)
		}
	}

	// Demote before promoting so the partial unique index never sees two
	// primaries within the transaction.
	if _, err := tx.ExecContext(ctx,
		`UPDATE organization_domains
		    SET is_primary = FALSE, updated_at = $3
		  WHERE workos_organization_id = $1 AND is_primary AND domain <> $2`,
		orgID, candidate, now,
	); err != nil {
		return fmt.Errorf("demote primaries: %w", err)
	}

	// Drop IdP-sourced rows the IdP no longer lists.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM organization_domains
		  WHERE workos_organization_id = $1 AND source = 'idp' AND NOT (domain = ANY($2))`,
		orgID, names,
	); err != nil {
		return fmt.Errorf("prune domains: %w", err)
	}

	if candidate != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE organization_domains
			    SET is_primary = TRUE, updated_at = $3
			  WHERE domain = $2 AND workos_organization_id = $1 AND verified`,
			orgID, candidate, now,
		); err != nil {
			return fmt.Errorf("promote primary: %w", err)
		}
	}

	// email_domain follows whatever actually ended up primary, so the two
	// can never disagree even if the candidate row turned out unverified.
	primary, err := currentPrimary(ctx, tx, orgID)
	if err != nil {
		return err
	}
	if err := setEmailDomain(ctx, tx, orgID, primary, now); err != nil {
		return err
	}

	return tx.Commit()
}

// Upsert applies a single-domain event. The org row lock serializes racing
// domain events for the same organization; when the IdP has reassigned the
// domain, the previous owner is locked too (stable order across both
// transactions) and loses any primary it held on the moving row. The NOT
// EXISTS condition on the promotion means at most one of two concurrent
// "no primary yet" upserts wins the primary slot.
func (r *PostgresRepository) Upsert(ctx context.Context, d domain.OrgDomain, eventAt time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	name := domain.NormalizeDomain(d.Domain)
	if eventAt.IsZero() {
		eventAt = time.Now().UTC()
	}

	prevOwner, _, err := domainOwner(ctx, tx, name)
	if err != nil {
		return false, err
	}

	lockIDs := []string{d.OrgID}
	if prevOwner != "" && prevOwner != d.OrgID {
		lockIDs = append(lockIDs, prevOwner)
		sort.Strings(lockIDs)
	}
	for _, orgID := range lockIDs {
		if err := lockOrg(ctx, tx, orgID); err != nil {
			// The previous owner may have been unmirrored since the event;
			// its remaining rows still get repaired below.
			if orgID != d.OrgID && errors.Is(err, ErrOrganizationNotFound) {
				continue
			}
			return false, err
		}
	}

	// Re-read under the locks: the owner can change between the first read
	// and lock acquisition. A move to a third organization means another
	// event won the race; fail so the redelivery sees the settled state.
	owner, ownerPrimary, err := domainOwner(ctx, tx, name)
	if err != nil {
		return false, err
	}
	if owner != "" && owner != d.OrgID && owner != prevOwner {
		return false, fmt.Errorf("domain %q: owner changed concurrently", name)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO organization_domains
		        (domain, workos_organization_id, verified, is_primary, source, created_at, updated_at)
		 VALUES ($1, $2, $3, FALSE, 'idp', $4, $4)
		 ON CONFLICT (domain) DO UPDATE SET
		        workos_organization_id = EXCLUDED.workos_organization_id,
		        verified   = EXCLUDED.verified,
		        is_primary = organization_domains.is_primary
		                     AND organization_domains.workos_organization_id = EXCLUDED.workos_organization_id,
		        updated_at = EXCLUDED.updated_at
		 WHERE organization_domains.source = 'idp'
		   AND organization_domains.updated_at <= EXCLUDED.updated_at`,
		name, d.OrgID, d.Verified, eventAt,
	)
	if err != nil {
		return false, fmt.Errorf("upsert domain %q: %w", name, err)
	}
	written, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	changed := written > 0

	if changed && owner != "" && owner != d.OrgID && ownerPrimary {
		// The previous owner lost its primary to the reassignment.
		if err := promoteOldestVerified(ctx, tx, owner, eventAt); err != nil {
			return false, err
		}
	}

	if changed && !d.Verified {
		// The primary slot only ever holds a verified row. A write that
		// un-verifies the current primary demotes it and hands the slot to
		// the oldest remaining verified domain.
		res, err := tx.ExecContext(ctx,
			`UPDATE organization_domains
			    SET is_primary = FALSE, updated_at = $3
			  WHERE domain = $1 AND workos_organization_id = $2 AND is_primary`,
			name, d.OrgID, eventAt,
		)
		if err != nil {
			return false, fmt.Errorf("demote unverified primary: %w", err)
		}
		demoted, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if demoted > 0 {
			if err := promoteOldestVerified(ctx, tx, d.OrgID, eventAt); err != nil {
				return false, err
			}
		}
	}

	if d.Verified {
		res, err := tx.ExecContext(ctx,
			`UPDATE organization_domains od
			    SET is_primary = TRUE, updated_at = $3
			  WHERE od.domain = $1 AND od.workos_organization_id = $2 AND od.verified
			    AND NOT EXISTS (SELECT 1 FROM organization_domains p
			                     WHERE p.workos_organization_id = $2 AND p.is_primary)`,
			name, d.OrgID, eventAt,
		)
		if err != nil {
			return false, fmt.Errorf("promote primary: %w", err)
		}
		promoted, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if promoted > 0 {
			if err := setEmailDomain(ctx, tx, d.OrgID, name, eventAt); err != nil {
				return false, err
			}
			changed = true
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return changed, nil
}

// Delete removes an IdP-sourced domain row and, when it was primary, promotes
// the oldest remaining verified domain (or clears email_domain).
func (r *PostgresRepository) Delete(ctx context.Context, orgID, domainName string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := lockOrg(ctx, tx, orgID); err != nil {
		return false, err
	}

	name := domain.NormalizeDomain(domainName)
	now := time.Now().UTC()

	var wasPrimary bool
	err = tx.QueryRowContext(ctx,
		`DELETE FROM organization_domains
		  WHERE domain = $1 AND workos_organization_id = $2 AND source = 'idp'
		  RETURNING is_primary`,
		name, orgID,
	).Scan(&wasPrimary)
	if errors.Is(err, sql.ErrNoRows) {
		// Absent or manual; nothing to do.
		return false, tx.Commit()
	}
	if err != nil {
		return false, fmt.Errorf("delete domain %q: %w", name, err)
	}

	if wasPrimary {
		if err := promoteOldestVerified(ctx, tx, orgID, now); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
