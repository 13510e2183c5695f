package domain

import (
	"strings"
	"time"
)

// Source records who owns a domain row. The sync engine only ever creates,
// updates, or deletes rows with SourceIdP; SourceManual rows belong to
// operators and are preserved across syncs.
type Source string

const (
	SourceIdP    Source = "idp"
	SourceManual Source = "manual"
)

// StateVerified is the WorkOS domain state that maps to Verified = true.
// Other states ("pending", "failed") map to false.
const StateVerified = "verified"

// OrgDomain is an email domain associated with an organization. Domain is
// globally unique: a domain belongs to at most one organization at a time.
// At most one row per organization has IsPrimary = true, and that row is
// always verified.
type OrgDomain struct {
	Domain    string
	OrgID     string
	Verified  bool
	IsPrimary bool
	Source    Source
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeDomain lowercases and trims a domain string. Event payloads and
// API listings are not guaranteed to agree on case, and the unique key is
// the normalized form.
func NormalizeDomain(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}
