package domain

import (
	"time"
)

// Membership is the local mirror of an active WorkOS organization membership.
// Keyed by (UserID, OrgID); only active memberships are persisted.
type Membership struct {
	UserID       string
	OrgID        string
	MembershipID string
	Email        string
	FirstName    string
	LastName     string
	SyncedAt     time.Time
	UpdatedAt    time.Time
}

// Status is the membership status reported by WorkOS.
type Status string

const (
	StatusActive   Status = "active"
	StatusPending  Status = "pending"
	StatusInactive Status = "inactive"
)
