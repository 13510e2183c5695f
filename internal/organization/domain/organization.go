package domain

import (
	"time"
)

// Org is the locally-known organization referenced by the sync engine.
// The engine reads rows and maintains EmailDomain; it never creates or
// deletes organizations.
type Org struct {
	ID          string
	Name        string
	EmailDomain *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
