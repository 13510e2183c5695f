package workos

import "time"

// User is a WorkOS user as returned by the read API and carried in user.*
// webhook payloads.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OrganizationMembership links a user to an organization with a status.
// Only status "active" is mirrored locally.
type OrganizationMembership struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OrganizationDomainEntry is a domain inside an organization payload.
// State is "verified", "pending", or "failed".
type OrganizationDomainEntry struct {
	Domain string `json:"domain"`
	State  string `json:"state"`
}

// Organization is a WorkOS organization with its full domain list, as carried
// in organization.* webhook payloads and returned by the read API.
type Organization struct {
	ID        string                    `json:"id"`
	Name      string                    `json:"name"`
	Domains   []OrganizationDomainEntry `json:"domains"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// OrganizationDomain is a single-domain object as carried in
// organization_domain.* webhook payloads.
type OrganizationDomain struct {
	ID             string `json:"id"`
	Domain         string `json:"domain"`
	OrganizationID string `json:"organization_id"`
	State          string `json:"state"`
}

// listMetadata is WorkOS cursor pagination metadata.
type listMetadata struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

type userList struct {
	Data         []User       `json:"data"`
	ListMetadata listMetadata `json:"list_metadata"`
}

type membershipList struct {
	Data         []OrganizationMembership `json:"data"`
	ListMetadata listMetadata             `json:"list_metadata"`
}
