// Package workos is the read client for the WorkOS API: read-through user
// fetches from webhook handlers and full enumeration for the reconciliation
// job. Webhook push is consumed elsewhere (internal/webhook).
package workos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when WorkOS reports 404 for a requested entity.
var ErrNotFound = errors.New("workos: not found")

const (
	defaultBaseURL = "https://api.workos.com"
	defaultTimeout = 15 * time.Second
	// pageLimit is the page size for enumeration calls.
	pageLimit = 100
)

// Client calls the WorkOS read API. All calls take a context; the underlying
// HTTP client also enforces a hard per-request timeout so a slow IdP cannot
// hold a webhook request open indefinitely.
type Client struct {
	http *resty.Client
}

// NewClient returns a WorkOS client using the given API key. baseURL and
// timeout fall back to production defaults when zero-valued.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(apiKey).
		SetRetryCount(2).
		SetHeader("Accept", "application/json")
	return &Client{http: rc}
}

// GetUser fetches full user details by id. Used as the read-through path when
// a membership event payload lacks user fields.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&user).
		SetPathParam("id", id).
		Get("/user_management/users/{id}")
	if err != nil {
		return nil, fmt.Errorf("workos get user %s: %w", id, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("workos get user %s: status=%d body=%s", id, resp.StatusCode(), resp.String())
	}
	return &user, nil
}

// GetOrganization fetches an organization with its full domain list. Used by
// operator-triggered domain resyncs.
func (c *Client) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&org).
		SetPathParam("id", id).
		Get("/organizations/{id}")
	if err != nil {
		return nil, fmt.Errorf("workos get organization %s: %w", id, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("workos get organization %s: status=%d body=%s", id, resp.StatusCode(), resp.String())
	}
	return &org, nil
}

// ListUsers returns one page of the organization's users plus the cursor for
// the next page ("" when exhausted). The reconciliation job follows the
// cursor to completion.
func (c *Client) ListUsers(ctx context.Context, orgID, after string) ([]User, string, error) {
	var page userList
	req := c.http.R().
		SetContext(ctx).
		SetResult(&page).
		SetQueryParam("organization_id", orgID).
		SetQueryParam("limit", fmt.Sprint(pageLimit))
	if after != "" {
		req.SetQueryParam("after", after)
	}
	resp, err := req.Get("/user_management/users")
	if err != nil {
		return nil, "", fmt.Errorf("workos list users org=%s: %w", orgID, err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("workos list users org=%s: status=%d body=%s", orgID, resp.StatusCode(), resp.String())
	}
	return page.Data, page.ListMetadata.After, nil
}

// GetActiveMembership returns the user's active membership in the
// organization, or nil when the user has none.
func (c *Client) GetActiveMembership(ctx context.Context, userID, orgID string) (*OrganizationMembership, error) {
	var page membershipList
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&page).
		SetQueryParam("user_id", userID).
		SetQueryParam("organization_id", orgID).
		SetQueryParam("statuses", "active").
		Get("/user_management/organization_memberships")
	if err != nil {
		return nil, fmt.Errorf("workos get membership user=%s org=%s: %w", userID, orgID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("workos get membership user=%s org=%s: status=%d body=%s", userID, orgID, resp.StatusCode(), resp.String())
	}
	if len(page.Data) == 0 {
		return nil, nil
	}
	return &page.Data[0], nil
}
