package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	membership "membersync/internal/membership/domain"
	organization "membersync/internal/organization/domain"
	orgdomain "membersync/internal/orgdomain/domain"
)

// OrgReader reads the mirrored organization row.
type OrgReader interface {
	GetByID(ctx context.Context, orgID string) (*organization.Org, error)
}

// DomainLister reads the mirrored domain rows for an organization.
type DomainLister interface {
	ListByOrg(ctx context.Context, orgID string) ([]*orgdomain.OrgDomain, error)
}

// MembershipLister reads the mirrored membership rows for an organization.
type MembershipLister interface {
	ListByOrg(ctx context.Context, orgID string) ([]*membership.Membership, error)
}

// MirrorHandler serves read access to the local mirror. Consumers that want
// membership or domain data read here instead of calling the IdP.
type MirrorHandler struct {
	orgs        OrgReader
	domains     DomainLister
	memberships MembershipLister
	logger      *zap.Logger
}

// NewMirrorHandler returns the mirror read handler.
func NewMirrorHandler(orgs OrgReader, domains DomainLister, memberships MembershipLister, logger *zap.Logger) *MirrorHandler {
	return &MirrorHandler{orgs: orgs, domains: domains, memberships: memberships, logger: logger}
}

type domainResponse struct {
	Domain    string `json:"domain"`
	Verified  bool   `json:"verified"`
	IsPrimary bool   `json:"isPrimary"`
	Source    string `json:"source"`
}

type organizationResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	EmailDomain *string          `json:"emailDomain"`
	Domains     []domainResponse `json:"domains"`
}

// GetOrganization serves GET /organizations/:id: the mirrored organization
// with its domain set.
func (h *MirrorHandler) GetOrganization(c *gin.Context) {
	orgID := c.Param("id")

	org, err := h.orgs.GetByID(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("organization read failed", zap.String("organization_id", orgID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	rows, err := h.domains.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("domain read failed", zap.String("organization_id", orgID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}

	resp := organizationResponse{
		ID:          org.ID,
		Name:        org.Name,
		EmailDomain: org.EmailDomain,
		Domains:     make([]domainResponse, 0, len(rows)),
	}
	for _, d := range rows {
		resp.Domains = append(resp.Domains, domainResponse{
			Domain:    d.Domain,
			Verified:  d.Verified,
			IsPrimary: d.IsPrimary,
			Source:    string(d.Source),
		})
	}
	c.JSON(http.StatusOK, resp)
}

type membershipResponse struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ListMemberships serves GET /organizations/:id/memberships: the mirrored
// active memberships of the organization.
func (h *MirrorHandler) ListMemberships(c *gin.Context) {
	orgID := c.Param("id")

	org, err := h.orgs.GetByID(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("organization read failed", zap.String("organization_id", orgID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	rows, err := h.memberships.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("membership read failed", zap.String("organization_id", orgID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read failed"})
		return
	}

	out := make([]membershipResponse, 0, len(rows))
	for _, m := range rows {
		out = append(out, membershipResponse{
			UserID:    m.UserID,
			Email:     m.Email,
			FirstName: m.FirstName,
			LastName:  m.LastName,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}
