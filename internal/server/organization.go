package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/authzcontext"
	orgdomain "github.com/smallbiznis/sellora/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name         string `json:"name"`
	SupportEmail string `json:"support_email"`
}

// CreateOrg provisions a tenant for the calling account. It runs on the
// session tier: the typical caller has no membership yet, and the service
// makes them the organization's admin as part of the same transaction.
func (s *Server) CreateOrg(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.orgs.Create(c.Request.Context(), userID, orgdomain.CreateOrganizationRequest{
		Name:         strings.TrimSpace(req.Name),
		SupportEmail: strings.TrimSpace(req.SupportEmail),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organization": org})
}

// GetOrg reads one organization. Admins see their own; the platform role
// reads any organization through its platform analytics permission.
func (s *Server) GetOrg(c *gin.Context) {
	orgID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tc, ok := authzcontext.TenantContextFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resource := authzdomain.Resource{Entity: authzdomain.EntityOrganization, OrgID: orgID}
	perm, decision, err := authzdomain.AuthorizeAny(c.Request.Context(), s.authz, tc, resource,
		authzdomain.PermPlatformAnalyticsView,
		authzdomain.PermOrgProfileView,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if decision.Denied() {
		AbortWithError(c, authzdomain.ErrDenied(perm, decision))
		return
	}

	org, err := s.orgs.Get(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organization": org})
}

func (s *Server) SuspendOrg(c *gin.Context) {
	orgID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.orgs.Suspend(c.Request.Context(), orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ReactivateOrg(c *gin.Context) {
	orgID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.orgs.Reactivate(c.Request.Context(), orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) DeleteOrg(c *gin.Context) {
	orgID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.orgs.SoftDelete(c.Request.Context(), orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type createTeamRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateTeam(c *gin.Context) {
	orgID, ok := activeOrgID(c)
	if !ok || orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "no active organization"))
		return
	}

	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	team, err := s.orgs.CreateTeam(c.Request.Context(), orgID, orgdomain.CreateTeamRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"team": team})
}

// ListTeams reads the team directory through the scope-filter builder. The
// directory is organization-visible, so every role inside the active
// organization gets it; callers with no tier get an empty list, never an
// error that confirms anything exists.
func (s *Server) ListTeams(c *gin.Context) {
	tc, ok := authzcontext.TenantContextFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	filter, err := s.authz.BuildFilter(c.Request.Context(), tc, authzdomain.EntityTeam)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var orgID snowflake.ID
	switch filter.Kind {
	case authzdomain.FilterKindUnrestricted:
		active, ok := activeOrgID(c)
		if !ok || active == 0 {
			AbortWithError(c, newValidationError("org_id", "invalid_org_id", "no active organization"))
			return
		}
		orgID = active
	case authzdomain.FilterKindOrganization:
		orgID = filter.OrgID
	default:
		c.JSON(http.StatusOK, gin.H{"teams": []orgdomain.TeamResponse{}})
		return
	}

	teams, err := s.orgs.ListTeams(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	if raw == "" {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil || parsed == 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return parsed, nil
}

func isOrganizationValidationError(err error) bool {
	switch err {
	case orgdomain.ErrInvalidName,
		orgdomain.ErrInvalidUser,
		orgdomain.ErrInvalidOrganization,
		orgdomain.ErrInvalidTeam:
		return true
	default:
		return false
	}
}
