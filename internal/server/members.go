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

type addMemberRequest struct {
	UserID string `json:"user_id"`
	TeamID string `json:"team_id"`
	Role   string `json:"role"`
}

func (s *Server) AddMember(c *gin.Context) {
	orgID, ok := activeOrgID(c)
	if !ok || orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "no active organization"))
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseOptionalSnowflakeID(req.UserID)
	if err != nil || userID == nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	add := orgdomain.AddMemberRequest{
		UserID: *userID,
		Role:   strings.TrimSpace(req.Role),
	}
	teamID, err := parseOptionalSnowflakeID(req.TeamID)
	if err != nil {
		AbortWithError(c, newValidationError("team_id", "invalid_team_id", "invalid team id"))
		return
	}
	if teamID != nil {
		add.TeamID = *teamID
	}

	member, err := s.orgs.AddMember(c.Request.Context(), orgID, add)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"member": member})
}

// ListMembers reads the member directory through the scope-filter builder and
// applies the resulting filter to the rows in memory. Admins see the whole
// organization, managers their roster, members their own row.
func (s *Server) ListMembers(c *gin.Context) {
	orgID, ok := activeOrgID(c)
	if !ok || orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "no active organization"))
		return
	}

	tc, ok := authzcontext.TenantContextFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	filter, err := s.authz.BuildFilter(c.Request.Context(), tc, authzdomain.EntityUser)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if filter.Kind == authzdomain.FilterKindNothing {
		c.JSON(http.StatusOK, gin.H{"members": []orgdomain.MemberResponse{}})
		return
	}

	members, err := s.orgs.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	visible := make([]orgdomain.MemberResponse, 0, len(members))
	for _, member := range members {
		rowOrgID, err := snowflake.ParseString(member.OrgID)
		if err != nil {
			continue
		}
		rowUserID, err := snowflake.ParseString(member.UserID)
		if err != nil {
			continue
		}
		if filter.Matches(rowOrgID, rowUserID) {
			visible = append(visible, member)
		}
	}

	c.JSON(http.StatusOK, gin.H{"members": visible})
}

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) UpdateMemberRole(c *gin.Context) {
	orgID, ok := activeOrgID(c)
	if !ok || orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "no active organization"))
		return
	}

	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.orgs.UpdateMemberRole(c.Request.Context(), orgID, userID, strings.TrimSpace(req.Role)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type assignMemberTeamRequest struct {
	TeamID string `json:"team_id"`
}

func (s *Server) AssignMemberTeam(c *gin.Context) {
	orgID, ok := activeOrgID(c)
	if !ok || orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "no active organization"))
		return
	}

	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req assignMemberTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	teamID, err := parseOptionalSnowflakeID(req.TeamID)
	if err != nil {
		AbortWithError(c, newValidationError("team_id", "invalid_team_id", "invalid team id"))
		return
	}

	var team snowflake.ID
	if teamID != nil {
		team = *teamID
	}
	if err := s.orgs.AssignMemberTeam(c.Request.Context(), orgID, userID, team); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RemoveMember(c *gin.Context) {
	orgID, ok := activeOrgID(c)
	if !ok || orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "no active organization"))
		return
	}

	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.orgs.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type transferMemberRequest struct {
	ToOrgID string `json:"to_org_id"`
}

// TransferMember moves a member into another organization. The route is
// gated on the platform organizations permission; the destination must be an
// active organization and the move demotes the member to the narrowest role.
func (s *Server) TransferMember(c *gin.Context) {
	fromOrgID, ok := activeOrgID(c)
	if !ok || fromOrgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "no active organization"))
		return
	}

	userID, err := pathID(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req transferMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	toOrgID, err := parseOptionalSnowflakeID(req.ToOrgID)
	if err != nil || toOrgID == nil {
		AbortWithError(c, newValidationError("to_org_id", "invalid_to_org_id", "invalid destination org"))
		return
	}

	if err := s.orgs.TransferMember(c.Request.Context(), userID, fromOrgID, *toOrgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
