package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// OrgLifecycle is the organization lifecycle state as seen by access control.
type OrgLifecycle string

const (
	OrgActive    OrgLifecycle = "active"
	OrgTrial     OrgLifecycle = "trial"
	OrgSuspended OrgLifecycle = "suspended"
	OrgDeleted   OrgLifecycle = "deleted"
)

// OrganizationState is the slice of an organization the context builder
// needs: identity, lifecycle and the trial deadline. It is resolved from the
// organization store once per request.
type OrganizationState struct {
	ID          snowflake.ID
	Status      OrgLifecycle
	TrialEndsAt *time.Time
}

// TenantContext is the per-request view of who the caller is and what tenant
// boundary applies to them. It is immutable once built and must never be
// cached across requests; a stale context is how role changes leak.
type TenantContext struct {
	principal       Principal
	orgStatus       OrgLifecycle
	writeRestricted bool
}

// BuildTenantContext derives a context from a resolved principal and the
// current state of its organization. It fails closed: a principal whose
// organization is missing or deleted gets ErrOrphanedPrincipal and no
// context at all.
//
// The reserved platform operator account may carry no organization; org must
// then be nil. Every other principal requires a live organization whose id
// matches the principal's.
func BuildTenantContext(p Principal, org *OrganizationState, now time.Time, trialGrace time.Duration) (TenantContext, error) {
	if err := p.Validate(); err != nil {
		return TenantContext{}, err
	}

	if p.OrgID == 0 {
		// Platform operator without a tenant of its own.
		return TenantContext{principal: p, orgStatus: OrgActive}, nil
	}

	if org == nil || org.ID != p.OrgID || org.Status == OrgDeleted {
		return TenantContext{}, ErrOrphanedPrincipal
	}

	restricted := false
	switch org.Status {
	case OrgSuspended:
		restricted = true
	case OrgTrial:
		if org.TrialEndsAt != nil && now.After(org.TrialEndsAt.Add(trialGrace)) {
			restricted = true
		}
	}

	return TenantContext{
		principal:       p,
		orgStatus:       org.Status,
		writeRestricted: restricted,
	}, nil
}

// Principal returns the caller this context was built for.
func (tc TenantContext) Principal() Principal { return tc.principal }

// OrgStatus returns the organization lifecycle captured at build time.
func (tc TenantContext) OrgStatus() OrgLifecycle { return tc.orgStatus }

// WriteRestricted reports whether mutating permissions are blocked because
// the organization is suspended or its trial ran out.
func (tc TenantContext) WriteRestricted() bool { return tc.writeRestricted }

// IsPlatformScope reports whether the caller holds the platform role.
func (tc TenantContext) IsPlatformScope() bool {
	return tc.principal.Role == RolePlatformAdmin
}

// CanAccessOrganization reports whether the caller can reach the
// organization at all: platform scope reaches every organization, everyone
// else only their own. Organization-scope permissions are narrower than
// this; the gate holds even platform callers to their own organization for
// those.
func (tc TenantContext) CanAccessOrganization(orgID snowflake.ID) bool {
	if orgID == 0 {
		return false
	}
	if tc.IsPlatformScope() {
		return true
	}
	return tc.principal.OrgID == orgID
}

// WithinOwnOrganization is the strict boundary used by the gate for
// organization-scope permissions: the resource must sit in the caller's own
// organization, platform role or not.
func (tc TenantContext) WithinOwnOrganization(orgID snowflake.ID) bool {
	return orgID != 0 && tc.principal.OrgID == orgID
}

// CanAccessTeam reports whether the caller can act on the given team of the
// given organization: the team must be in the caller's own organization, and
// the caller must either sit in that team or hold organization-wide breadth.
func (tc TenantContext) CanAccessTeam(orgID, teamID snowflake.ID) bool {
	if teamID == 0 || !tc.WithinOwnOrganization(orgID) {
		return false
	}
	if tc.hasOrgWideBreadth() {
		return true
	}
	return tc.principal.TeamID == teamID
}

// CanAccessOwner reports whether records owned by the given user are within
// the caller's reach: own records always, team records for callers with team
// breadth, organization records for callers with organization breadth. Reach
// is not permission; the gate still checks the specific permission on top.
func (tc TenantContext) CanAccessOwner(ownerID, ownerOrgID, ownerTeamID snowflake.ID) bool {
	if ownerID == 0 {
		return false
	}
	if ownerID == tc.principal.UserID {
		return true
	}
	if tc.hasOrgWideBreadth() {
		return tc.WithinOwnOrganization(ownerOrgID)
	}
	if tc.principal.Role == RoleTeamManager {
		return tc.CanAccessTeam(ownerOrgID, ownerTeamID)
	}
	return false
}

func (tc TenantContext) hasOrgWideBreadth() bool {
	return tc.principal.Role == RolePlatformAdmin || tc.principal.Role == RoleOrgAdmin
}
