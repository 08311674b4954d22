package domain

import "github.com/bwmarrin/snowflake"

// Principal is the authenticated caller as resolved for a single request.
// It is always rebuilt from the membership row; role and team are never
// trusted from a session payload.
type Principal struct {
	UserID snowflake.ID
	// OrgID is zero only for the reserved platform operator account. For
	// every other principal a zero org id means the membership row is gone
	// and the principal is orphaned.
	OrgID  snowflake.ID
	TeamID snowflake.ID
	Role   Role
}

// Validate rejects principals that cannot participate in authorization at
// all. Deeper checks (does the organization still exist, is it suspended)
// happen in BuildTenantContext against resolved organization state.
func (p Principal) Validate() error {
	if !p.Role.Valid() {
		return ErrInvalidRole
	}
	if p.UserID == 0 {
		return ErrOrphanedPrincipal
	}
	if p.OrgID == 0 && p.Role != RolePlatformAdmin {
		return ErrOrphanedPrincipal
	}
	return nil
}

// Membership is the persisted org/team/role placement of a user, resolved
// fresh per request by the membership layer.
type Membership struct {
	UserID snowflake.ID
	OrgID  snowflake.ID
	TeamID snowflake.ID
	Role   Role
	Status MemberStatus
}

// MemberStatus is the lifecycle of a membership row.
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInvited  MemberStatus = "invited"
	MemberDisabled MemberStatus = "disabled"
)

// Active reports whether the membership can act or be acted on.
func (m Membership) Active() bool {
	return m.Status == MemberActive
}

// Principal converts an active membership into a request principal.
func (m Membership) Principal() Principal {
	return Principal{
		UserID: m.UserID,
		OrgID:  m.OrgID,
		TeamID: m.TeamID,
		Role:   m.Role,
	}
}
