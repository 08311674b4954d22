package domain

import "github.com/bwmarrin/snowflake"

// EvaluateAssignment decides whether the caller may hand a record to the
// target owner. target is the resolved membership of the proposed owner (nil
// when no such user exists); teamRoster is the materialized roster of the
// caller's team, consulted only for team managers.
//
// Members can never reassign, not even to themselves. Managers assign within
// their own team, admins within their own organization, and the platform
// role to any active user. Whether the caller may touch the record being
// handed over is the gate's question, asked separately.
func EvaluateAssignment(tc TenantContext, target *Membership, teamRoster []snowflake.ID) Decision {
	caller := tc.Principal()

	switch caller.Role {
	case RoleMember:
		return Deny(ReasonAssignmentNotPermitted)
	case RoleTeamManager, RoleOrgAdmin, RolePlatformAdmin:
	default:
		return Deny(ReasonAssignmentNotPermitted)
	}

	if target == nil || !target.Active() {
		return Deny(ReasonTargetUnknown)
	}

	if tc.WriteRestricted() {
		return Deny(ReasonOrgSuspended)
	}

	if caller.Role == RolePlatformAdmin {
		return Allow()
	}

	if !tc.WithinOwnOrganization(target.OrgID) {
		return Deny(ReasonTargetOutsideOrganization)
	}

	if caller.Role == RoleTeamManager {
		if caller.TeamID == 0 || target.TeamID != caller.TeamID {
			return Deny(ReasonTargetOutsideTeam)
		}
		if !rosterContains(teamRoster, target.UserID) {
			return Deny(ReasonTargetOutsideTeam)
		}
	}

	return Allow()
}

func rosterContains(roster []snowflake.ID, userID snowflake.ID) bool {
	for _, id := range roster {
		if id == userID {
			return true
		}
	}
	return false
}
