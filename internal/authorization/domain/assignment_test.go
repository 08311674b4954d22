package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

func activeMember(userID, orgID, teamID snowflake.ID) *Membership {
	return &Membership{UserID: userID, OrgID: orgID, TeamID: teamID, Role: RoleMember, Status: MemberActive}
}

func TestMembersNeverAssign(t *testing.T) {
	member := buildContext(t, Principal{UserID: 30, OrgID: 100, TeamID: 7, Role: RoleMember}, activeOrg(100))

	targets := []*Membership{
		activeMember(31, 100, 7),
		activeMember(30, 100, 7), // not even to themselves
	}
	for _, target := range targets {
		decision := EvaluateAssignment(member, target, []snowflake.ID{30, 31})
		require.True(t, decision.Denied())
		require.Equal(t, ReasonAssignmentNotPermitted, decision.Reason)
	}
}

func TestManagerAssignsWithinRoster(t *testing.T) {
	manager := buildContext(t, Principal{UserID: 20, OrgID: 100, TeamID: 7, Role: RoleTeamManager}, activeOrg(100))
	roster := []snowflake.ID{20, 21, 22}

	decision := EvaluateAssignment(manager, activeMember(21, 100, 7), roster)
	require.True(t, decision.Allowed)

	cases := []struct {
		name   string
		target *Membership
		reason ReasonCode
	}{
		{"target on another team", activeMember(40, 100, 8), ReasonTargetOutsideTeam},
		{"target claims the team but is off the roster", activeMember(41, 100, 7), ReasonTargetOutsideTeam},
		{"target in another organization", activeMember(50, 200, 7), ReasonTargetOutsideOrganization},
	}
	for _, tt := range cases {
		decision := EvaluateAssignment(manager, tt.target, roster)
		require.True(t, decision.Denied(), tt.name)
		require.Equal(t, tt.reason, decision.Reason, tt.name)
	}

	// A manager not placed in any team has no roster to assign within.
	teamless := buildContext(t, Principal{UserID: 20, OrgID: 100, Role: RoleTeamManager}, activeOrg(100))
	decision = EvaluateAssignment(teamless, activeMember(21, 100, 7), roster)
	require.Equal(t, ReasonTargetOutsideTeam, decision.Reason)
}

func TestAdminAssignsAcrossTeamsWithinOrg(t *testing.T) {
	admin := buildContext(t, Principal{UserID: 10, OrgID: 100, TeamID: 1, Role: RoleOrgAdmin}, activeOrg(100))

	decision := EvaluateAssignment(admin, activeMember(40, 100, 8), nil)
	require.True(t, decision.Allowed, "any team of the own organization")

	decision = EvaluateAssignment(admin, activeMember(50, 200, 8), nil)
	require.Equal(t, ReasonTargetOutsideOrganization, decision.Reason)
}

func TestPlatformRoleAssignsAcrossOrganizations(t *testing.T) {
	platform := buildContext(t, Principal{UserID: 1, OrgID: 5, Role: RolePlatformAdmin}, activeOrg(5))

	decision := EvaluateAssignment(platform, activeMember(50, 200, 8), nil)
	require.True(t, decision.Allowed)

	// The target still has to exist and be active.
	decision = EvaluateAssignment(platform, nil, nil)
	require.Equal(t, ReasonTargetUnknown, decision.Reason)
}

func TestAssignmentRequiresAnActiveTarget(t *testing.T) {
	admin := buildContext(t, Principal{UserID: 10, OrgID: 100, Role: RoleOrgAdmin}, activeOrg(100))

	for _, status := range []MemberStatus{MemberInvited, MemberDisabled} {
		target := activeMember(40, 100, 8)
		target.Status = status
		decision := EvaluateAssignment(admin, target, nil)
		require.Equal(t, ReasonTargetUnknown, decision.Reason, string(status))
	}

	decision := EvaluateAssignment(admin, nil, nil)
	require.Equal(t, ReasonTargetUnknown, decision.Reason)
}

func TestAssignmentBlockedWhileSuspended(t *testing.T) {
	suspended := &OrganizationState{ID: 100, Status: OrgSuspended}
	admin := buildContext(t, Principal{UserID: 10, OrgID: 100, Role: RoleOrgAdmin}, suspended)

	decision := EvaluateAssignment(admin, activeMember(40, 100, 8), nil)
	require.Equal(t, ReasonOrgSuspended, decision.Reason)
}
