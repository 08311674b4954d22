package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

var contextNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func activeOrg(id snowflake.ID) *OrganizationState {
	return &OrganizationState{ID: id, Status: OrgActive}
}

func buildContext(t *testing.T, p Principal, org *OrganizationState) TenantContext {
	t.Helper()
	tc, err := BuildTenantContext(p, org, contextNow, 7*24*time.Hour)
	require.NoError(t, err)
	return tc
}

func TestBuildTenantContextRejectsOrphans(t *testing.T) {
	member := Principal{UserID: 10, OrgID: 100, Role: RoleMember}

	cases := map[string]struct {
		principal Principal
		org       *OrganizationState
	}{
		"organization missing":  {member, nil},
		"organization mismatch": {member, activeOrg(999)},
		"organization deleted":  {member, &OrganizationState{ID: 100, Status: OrgDeleted}},
		"no user id":            {Principal{OrgID: 100, Role: RoleMember}, activeOrg(100)},
		"member without org":    {Principal{UserID: 10, Role: RoleMember}, nil},
	}
	for name, tt := range cases {
		_, err := BuildTenantContext(tt.principal, tt.org, contextNow, 0)
		require.ErrorIs(t, err, ErrOrphanedPrincipal, name)
	}
}

func TestBuildTenantContextRejectsInvalidRole(t *testing.T) {
	p := Principal{UserID: 10, OrgID: 100, Role: Role("OVERLORD")}
	_, err := BuildTenantContext(p, activeOrg(100), contextNow, 0)
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestPlatformOperatorWithoutTenant(t *testing.T) {
	p := Principal{UserID: 1, Role: RolePlatformAdmin}

	tc, err := BuildTenantContext(p, nil, contextNow, 0)
	require.NoError(t, err)
	require.Equal(t, OrgActive, tc.OrgStatus())
	require.False(t, tc.WriteRestricted())
	require.True(t, tc.IsPlatformScope())
}

func TestWriteRestrictionFollowsLifecycle(t *testing.T) {
	p := Principal{UserID: 10, OrgID: 100, Role: RoleOrgAdmin}
	future := contextNow.Add(24 * time.Hour)
	lapsed := contextNow.Add(-10 * 24 * time.Hour)
	inGrace := contextNow.Add(-2 * 24 * time.Hour)

	cases := map[string]struct {
		org        OrganizationState
		restricted bool
	}{
		"active":              {OrganizationState{ID: 100, Status: OrgActive}, false},
		"suspended":           {OrganizationState{ID: 100, Status: OrgSuspended}, true},
		"trial still running": {OrganizationState{ID: 100, Status: OrgTrial, TrialEndsAt: &future}, false},
		"trial within grace":  {OrganizationState{ID: 100, Status: OrgTrial, TrialEndsAt: &inGrace}, false},
		"trial past grace":    {OrganizationState{ID: 100, Status: OrgTrial, TrialEndsAt: &lapsed}, true},
		"trial without end":   {OrganizationState{ID: 100, Status: OrgTrial}, false},
	}
	for name, tt := range cases {
		org := tt.org
		tc, err := BuildTenantContext(p, &org, contextNow, 7*24*time.Hour)
		require.NoError(t, err, name)
		require.Equal(t, tt.restricted, tc.WriteRestricted(), name)
	}
}

func TestCanAccessOrganization(t *testing.T) {
	admin := buildContext(t, Principal{UserID: 10, OrgID: 100, Role: RoleOrgAdmin}, activeOrg(100))
	require.True(t, admin.CanAccessOrganization(100))
	require.False(t, admin.CanAccessOrganization(200))
	require.False(t, admin.CanAccessOrganization(0))

	platform := buildContext(t, Principal{UserID: 1, OrgID: 5, Role: RolePlatformAdmin}, activeOrg(5))
	require.True(t, platform.CanAccessOrganization(5))
	require.True(t, platform.CanAccessOrganization(200))
	require.False(t, platform.CanAccessOrganization(0))

	// Reach is not the organization-scope boundary: that one stays strict
	// even for the platform role.
	require.True(t, platform.WithinOwnOrganization(5))
	require.False(t, platform.WithinOwnOrganization(200))
}

func TestCanAccessTeam(t *testing.T) {
	member := buildContext(t, Principal{UserID: 10, OrgID: 100, TeamID: 7, Role: RoleMember}, activeOrg(100))
	require.True(t, member.CanAccessTeam(100, 7))
	require.False(t, member.CanAccessTeam(100, 8))
	require.False(t, member.CanAccessTeam(200, 7))
	require.False(t, member.CanAccessTeam(100, 0))

	admin := buildContext(t, Principal{UserID: 11, OrgID: 100, Role: RoleOrgAdmin}, activeOrg(100))
	require.True(t, admin.CanAccessTeam(100, 7))
	require.True(t, admin.CanAccessTeam(100, 8))
	require.False(t, admin.CanAccessTeam(200, 7))
}

func TestCanAccessOwner(t *testing.T) {
	manager := buildContext(t, Principal{UserID: 20, OrgID: 100, TeamID: 7, Role: RoleTeamManager}, activeOrg(100))
	require.True(t, manager.CanAccessOwner(20, 100, 7), "own records")
	require.True(t, manager.CanAccessOwner(21, 100, 7), "teammate records")
	require.False(t, manager.CanAccessOwner(22, 100, 8), "other team")
	require.False(t, manager.CanAccessOwner(23, 200, 7), "other organization")
	require.False(t, manager.CanAccessOwner(0, 100, 7))

	admin := buildContext(t, Principal{UserID: 30, OrgID: 100, Role: RoleOrgAdmin}, activeOrg(100))
	require.True(t, admin.CanAccessOwner(21, 100, 7))
	require.False(t, admin.CanAccessOwner(40, 200, 9), "other organization")

	member := buildContext(t, Principal{UserID: 50, OrgID: 100, TeamID: 7, Role: RoleMember}, activeOrg(100))
	require.True(t, member.CanAccessOwner(50, 100, 7))
	require.False(t, member.CanAccessOwner(21, 100, 7), "teammate records stay closed to members")
}
