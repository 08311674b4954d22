package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/clock"
	"github.com/smallbiznis/sellora/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var serviceNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeOrgs struct {
	states map[snowflake.ID]*domain.OrganizationState
	err    error
}

func (f *fakeOrgs) OrganizationState(_ context.Context, orgID snowflake.ID) (*domain.OrganizationState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.states[orgID], nil
}

type fakeMembers struct {
	memberships   map[snowflake.ID]*domain.Membership
	rosters       map[snowflake.ID][]snowflake.ID
	membershipErr error
	rosterErr     error
	rosterCalls   int
}

func (f *fakeMembers) Membership(_ context.Context, userID snowflake.ID) (*domain.Membership, error) {
	if f.membershipErr != nil {
		return nil, f.membershipErr
	}
	return f.memberships[userID], nil
}

func (f *fakeMembers) TeamMemberIDs(_ context.Context, teamID snowflake.ID) ([]snowflake.ID, error) {
	f.rosterCalls++
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return f.rosters[teamID], nil
}

type denyLog struct {
	events []domain.DenyEvent
}

func (d *denyLog) RecordDeny(_ context.Context, event domain.DenyEvent) {
	d.events = append(d.events, event)
}

type fixture struct {
	svc     domain.Service
	orgs    *fakeOrgs
	members *fakeMembers
	denied  *denyLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	enforcer, err := NewEnforcer()
	require.NoError(t, err)

	orgs := &fakeOrgs{states: map[snowflake.ID]*domain.OrganizationState{
		5:   {ID: 5, Status: domain.OrgActive},
		100: {ID: 100, Status: domain.OrgActive},
	}}
	members := &fakeMembers{
		memberships: map[snowflake.ID]*domain.Membership{
			21: {UserID: 21, OrgID: 100, TeamID: 7, Role: domain.RoleMember, Status: domain.MemberActive},
			40: {UserID: 40, OrgID: 100, TeamID: 8, Role: domain.RoleMember, Status: domain.MemberActive},
			50: {UserID: 50, OrgID: 200, TeamID: 9, Role: domain.RoleMember, Status: domain.MemberActive},
		},
		rosters: map[snowflake.ID][]snowflake.ID{
			7: {20, 21, 22},
		},
	}
	denied := &denyLog{}

	svc := NewService(Params{
		Log:      zap.NewNop(),
		Enforcer: enforcer,
		Orgs:     orgs,
		Members:  members,
		Access:   &config.AccessConfigHolder{},
		Clock:    clock.NewFakeClock(serviceNow),
		Deny:     denied,
	})
	return &fixture{svc: svc, orgs: orgs, members: members, denied: denied}
}

func (f *fixture) context(t *testing.T, p domain.Principal) domain.TenantContext {
	t.Helper()
	tc, err := f.svc.BuildContext(context.Background(), p)
	require.NoError(t, err)
	return tc
}

// The enforcer is seeded from the same role map the pure helpers read; the
// two must give the same answer for every role and permission.
func TestEnforcerAgreesWithRoleMap(t *testing.T) {
	enforcer, err := NewEnforcer()
	require.NoError(t, err)

	for _, role := range domain.AllRoles() {
		for _, perm := range domain.AllPermissions() {
			granted, err := enforcer.Enforce(roleSubject(role), string(perm))
			require.NoError(t, err)
			require.Equal(t, domain.RoleHasPermission(role, perm), granted,
				"role=%s perm=%s", role, perm)
		}
	}

	granted, err := enforcer.Enforce("role:ghost", string(domain.PermSelfDataView))
	require.NoError(t, err)
	require.False(t, granted, "unknown subjects hold nothing")
}

func TestAuthorizeMatchesPureEvaluation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contexts := []domain.TenantContext{
		f.context(t, domain.Principal{UserID: 1, OrgID: 5, Role: domain.RolePlatformAdmin}),
		f.context(t, domain.Principal{UserID: 10, OrgID: 100, Role: domain.RoleOrgAdmin}),
		f.context(t, domain.Principal{UserID: 20, OrgID: 100, TeamID: 7, Role: domain.RoleTeamManager}),
		f.context(t, domain.Principal{UserID: 30, OrgID: 100, TeamID: 7, Role: domain.RoleMember}),
	}
	resources := []domain.Resource{
		{},
		{OrgID: 100},
		{OrgID: 100, TeamID: 7, OwnerID: 30},
		{OrgID: 100, TeamID: 8, OwnerID: 31},
		{OrgID: 200, TeamID: 9, OwnerID: 50},
	}

	for _, tc := range contexts {
		for _, perm := range domain.AllPermissions() {
			for _, res := range resources {
				got, err := f.svc.Authorize(ctx, tc, perm, res)
				require.NoError(t, err)

				want, err := domain.Evaluate(tc, perm, res)
				require.NoError(t, err)
				require.Equal(t, want, got,
					"role=%s perm=%s res=%+v", tc.Principal().Role, perm, res)
			}
		}
	}
}

func TestAuthorizeUnknownPermission(t *testing.T) {
	f := newFixture(t)
	tc := f.context(t, domain.Principal{UserID: 10, OrgID: 100, Role: domain.RoleOrgAdmin})

	decision, err := f.svc.Authorize(context.Background(), tc, domain.Permission("org.world_domination"), domain.Resource{OrgID: 100})
	require.ErrorIs(t, err, domain.ErrUnknownPermission)
	require.True(t, decision.Denied())
}

func TestBuildContextResolvesOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tc, err := f.svc.BuildContext(ctx, domain.Principal{UserID: 10, OrgID: 100, Role: domain.RoleOrgAdmin})
	require.NoError(t, err)
	require.False(t, tc.WriteRestricted())

	// Unknown organizations orphan the principal.
	_, err = f.svc.BuildContext(ctx, domain.Principal{UserID: 10, OrgID: 999, Role: domain.RoleOrgAdmin})
	require.ErrorIs(t, err, domain.ErrOrphanedPrincipal)

	// Roles outside the closed set never form a context.
	_, err = f.svc.BuildContext(ctx, domain.Principal{UserID: 10, OrgID: 100, Role: domain.Role("OWNER")})
	require.ErrorIs(t, err, domain.ErrInvalidRole)

	// A platform operator without an organization skips resolution.
	f.orgs.err = errors.New("store down")
	tc, err = f.svc.BuildContext(ctx, domain.Principal{UserID: 1, Role: domain.RolePlatformAdmin})
	require.NoError(t, err)
	require.True(t, tc.IsPlatformScope())

	// Everyone else surfaces the resolver failure.
	_, err = f.svc.BuildContext(ctx, domain.Principal{UserID: 10, OrgID: 100, Role: domain.RoleOrgAdmin})
	require.ErrorContains(t, err, "store down")
}

func TestBuildContextTracksLifecycle(t *testing.T) {
	f := newFixture(t)
	lapsed := serviceNow.Add(-30 * 24 * time.Hour)
	f.orgs.states[300] = &domain.OrganizationState{ID: 300, Status: domain.OrgTrial, TrialEndsAt: &lapsed}

	tc, err := f.svc.BuildContext(context.Background(), domain.Principal{UserID: 60, OrgID: 300, Role: domain.RoleOrgAdmin})
	require.NoError(t, err)
	require.True(t, tc.WriteRestricted(), "trial lapsed past the grace window")
}

func TestBuildFilterResolvesRosterOnlyWhenNeeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := f.context(t, domain.Principal{UserID: 30, OrgID: 100, TeamID: 7, Role: domain.RoleMember})
	filter, err := f.svc.BuildFilter(ctx, member, domain.EntityContact)
	require.NoError(t, err)
	require.Equal(t, domain.OwnerEquals(30), filter)
	require.Zero(t, f.members.rosterCalls, "the self tier needs no roster")

	manager := f.context(t, domain.Principal{UserID: 20, OrgID: 100, TeamID: 7, Role: domain.RoleTeamManager})
	filter, err = f.svc.BuildFilter(ctx, manager, domain.EntityContact)
	require.NoError(t, err)
	require.Equal(t, domain.OwnerWithinSet([]snowflake.ID{20, 21, 22}), filter)
	require.Equal(t, 1, f.members.rosterCalls)
}

func TestBuildFilterFailsWhenRosterUnavailable(t *testing.T) {
	f := newFixture(t)
	f.members.rosterErr = errors.New("store down")

	manager := f.context(t, domain.Principal{UserID: 20, OrgID: 100, TeamID: 7, Role: domain.RoleTeamManager})
	filter, err := f.svc.BuildFilter(context.Background(), manager, domain.EntityContact)
	require.ErrorIs(t, err, domain.ErrMembershipUnavailable)
	require.Zero(t, filter, "no partial filter alongside the error")
}

func TestBuildFilterUnknownEntity(t *testing.T) {
	f := newFixture(t)
	admin := f.context(t, domain.Principal{UserID: 10, OrgID: 100, Role: domain.RoleOrgAdmin})

	_, err := f.svc.BuildFilter(context.Background(), admin, domain.EntityType("spreadsheet"))
	require.ErrorIs(t, err, domain.ErrUnknownEntity)
}

func TestValidateAssignmentResolvesTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.context(t, domain.Principal{UserID: 10, OrgID: 100, Role: domain.RoleOrgAdmin})

	decision, err := f.svc.ValidateAssignment(ctx, admin, 40)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	// Cross-organization targets deny for org admins.
	decision, err = f.svc.ValidateAssignment(ctx, admin, 50)
	require.NoError(t, err)
	require.Equal(t, domain.ReasonTargetOutsideOrganization, decision.Reason)

	// A zero or unknown target denies without erroring.
	decision, err = f.svc.ValidateAssignment(ctx, admin, 0)
	require.NoError(t, err)
	require.Equal(t, domain.ReasonTargetUnknown, decision.Reason)

	decision, err = f.svc.ValidateAssignment(ctx, admin, 999)
	require.NoError(t, err)
	require.Equal(t, domain.ReasonTargetUnknown, decision.Reason)
}

func TestValidateAssignmentManagerUsesRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	manager := f.context(t, domain.Principal{UserID: 20, OrgID: 100, TeamID: 7, Role: domain.RoleTeamManager})

	decision, err := f.svc.ValidateAssignment(ctx, manager, 21)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = f.svc.ValidateAssignment(ctx, manager, 40)
	require.NoError(t, err)
	require.Equal(t, domain.ReasonTargetOutsideTeam, decision.Reason)
}

func TestValidateAssignmentSurfacesResolverFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.context(t, domain.Principal{UserID: 10, OrgID: 100, Role: domain.RoleOrgAdmin})
	manager := f.context(t, domain.Principal{UserID: 20, OrgID: 100, TeamID: 7, Role: domain.RoleTeamManager})

	f.members.membershipErr = errors.New("store down")
	decision, err := f.svc.ValidateAssignment(ctx, admin, 40)
	require.ErrorIs(t, err, domain.ErrMembershipUnavailable)
	require.Equal(t, domain.ReasonTargetUnknown, decision.Reason)

	f.members.membershipErr = nil
	f.members.rosterErr = errors.New("store down")
	decision, err = f.svc.ValidateAssignment(ctx, manager, 21)
	require.ErrorIs(t, err, domain.ErrMembershipUnavailable)
	require.Equal(t, domain.ReasonTargetOutsideTeam, decision.Reason)
}

func TestDenyRecorderReceivesDenials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := f.context(t, domain.Principal{UserID: 30, OrgID: 100, TeamID: 7, Role: domain.RoleMember})

	decision, err := f.svc.Authorize(ctx, member, domain.PermSelfDataView, domain.Resource{OrgID: 100, OwnerID: 30})
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Empty(t, f.denied.events, "allowed decisions are not recorded")

	decision, err = f.svc.Authorize(ctx, member, domain.PermOrgDataView, domain.Resource{OrgID: 100})
	require.NoError(t, err)
	require.True(t, decision.Denied())
	require.Len(t, f.denied.events, 1)

	event := f.denied.events[0]
	require.Equal(t, domain.ReasonRoleLacksPermission, event.Reason)
	require.Equal(t, domain.PermOrgDataView, event.Permission)
	require.Equal(t, snowflake.ID(30), event.Principal.UserID)
	require.Equal(t, serviceNow, event.At)

	decision, err = f.svc.ValidateAssignment(ctx, member, 21)
	require.NoError(t, err)
	require.True(t, decision.Denied())
	require.Len(t, f.denied.events, 2)
	require.Equal(t, domain.ReasonAssignmentNotPermitted, f.denied.events[1].Reason)
}
