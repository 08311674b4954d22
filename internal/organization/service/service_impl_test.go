package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditrepository "github.com/smallbiznis/sellora/internal/audit/repository"
	auditservice "github.com/smallbiznis/sellora/internal/audit/service"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/cache"
	"github.com/smallbiznis/sellora/internal/clock"
	"github.com/smallbiznis/sellora/internal/organization/domain"
	"github.com/smallbiznis/sellora/internal/organization/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orgServiceFixture struct {
	db    *gorm.DB
	svc   domain.Service
	node  *snowflake.Node
	clock *clock.FakeClock
	cache cache.AccessResolverCache
}

func setupOrgService(t *testing.T) *orgServiceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	// SQLite support hack: remove FOR UPDATE clauses
	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate)
	db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate)

	db.Exec(`CREATE TABLE IF NOT EXISTS organizations (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		support_email TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		trial_ends_at TIMESTAMP,
		metadata TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		suspended_at TIMESTAMP,
		deleted_at TIMESTAMP
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS teams (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (org_id, name)
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS organization_members (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL UNIQUE,
		team_id BIGINT NOT NULL DEFAULT 0,
		role TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGINT PRIMARY KEY,
		org_id BIGINT,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMP NOT NULL
	)`)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	resolverCache := cache.NewAccessResolverCache(time.Minute, time.Minute)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.NewRepository(db),
		Clock: fakeClock,
		Audit: auditSvc,
		Cache: resolverCache,
	})

	return &orgServiceFixture{
		db:    db,
		svc:   svc,
		node:  node,
		clock: fakeClock,
		cache: resolverCache,
	}
}

func (f *orgServiceFixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM audit_logs WHERE action = ?`, action).Scan(&count).Error)
	return count
}

func (f *orgServiceFixture) mustCreateOrg(t *testing.T, creatorID snowflake.ID, name string) snowflake.ID {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), creatorID, domain.CreateOrganizationRequest{Name: name})
	require.NoError(t, err)
	orgID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)
	return orgID
}

func TestCreateOrganizationBootstrapsAdmin(t *testing.T) {
	f := setupOrgService(t)
	ctx := context.Background()
	creator := f.node.Generate()

	resp, err := f.svc.Create(ctx, creator, domain.CreateOrganizationRequest{
		Name:         "Acme Corp",
		SupportEmail: "help@acme.test",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", resp.Slug)
	assert.Equal(t, string(authzdomain.OrgTrial), resp.Status)
	require.NotNil(t, resp.TrialEndsAt)
	assert.Equal(t, f.clock.Now().Add(14*24*time.Hour), resp.TrialEndsAt.UTC())

	orgID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	members, err := f.svc.ListMembers(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, creator.String(), members[0].UserID)
	assert.Equal(t, string(authzdomain.RoleOrgAdmin), members[0].Role)

	assert.Equal(t, int64(1), f.auditCount(t, "organization.created"))
}

func TestCreateRollsBackWhenCreatorAlreadyPlaced(t *testing.T) {
	f := setupOrgService(t)
	ctx := context.Background()
	creator := f.node.Generate()

	f.mustCreateOrg(t, creator, "First Org")

	_, err := f.svc.Create(ctx, creator, domain.CreateOrganizationRequest{Name: "Second Org"})
	assert.ErrorIs(t, err, domain.ErrMemberExists)

	// The organization insert must not survive the failed member insert.
	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM organizations WHERE slug = ?`, "second-org").Scan(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestLifecycleTransitions(t *testing.T) {
	f := setupOrgService(t)
	ctx := context.Background()
	orgID := f.mustCreateOrg(t, f.node.Generate(), "Lifecycle Org")

	require.NoError(t, f.svc.Suspend(ctx, orgID))
	state, err := f.svc.OrganizationState(ctx, orgID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, authzdomain.OrgSuspended, state.Status)
	assert.Equal(t, int64(1), f.auditCount(t, "organization.suspended"))

	// Idempotent repeat stays quiet.
	require.NoError(t, f.svc.Suspend(ctx, orgID))
	assert.Equal(t, int64(1), f.auditCount(t, "organization.suspended"))

	require.NoError(t, f.svc.Reactivate(ctx, orgID))
	state, err = f.svc.OrganizationState(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, authzdomain.OrgActive, state.Status)

	require.NoError(t, f.svc.SoftDelete(ctx, orgID))
	_, err = f.svc.Get(ctx, orgID)
	assert.ErrorIs(t, err, domain.ErrOrgNotFound)

	// The row survives for audit references and resolves as deleted.
	state, err = f.svc.OrganizationState(ctx, orgID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, authzdomain.OrgDeleted, state.Status)

	require.NoError(t, f.svc.SoftDelete(ctx, orgID))
	assert.Equal(t, int64(1), f.auditCount(t, "organization.deleted"))
}

func TestOrganizationStateUnknownStatusRestricts(t *testing.T) {
	f := setupOrgService(t)
	ctx := context.Background()
	orgID := f.mustCreateOrg(t, f.node.Generate(), "Odd Org")

	require.NoError(t, f.db.Exec(`UPDATE organizations SET status = 'frozen' WHERE id = ?`, orgID).Error)

	state, err := f.svc.OrganizationState(ctx, orgID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, authzdomain.OrgSuspended, state.Status)
}

func TestOrganizationStateMissingOrg(t *testing.T) {
	f := setupOrgService(t)

	state, err := f.svc.OrganizationState(context.Background(), f.node.Generate())
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestAddMemberValidation(t *testing.T) {
	f := setupOrgService(t)
	ctx := context.Background()
	orgID := f.mustCreateOrg(t, f.node.Generate(), "Member Org")

	t.Run("UnknownRole", func(t *testing.T) {
		_, err := f.svc.AddMember(ctx, orgID, domain.AddMemberRequest{
			UserID: f.node.Generate(),
			Role:   "SUPERVISOR",
		})
		assert.ErrorIs(t, err, authzdomain.ErrInvalidRole)
	})

	t.Run("PlatformRoleNotGrantable", func(t *testing.T) {
		_, err := f.svc.AddMember(ctx, orgID, domain.AddMemberRequest{
			UserID: f.node.Generate(),
			Role:   "PLATFORM_ADMIN",
		})
		assert.ErrorIs(t, err, authzdomain.ErrInvalidRole)
	})

	t.Run("UnknownTeam", func(t *testing.T) {
		_, err := f.svc.AddMember(ctx, orgID, domain.AddMemberRequest{
			UserID: f.node.Generate(),
			TeamID: f.node.Generate(),
			Role:   "MEMBER",
		})
		assert.ErrorIs(t, err, domain.ErrTeamNotFound)
	})

	t.Run("DuplicateUser", func(t *testing.T) {
		userID := f.node.Generate()
		_, err := f.svc.AddMember(ctx, orgID, domain.AddMemberRequest{UserID: userID, Role: "member"})
		require.NoError(t, err)

		_, err = f.svc.AddMember(ctx, orgID, domain.AddMemberRequest{UserID: userID, Role: "MEMBER"})
		assert.ErrorIs(t, err, domain.ErrMemberExists)
	})
}

func TestLastAdminGuard(t *testing.T) {
	f := setupOrgService(t)
	ctx := context.Background()
	creator := f.node.Generate()
	orgID := f.mustCreateOrg(t, creator, "Guarded Org")

	err := f.svc.UpdateMemberRole(ctx, orgID, creator, "MEMBER")
	assert.ErrorIs(t, err, domain.ErrLastOrgAdmin)

	err = f.svc.RemoveMember(ctx, orgID, creator)
	assert.ErrorIs(t, err, domain.ErrLastOrgAdmin)

	second := f.node.Generate()
	_, err = f.svc.AddMember(ctx, orgID, domain.AddMemberRequest{UserID: second, Role: "ORG_ADMIN"})
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateMemberRole(ctx, orgID, creator, "MEMBER"))
	assert.Equal(t, int64(1), f.auditCount(t, "organization.member_role_changed"))
}

func TestAssignMemberTeamInvalidatesRoster(t *testing.T) {
	f := setupOrgService(t)
	ctx := context.Background()
	orgID := f.mustCreateOrg(t, f.node.Generate(), "Team Org")

	team, err := f.svc.CreateTeam(ctx, orgID, domain.CreateTeamRequest{Name: "Sales"})
	require.NoError(t, err)
	teamID, err := snowflake.ParseString(team.ID)
	require.NoError(t, err)

	userID := f.node.Generate()
	_, err = f.svc.AddMember(ctx, orgID, domain.AddMemberRequest{UserID: userID, TeamID: teamID, Role: "MEMBER"})
	require.NoError(t, err)

	f.cache.SetRoster(teamID, []snowflake.ID{userID})

	require.NoError(t, f.svc.AssignMemberTeam(ctx, orgID, userID, 0))

	_, ok := f.cache.GetRoster(teamID)
	assert.False(t, ok, "roster cache must drop on membership moves")
}

func TestCreateTeamDuplicateName(t *testing.T) {
	f := setupOrgService(t)
	ctx := context.Background()
	orgID := f.mustCreateOrg(t, f.node.Generate(), "Dup Team Org")

	_, err := f.svc.CreateTeam(ctx, orgID, domain.CreateTeamRequest{Name: "Sales"})
	require.NoError(t, err)

	_, err = f.svc.CreateTeam(ctx, orgID, domain.CreateTeamRequest{Name: "Sales"})
	assert.ErrorIs(t, err, domain.ErrTeamNameTaken)
}

func TestTransferMember(t *testing.T) {
	f := setupOrgService(t)
	ctx := context.Background()
	creatorOne := f.node.Generate()
	creatorTwo := f.node.Generate()
	orgOne := f.mustCreateOrg(t, creatorOne, "Origin Org")
	orgTwo := f.mustCreateOrg(t, creatorTwo, "Target Org")

	userID := f.node.Generate()
	_, err := f.svc.AddMember(ctx, orgOne, domain.AddMemberRequest{UserID: userID, Role: "TEAM_MANAGER"})
	require.NoError(t, err)

	t.Run("SameOrganization", func(t *testing.T) {
		err := f.svc.TransferMember(ctx, userID, orgOne, orgOne)
		assert.ErrorIs(t, err, domain.ErrSameOrganization)
	})

	t.Run("TargetSuspended", func(t *testing.T) {
		require.NoError(t, f.svc.Suspend(ctx, orgTwo))
		err := f.svc.TransferMember(ctx, userID, orgOne, orgTwo)
		assert.ErrorIs(t, err, domain.ErrTargetOrgNotActive)
		require.NoError(t, f.svc.Reactivate(ctx, orgTwo))
	})

	t.Run("NotAMember", func(t *testing.T) {
		err := f.svc.TransferMember(ctx, f.node.Generate(), orgOne, orgTwo)
		assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	})

	t.Run("LastAdminStays", func(t *testing.T) {
		err := f.svc.TransferMember(ctx, creatorOne, orgOne, orgTwo)
		assert.ErrorIs(t, err, domain.ErrLastOrgAdmin)
	})

	t.Run("MovesAndDemotes", func(t *testing.T) {
		require.NoError(t, f.svc.TransferMember(ctx, userID, orgOne, orgTwo))

		members, err := f.svc.ListMembers(ctx, orgTwo)
		require.NoError(t, err)
		var moved *domain.MemberResponse
		for i := range members {
			if members[i].UserID == userID.String() {
				moved = &members[i]
			}
		}
		require.NotNil(t, moved)
		assert.Equal(t, string(authzdomain.RoleMember), moved.Role)
		assert.Empty(t, moved.TeamID)

		origin, err := f.svc.ListMembers(ctx, orgOne)
		require.NoError(t, err)
		for _, member := range origin {
			assert.NotEqual(t, userID.String(), member.UserID)
		}

		assert.Equal(t, int64(1), f.auditCount(t, "organization.member_transferred"))
	})
}
