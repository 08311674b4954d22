package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/cache"
	"github.com/smallbiznis/sellora/internal/clock"
	"github.com/smallbiznis/sellora/internal/observability/metrics"
	"github.com/smallbiznis/sellora/internal/organization/domain"
	"github.com/smallbiznis/sellora/internal/ratelimit"
	"github.com/smallbiznis/sellora/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// New organizations run a two week trial before billing starts. The access
// layer adds the configured grace window on top.
const defaultTrialDays = 14

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Audit   auditdomain.Service
	Limiter *ratelimit.DenyAuditLimiter `optional:"true"`
	Cache   cache.AccessResolverCache   `optional:"true"`
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	auditor auditdomain.Service
	limiter *ratelimit.DenyAuditLimiter
	cache   cache.AccessResolverCache
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("organization.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		auditor: p.Audit,
		limiter: p.Limiter,
		cache:   p.Cache,
	}
}

// AsOrganizationResolver exposes the service to the authorization layer.
func AsOrganizationResolver(svc domain.Service) authzdomain.OrganizationResolver {
	return svc
}

func (s *service) Create(ctx context.Context, creatorID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if creatorID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	trialEndsAt := now.Add(defaultTrialDays * 24 * time.Hour)
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:           orgID,
		Name:         name,
		Slug:         slug.Make(name),
		SupportEmail: strings.TrimSpace(req.SupportEmail),
		Status:       string(authzdomain.OrgTrial),
		TrialEndsAt:  &trialEndsAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSlugTaken
			}
			return err
		}

		member := domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    creatorID,
			Role:      string(authzdomain.RoleOrgAdmin),
			Status:    string(authzdomain.MemberActive),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.AddMember(ctx, member); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// Membership is unique per user; the creator already
				// belongs to another organization.
				return domain.ErrMemberExists
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateMember(creatorID, 0)
	s.audit(ctx, orgID, "organization.created", "organization", orgID.String(), map[string]any{
		"name":    name,
		"slug":    org.Slug,
		"creator": creatorID.String(),
	})

	return organizationResponse(&org), nil
}

func (s *service) Get(ctx context.Context, orgID snowflake.ID) (*domain.OrganizationResponse, error) {
	org, err := s.getLiveOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return organizationResponse(org), nil
}

func (s *service) Suspend(ctx context.Context, orgID snowflake.ID) error {
	org, err := s.getLiveOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.Status == string(authzdomain.OrgSuspended) {
		return nil
	}

	now := s.clock.Now().UTC()
	if err := s.repo.SetOrganizationStatus(ctx, org.ID, string(authzdomain.OrgSuspended), &now, nil); err != nil {
		return err
	}

	s.audit(ctx, org.ID, "organization.suspended", "organization", org.ID.String(), map[string]any{
		"previous_status": org.Status,
	})
	return nil
}

func (s *service) Reactivate(ctx context.Context, orgID snowflake.ID) error {
	org, err := s.getLiveOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.Status == string(authzdomain.OrgActive) {
		return nil
	}

	// Reactivation ends any trial; a paid plan is the only way back.
	if err := s.repo.SetOrganizationStatus(ctx, org.ID, string(authzdomain.OrgActive), nil, nil); err != nil {
		return err
	}

	s.audit(ctx, org.ID, "organization.reactivated", "organization", org.ID.String(), map[string]any{
		"previous_status": org.Status,
	})
	return nil
}

func (s *service) SoftDelete(ctx context.Context, orgID snowflake.ID) error {
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org == nil {
		return domain.ErrOrgNotFound
	}
	if org.Status == string(authzdomain.OrgDeleted) {
		return nil
	}

	now := s.clock.Now().UTC()
	if err := s.repo.SetOrganizationStatus(ctx, org.ID, string(authzdomain.OrgDeleted), org.SuspendedAt, &now); err != nil {
		return err
	}

	// Memberships stay in place; context building orphans them against the
	// deleted organization.
	s.audit(ctx, org.ID, "organization.deleted", "organization", org.ID.String(), map[string]any{
		"previous_status": org.Status,
	})
	return nil
}

func (s *service) CreateTeam(ctx context.Context, orgID snowflake.ID, req domain.CreateTeamRequest) (*domain.TeamResponse, error) {
	if _, err := s.getLiveOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	team := domain.Team{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrTeamNameTaken
		}
		return nil, err
	}

	s.audit(ctx, orgID, "team.created", "team", team.ID.String(), map[string]any{
		"name": name,
	})
	return teamResponse(team), nil
}

func (s *service) ListTeams(ctx context.Context, orgID snowflake.ID) ([]domain.TeamResponse, error) {
	if _, err := s.getLiveOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	teams, err := s.repo.ListTeams(ctx, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.TeamResponse, 0, len(teams))
	for _, team := range teams {
		resp = append(resp, *teamResponse(team))
	}
	return resp, nil
}

func (s *service) AddMember(ctx context.Context, orgID snowflake.ID, req domain.AddMemberRequest) (*domain.MemberResponse, error) {
	if _, err := s.getLiveOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	role, err := grantableRole(req.Role)
	if err != nil {
		return nil, err
	}

	if req.TeamID != 0 {
		team, err := s.repo.GetTeam(ctx, orgID, req.TeamID)
		if err != nil {
			return nil, err
		}
		if team == nil {
			return nil, domain.ErrTeamNotFound
		}
	}

	now := s.clock.Now().UTC()
	member := domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    req.UserID,
		TeamID:    req.TeamID,
		Role:      string(role),
		Status:    string(authzdomain.MemberActive),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrMemberExists
		}
		return nil, err
	}

	s.invalidateMember(req.UserID, req.TeamID)
	s.audit(ctx, orgID, "organization.member_added", "user", req.UserID.String(), map[string]any{
		"role":    string(role),
		"team_id": req.TeamID.String(),
	})
	return memberResponse(member), nil
}

func (s *service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberResponse, error) {
	if _, err := s.getLiveOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.MemberResponse, 0, len(members))
	for _, member := range members {
		resp = append(resp, *memberResponse(member))
	}
	return resp, nil
}

func (s *service) UpdateMemberRole(ctx context.Context, orgID, userID snowflake.ID, rawRole string) error {
	member, err := s.getMemberInOrg(ctx, orgID, userID)
	if err != nil {
		return err
	}

	role, err := grantableRole(rawRole)
	if err != nil {
		return err
	}
	if member.Role == string(role) {
		return nil
	}

	if member.Role == string(authzdomain.RoleOrgAdmin) {
		if err := s.requireAnotherAdmin(ctx, orgID); err != nil {
			return err
		}
	}

	if err := s.repo.UpdateMemberRole(ctx, orgID, userID, string(role)); err != nil {
		return err
	}

	s.invalidateMember(userID, member.TeamID)
	s.audit(ctx, orgID, "organization.member_role_changed", "user", userID.String(), map[string]any{
		"from": member.Role,
		"to":   string(role),
	})
	return nil
}

func (s *service) AssignMemberTeam(ctx context.Context, orgID, userID, teamID snowflake.ID) error {
	member, err := s.getMemberInOrg(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if member.TeamID == teamID {
		return nil
	}

	// Zero unassigns; anything else must be a team of this organization.
	if teamID != 0 {
		team, err := s.repo.GetTeam(ctx, orgID, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return domain.ErrTeamNotFound
		}
	}

	if err := s.repo.UpdateMemberTeam(ctx, orgID, userID, teamID); err != nil {
		return err
	}

	s.invalidateMember(userID, member.TeamID)
	s.invalidateRoster(teamID)
	s.audit(ctx, orgID, "organization.member_team_changed", "user", userID.String(), map[string]any{
		"from_team_id": member.TeamID.String(),
		"to_team_id":   teamID.String(),
	})
	return nil
}

func (s *service) RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error {
	member, err := s.getMemberInOrg(ctx, orgID, userID)
	if err != nil {
		return err
	}

	if member.Role == string(authzdomain.RoleOrgAdmin) {
		if err := s.requireAnotherAdmin(ctx, orgID); err != nil {
			return err
		}
	}

	if err := s.repo.RemoveMember(ctx, orgID, userID); err != nil {
		return err
	}

	s.invalidateMember(userID, member.TeamID)
	s.audit(ctx, orgID, "organization.member_removed", "user", userID.String(), map[string]any{
		"role": member.Role,
	})
	return nil
}

func (s *service) TransferMember(ctx context.Context, userID, fromOrgID, toOrgID snowflake.ID) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	if fromOrgID == 0 || toOrgID == 0 {
		return domain.ErrInvalidOrganization
	}
	if fromOrgID == toOrgID {
		return domain.ErrSameOrganization
	}

	target, err := s.repo.GetOrganization(ctx, toOrgID)
	if err != nil {
		return err
	}
	if target == nil {
		return domain.ErrOrgNotFound
	}
	switch target.Status {
	case string(authzdomain.OrgActive), string(authzdomain.OrgTrial):
	default:
		return domain.ErrTargetOrgNotActive
	}

	lock, locked, err := s.limiter.TryLockTransfer(ctx, fromOrgID.String(), userID.String())
	if err != nil {
		return err
	}
	if !locked {
		return domain.ErrTransferInProgress
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.log.Warn("transfer lock release failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
	}()

	var previousTeam snowflake.ID
	txStart := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		member, err := repo.GetMemberForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if member == nil || member.OrgID != fromOrgID {
			return domain.ErrMemberNotFound
		}
		previousTeam = member.TeamID

		if member.Role == string(authzdomain.RoleOrgAdmin) {
			count, err := repo.CountMembersWithRole(ctx, fromOrgID, string(authzdomain.RoleOrgAdmin))
			if err != nil {
				return err
			}
			if count <= 1 {
				return domain.ErrLastOrgAdmin
			}
		}

		// Transfers always land as MEMBER with no team; the destination
		// admin promotes explicitly.
		return repo.UpdateMemberPlacement(ctx, userID, toOrgID, 0, string(authzdomain.RoleMember))
	})
	metrics.Access().ObserveDBLockWait(metrics.LockResourceMemberTransfer, time.Since(txStart))
	if err != nil {
		return err
	}

	s.invalidateMember(userID, previousTeam)
	s.audit(ctx, fromOrgID, "organization.member_transferred", "user", userID.String(), map[string]any{
		"from_org_id": fromOrgID.String(),
		"to_org_id":   toOrgID.String(),
	})
	return nil
}

func (s *service) OrganizationState(ctx context.Context, orgID snowflake.ID) (*authzdomain.OrganizationState, error) {
	if orgID == 0 {
		return nil, nil
	}

	start := time.Now()
	org, err := s.repo.GetOrganization(ctx, orgID)
	metrics.Access().ObserveResolverLatency("organization", time.Since(start))
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, nil
	}

	status := authzdomain.OrgLifecycle(org.Status)
	switch status {
	case authzdomain.OrgActive, authzdomain.OrgTrial, authzdomain.OrgSuspended, authzdomain.OrgDeleted:
	default:
		// Unknown lifecycle strings restrict rather than allow.
		s.log.Warn("unknown organization status, treating as suspended",
			zap.String("org_id", org.ID.String()),
			zap.String("status", org.Status),
		)
		status = authzdomain.OrgSuspended
	}

	return &authzdomain.OrganizationState{
		ID:          org.ID,
		Status:      status,
		TrialEndsAt: org.TrialEndsAt,
	}, nil
}

func (s *service) getLiveOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil || org.Status == string(authzdomain.OrgDeleted) {
		return nil, domain.ErrOrgNotFound
	}
	return org, nil
}

func (s *service) getMemberInOrg(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	member, err := s.repo.GetMemberByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if member == nil || member.OrgID != orgID {
		return nil, domain.ErrMemberNotFound
	}
	return member, nil
}

func (s *service) requireAnotherAdmin(ctx context.Context, orgID snowflake.ID) error {
	count, err := s.repo.CountMembersWithRole(ctx, orgID, string(authzdomain.RoleOrgAdmin))
	if err != nil {
		return err
	}
	if count <= 1 {
		return domain.ErrLastOrgAdmin
	}
	return nil
}

// grantableRole parses a role through the closed enum. The platform role is
// seeded at bootstrap, never granted over the API.
func grantableRole(raw string) (authzdomain.Role, error) {
	role := authzdomain.Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() || role == authzdomain.RolePlatformAdmin {
		return "", authzdomain.ErrInvalidRole
	}
	return role, nil
}

func (s *service) invalidateMember(userID, teamID snowflake.ID) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateMembership(userID)
	s.invalidateRoster(teamID)
}

func (s *service) invalidateRoster(teamID snowflake.ID) {
	if s.cache == nil || teamID == 0 {
		return
	}
	s.cache.InvalidateRoster(teamID)
}

func (s *service) audit(ctx context.Context, orgID snowflake.ID, action, targetType, targetID string, metadata map[string]any) {
	var target *string
	if targetID != "" {
		target = &targetID
	}
	// The audit service logs its own failures; organization flows never
	// fail on the trail.
	_ = s.auditor.Record(ctx, auditdomain.Entry{
		OrgID:      &orgID,
		Action:     action,
		TargetType: targetType,
		TargetID:   target,
		Metadata:   metadata,
	})
}

func organizationResponse(org *domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:           org.ID.String(),
		Name:         org.Name,
		Slug:         org.Slug,
		SupportEmail: org.SupportEmail,
		Status:       org.Status,
		TrialEndsAt:  org.TrialEndsAt,
		CreatedAt:    org.CreatedAt,
	}
}

func teamResponse(team domain.Team) *domain.TeamResponse {
	return &domain.TeamResponse{
		ID:        team.ID.String(),
		OrgID:     team.OrgID.String(),
		Name:      team.Name,
		CreatedAt: team.CreatedAt,
	}
}

func memberResponse(member domain.OrganizationMember) *domain.MemberResponse {
	resp := &domain.MemberResponse{
		UserID:   member.UserID.String(),
		OrgID:    member.OrgID.String(),
		Role:     member.Role,
		Status:   member.Status,
		JoinedAt: member.CreatedAt,
	}
	if member.TeamID != 0 {
		resp.TeamID = member.TeamID.String()
	}
	return resp
}
