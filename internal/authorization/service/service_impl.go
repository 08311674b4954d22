package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/clock"
	"github.com/smallbiznis/sellora/internal/config"
	"github.com/smallbiznis/sellora/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Orgs     domain.OrganizationResolver
	Members  domain.MembershipResolver
	Access   *config.AccessConfigHolder
	Clock    clock.Clock
	Metrics  *metrics.Metrics    `optional:"true"`
	Deny     domain.DenyRecorder `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	orgs     domain.OrganizationResolver
	members  domain.MembershipResolver
	access   *config.AccessConfigHolder
	clock    clock.Clock
	metrics  *metrics.Metrics
	deny     domain.DenyRecorder
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		orgs:     p.Orgs,
		members:  p.Members,
		access:   p.Access,
		clock:    p.Clock,
		metrics:  p.Metrics,
		deny:     p.Deny,
	}
}

// BuildContext resolves the principal's organization once and derives the
// request context from the result. Contexts are request-scoped; nothing here
// caches them.
func (s *Service) BuildContext(ctx context.Context, principal domain.Principal) (domain.TenantContext, error) {
	if err := principal.Validate(); err != nil {
		s.log.Warn("principal rejected",
			zap.String("user_id", principal.UserID.String()),
			zap.Error(err),
		)
		s.metrics.RecordContextBuild(ctx, "rejected")
		return domain.TenantContext{}, err
	}

	var state *domain.OrganizationState
	if principal.OrgID != 0 {
		resolved, err := s.orgs.OrganizationState(ctx, principal.OrgID)
		if err != nil {
			s.metrics.RecordContextBuild(ctx, "error")
			return domain.TenantContext{}, fmt.Errorf("resolve organization %s: %w", principal.OrgID, err)
		}
		state = resolved
	}

	tc, err := domain.BuildTenantContext(principal, state, s.clock.Now(), s.access.Get().TrialGrace())
	if err != nil {
		s.log.Warn("tenant context rejected",
			zap.String("user_id", principal.UserID.String()),
			zap.String("org_id", principal.OrgID.String()),
			zap.Error(err),
		)
		s.metrics.RecordContextBuild(ctx, "rejected")
		return domain.TenantContext{}, err
	}

	s.metrics.RecordContextBuild(ctx, "ok")
	return tc, nil
}

// Authorize runs the gate: enforcer for the role-permission step, then the
// scope ladder and lifecycle restriction. Every denial is counted and handed
// to the deny recorder; the request path never blocks on either.
func (s *Service) Authorize(ctx context.Context, tc domain.TenantContext, permission domain.Permission, resource domain.Resource) (domain.Decision, error) {
	if _, err := domain.ScopeOf(permission); err != nil {
		s.log.Error("permission outside the catalog",
			zap.String("permission", string(permission)),
			zap.String("entity", string(resource.Entity)),
		)
		decision := domain.Deny(domain.ReasonRoleLacksPermission)
		s.recordDecision(ctx, tc, permission, resource, decision)
		return decision, err
	}

	granted, err := s.enforcer.Enforce(roleSubject(tc.Principal().Role), string(permission))
	if err != nil {
		decision := domain.Deny(domain.ReasonRoleLacksPermission)
		s.recordDecision(ctx, tc, permission, resource, decision)
		return decision, fmt.Errorf("enforce %s: %w", permission, err)
	}
	if !granted {
		decision := domain.Deny(domain.ReasonRoleLacksPermission)
		s.recordDecision(ctx, tc, permission, resource, decision)
		return decision, nil
	}

	decision := domain.EvaluateGranted(tc, permission, resource)
	s.recordDecision(ctx, tc, permission, resource, decision)
	return decision, nil
}

// BuildFilter materializes the caller's team roster when the team tier
// applies and narrows from there. A failed roster read fails the request; it
// never widens the filter.
func (s *Service) BuildFilter(ctx context.Context, tc domain.TenantContext, entity domain.EntityType) (domain.Filter, error) {
	needsRoster, err := domain.NeedsTeamRoster(tc, entity)
	if err != nil {
		s.log.Error("entity outside the catalog", zap.String("entity", string(entity)))
		return domain.Filter{}, err
	}

	var roster []snowflake.ID
	if needsRoster {
		roster, err = s.members.TeamMemberIDs(ctx, tc.Principal().TeamID)
		if err != nil {
			s.log.Error("team roster unavailable",
				zap.String("team_id", tc.Principal().TeamID.String()),
				zap.Error(err),
			)
			return domain.Filter{}, domain.ErrMembershipUnavailable
		}
	}

	filter, err := domain.SelectFilter(tc, entity, roster)
	if err != nil {
		return domain.Filter{}, err
	}

	s.metrics.RecordScopeFilter(ctx, string(entity), string(filter.Kind))
	return filter, nil
}

// ValidateAssignment resolves the proposed owner's membership and, for team
// managers, the caller's roster, then applies the assignment rules. Unknown
// targets deny rather than error.
func (s *Service) ValidateAssignment(ctx context.Context, tc domain.TenantContext, targetOwnerID snowflake.ID) (domain.Decision, error) {
	if targetOwnerID == 0 {
		decision := domain.Deny(domain.ReasonTargetUnknown)
		s.recordAssignment(ctx, tc, targetOwnerID, decision)
		return decision, nil
	}

	target, err := s.members.Membership(ctx, targetOwnerID)
	if err != nil {
		s.log.Error("target membership unavailable",
			zap.String("target_user_id", targetOwnerID.String()),
			zap.Error(err),
		)
		return domain.Deny(domain.ReasonTargetUnknown), domain.ErrMembershipUnavailable
	}

	var roster []snowflake.ID
	caller := tc.Principal()
	if caller.Role == domain.RoleTeamManager && caller.TeamID != 0 {
		roster, err = s.members.TeamMemberIDs(ctx, caller.TeamID)
		if err != nil {
			s.log.Error("team roster unavailable",
				zap.String("team_id", caller.TeamID.String()),
				zap.Error(err),
			)
			return domain.Deny(domain.ReasonTargetOutsideTeam), domain.ErrMembershipUnavailable
		}
	}

	decision := domain.EvaluateAssignment(tc, target, roster)
	s.recordAssignment(ctx, tc, targetOwnerID, decision)
	return decision, nil
}

func (s *Service) recordDecision(ctx context.Context, tc domain.TenantContext, permission domain.Permission, resource domain.Resource, decision domain.Decision) {
	s.metrics.RecordAccessDecision(ctx, decision.Allowed, string(decision.Reason))
	if decision.Allowed || s.deny == nil {
		return
	}
	s.deny.RecordDeny(ctx, domain.DenyEvent{
		Principal:  tc.Principal(),
		Permission: permission,
		Resource:   resource,
		Reason:     decision.Reason,
		At:         s.clock.Now(),
	})
}

func (s *Service) recordAssignment(ctx context.Context, tc domain.TenantContext, targetOwnerID snowflake.ID, decision domain.Decision) {
	s.metrics.RecordAssignmentCheck(ctx, decision.Allowed, string(decision.Reason))
	if decision.Allowed || s.deny == nil {
		return
	}
	s.deny.RecordDeny(ctx, domain.DenyEvent{
		Principal: tc.Principal(),
		Resource: domain.Resource{
			OrgID:   tc.Principal().OrgID,
			OwnerID: targetOwnerID,
		},
		Reason: decision.Reason,
		At:     s.clock.Now(),
	})
}
