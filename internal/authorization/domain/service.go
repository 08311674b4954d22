package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// OrganizationResolver supplies the lifecycle slice of an organization. The
// organization feature provides the implementation; a nil state means the
// organization does not exist.
type OrganizationResolver interface {
	OrganizationState(ctx context.Context, orgID snowflake.ID) (*OrganizationState, error)
}

// MembershipResolver supplies per-user placement and materialized team
// rosters. Implementations may cache; the service treats every answer as
// already-resolved data and never reaches around it.
type MembershipResolver interface {
	Membership(ctx context.Context, userID snowflake.ID) (*Membership, error)
	TeamMemberIDs(ctx context.Context, teamID snowflake.ID) ([]snowflake.ID, error)
}

// DenyEvent describes one denied check, for audit and rate metrics.
type DenyEvent struct {
	Principal  Principal
	Permission Permission
	Resource   Resource
	Reason     ReasonCode
	At         time.Time
}

// DenyRecorder receives denied decisions. Recording must never block or fail
// the request path.
type DenyRecorder interface {
	RecordDeny(ctx context.Context, event DenyEvent)
}

// Service is the authorization surface the rest of Sellora talks to. Every
// handler builds a fresh TenantContext per request, then consults the gate
// for mutations, the filter builder for reads and the assignment check for
// ownership transfers.
type Service interface {
	// BuildContext resolves the principal's organization and derives the
	// request context. Fails with ErrOrphanedPrincipal or ErrInvalidRole;
	// no context is ever returned alongside an error.
	BuildContext(ctx context.Context, principal Principal) (TenantContext, error)

	// Authorize runs the gate. The error return is reserved for catalog
	// defects (ErrUnknownPermission); business denials come back as a
	// Decision with a reason code.
	Authorize(ctx context.Context, tc TenantContext, permission Permission, resource Resource) (Decision, error)

	// BuildFilter returns the read filter for an entity type, resolving
	// the caller's team roster when the team tier applies. Resolution
	// failures surface as ErrMembershipUnavailable, never as a wider
	// filter.
	BuildFilter(ctx context.Context, tc TenantContext, entity EntityType) (Filter, error)

	// ValidateAssignment decides whether the caller may make targetOwnerID
	// the owner of a record. Unknown targets deny.
	ValidateAssignment(ctx context.Context, tc TenantContext, targetOwnerID snowflake.ID) (Decision, error)
}

// AuthorizeAny runs the gate over a permission ladder, widest first, and
// allows on the first rung that allows. When every rung denies, the reported
// denial is the one from the widest rung the caller's role actually holds: a
// team manager probing another team's record gets team_mismatch, a member
// gets not_record_owner, and a caller holding no rung at all gets
// role_lacks_permission. The returned permission names the rung the decision
// came from.
func AuthorizeAny(ctx context.Context, svc Service, tc TenantContext, resource Resource, perms ...Permission) (Permission, Decision, error) {
	var (
		scopedPerm Permission
		scoped     *Decision
	)
	for _, perm := range perms {
		decision, err := svc.Authorize(ctx, tc, perm, resource)
		if err != nil {
			return perm, decision, err
		}
		if decision.Allowed {
			return perm, decision, nil
		}
		if scoped == nil && decision.Reason != ReasonRoleLacksPermission {
			scopedPerm, scoped = perm, &decision
		}
	}
	if scoped != nil {
		return scopedPerm, *scoped, nil
	}

	var widest Permission
	if len(perms) > 0 {
		widest = perms[0]
	}
	return widest, Deny(ReasonRoleLacksPermission), nil
}
