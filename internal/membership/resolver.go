// Package membership materializes user placements and team rosters for the
// authorization layer. Results are cached with short TTLs; anything that
// mutates placement goes through the organization service, which invalidates
// the shared cache eagerly.
package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/cache"
	"github.com/smallbiznis/sellora/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cache cache.AccessResolverCache
}

type Resolver struct {
	db    *gorm.DB
	log   *zap.Logger
	cache cache.AccessResolverCache
}

func NewResolver(p Params) *Resolver {
	return &Resolver{
		db:    p.DB,
		log:   p.Log.Named("membership.resolver"),
		cache: p.Cache,
	}
}

// AsMembershipResolver exposes the resolver to the authorization layer.
func AsMembershipResolver(r *Resolver) authzdomain.MembershipResolver {
	return r
}

type memberRow struct {
	OrgID  snowflake.ID
	UserID snowflake.ID
	TeamID snowflake.ID
	Role   string
	Status string
}

// Membership returns the user's placement, nil when the user belongs to no
// organization. Role strings from storage pass through the closed enum;
// anything unknown is treated as corruption and fails closed.
func (r *Resolver) Membership(ctx context.Context, userID snowflake.ID) (*authzdomain.Membership, error) {
	if userID == 0 {
		return nil, nil
	}

	if cached, ok := r.cache.GetMembership(userID); ok {
		metrics.Access().IncMembershipLookup(metrics.LookupSourceCache)
		return &cached, nil
	}

	start := time.Now()
	var row memberRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT org_id, user_id, team_id, role, status
		 FROM organization_members
		 WHERE user_id = ?`,
		userID,
	).Scan(&row).Error
	metrics.Access().ObserveResolverLatency("membership", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("resolve membership %s: %w", userID, err)
	}
	if row.UserID == 0 {
		return nil, nil
	}

	role := authzdomain.Role(row.Role)
	if !role.Valid() {
		r.log.Error("membership row carries a role outside the enum",
			zap.String("user_id", userID.String()),
			zap.String("role", row.Role),
		)
		return nil, authzdomain.ErrInvalidRole
	}

	membership := authzdomain.Membership{
		UserID: row.UserID,
		OrgID:  row.OrgID,
		TeamID: row.TeamID,
		Role:   role,
		Status: authzdomain.MemberStatus(row.Status),
	}

	r.cache.SetMembership(userID, membership)
	metrics.Access().IncMembershipLookup(metrics.LookupSourceStore)
	return &membership, nil
}

// TeamMemberIDs returns the active member ids of a team, sorted. A zero team
// has nobody in it.
func (r *Resolver) TeamMemberIDs(ctx context.Context, teamID snowflake.ID) ([]snowflake.ID, error) {
	if teamID == 0 {
		return nil, nil
	}

	if ids, ok := r.cache.GetRoster(teamID); ok {
		return ids, nil
	}

	start := time.Now()
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT user_id
		 FROM organization_members
		 WHERE team_id = ? AND status = 'active'
		 ORDER BY user_id ASC`,
		teamID,
	).Scan(&ids).Error
	metrics.Access().ObserveResolverLatency("roster", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("resolve roster %s: %w", teamID, err)
	}

	r.cache.SetRoster(teamID, ids)
	metrics.Access().IncRosterLookup(metrics.LookupSourceStore)
	return ids, nil
}
