package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/cache"
	"github.com/smallbiznis/sellora/internal/config"
	"github.com/smallbiznis/sellora/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyTeamRoster = "authz:roster:team:%s"

// Redis reads on the roster path stay short; a slow cache is worse than a
// store read.
const redisRosterTimeout = 150 * time.Millisecond

type CacheParams struct {
	fx.In

	Log    *zap.Logger
	Access *config.AccessConfigHolder
	Redis  *redis.Client `optional:"true"`
}

// NewResolverCache builds the membership/roster cache shared by the resolver
// and the organization service. With redis configured, team rosters get a
// second cross-process layer so a fleet of API pods warms once per TTL; the
// organization service's invalidations reach both layers.
func NewResolverCache(p CacheParams) cache.AccessResolverCache {
	cfg := p.Access.Get()
	return &resolverCache{
		base:   cache.NewAccessResolverCache(cfg.MembershipCacheTTL(), cfg.RosterCacheTTL()),
		client: p.Redis,
		ttl:    cfg.RosterCacheTTL(),
		log:    p.Log.Named("membership.cache"),
	}
}

type resolverCache struct {
	base   cache.AccessResolverCache
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func (c *resolverCache) GetMembership(userID snowflake.ID) (authzdomain.Membership, bool) {
	return c.base.GetMembership(userID)
}

func (c *resolverCache) SetMembership(userID snowflake.ID, membership authzdomain.Membership) {
	c.base.SetMembership(userID, membership)
}

func (c *resolverCache) InvalidateMembership(userID snowflake.ID) {
	c.base.InvalidateMembership(userID)
}

func (c *resolverCache) GetRoster(teamID snowflake.ID) ([]snowflake.ID, bool) {
	if ids, ok := c.base.GetRoster(teamID); ok {
		metrics.Access().IncRosterLookup(metrics.LookupSourceCache)
		return ids, true
	}
	if c.client == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisRosterTimeout)
	defer cancel()

	values, err := c.client.SMembers(ctx, rosterKey(teamID)).Result()
	if err != nil || len(values) == 0 {
		if err != nil {
			c.log.Debug("redis roster read failed", zap.Error(err))
		}
		return nil, false
	}

	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		id, err := snowflake.ParseString(value)
		if err != nil {
			c.log.Debug("redis roster entry malformed", zap.String("value", value))
			return nil, false
		}
		ids = append(ids, id)
	}

	metrics.Access().IncRosterLookup(metrics.LookupSourceRedis)
	c.base.SetRoster(teamID, ids)
	return ids, true
}

func (c *resolverCache) SetRoster(teamID snowflake.ID, memberIDs []snowflake.ID) {
	c.base.SetRoster(teamID, memberIDs)

	// Empty rosters live only in process; redis holds member sets.
	if c.client == nil || len(memberIDs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisRosterTimeout)
	defer cancel()

	members := make([]interface{}, 0, len(memberIDs))
	for _, id := range memberIDs {
		members = append(members, id.String())
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, rosterKey(teamID))
	pipe.SAdd(ctx, rosterKey(teamID), members...)
	pipe.Expire(ctx, rosterKey(teamID), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Debug("redis roster write failed", zap.Error(err))
	}
}

func (c *resolverCache) InvalidateRoster(teamID snowflake.ID) {
	c.base.InvalidateRoster(teamID)
	if c.client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisRosterTimeout)
	defer cancel()

	if err := c.client.Del(ctx, rosterKey(teamID)).Err(); err != nil {
		c.log.Debug("redis roster invalidation failed", zap.Error(err))
	}
}

func rosterKey(teamID snowflake.ID) string {
	return fmt.Sprintf(keyTeamRoster, teamID.String())
}
