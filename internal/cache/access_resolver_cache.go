package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
)

const (
	defaultMembershipTTL = 30 * time.Second
	defaultRosterTTL     = 60 * time.Second
)

// AccessResolverCache stores hot-path resolver lookups for the access engine.
// TTLs are short: a stale membership grants at most a few seconds of the old
// role, and role changes invalidate eagerly anyway.
type AccessResolverCache interface {
	GetMembership(userID snowflake.ID) (authzdomain.Membership, bool)
	SetMembership(userID snowflake.ID, membership authzdomain.Membership)
	InvalidateMembership(userID snowflake.ID)
	GetRoster(teamID snowflake.ID) ([]snowflake.ID, bool)
	SetRoster(teamID snowflake.ID, memberIDs []snowflake.ID)
	InvalidateRoster(teamID snowflake.ID)
}

type accessResolverCache struct {
	memberships   Cache[snowflake.ID, authzdomain.Membership]
	rosters       Cache[snowflake.ID, []snowflake.ID]
	membershipTTL time.Duration
	rosterTTL     time.Duration
}

// NewAccessResolverCache returns an in-memory cache tuned for request-path
// membership resolution.
func NewAccessResolverCache(membershipTTL, rosterTTL time.Duration) AccessResolverCache {
	if membershipTTL <= 0 {
		membershipTTL = defaultMembershipTTL
	}
	if rosterTTL <= 0 {
		rosterTTL = defaultRosterTTL
	}
	return &accessResolverCache{
		memberships:   NewTTLCache[snowflake.ID, authzdomain.Membership](),
		rosters:       NewTTLCache[snowflake.ID, []snowflake.ID](),
		membershipTTL: membershipTTL,
		rosterTTL:     rosterTTL,
	}
}

func (c *accessResolverCache) GetMembership(userID snowflake.ID) (authzdomain.Membership, bool) {
	if userID == 0 {
		return authzdomain.Membership{}, false
	}
	return c.memberships.Get(userID)
}

func (c *accessResolverCache) SetMembership(userID snowflake.ID, membership authzdomain.Membership) {
	if userID == 0 || membership.UserID != userID {
		return
	}
	c.memberships.Set(userID, membership, c.membershipTTL)
}

func (c *accessResolverCache) InvalidateMembership(userID snowflake.ID) {
	if userID == 0 {
		return
	}
	c.memberships.Delete(userID)
}

func (c *accessResolverCache) GetRoster(teamID snowflake.ID) ([]snowflake.ID, bool) {
	if teamID == 0 {
		return nil, false
	}
	roster, ok := c.rosters.Get(teamID)
	if !ok {
		return nil, false
	}
	out := make([]snowflake.ID, len(roster))
	copy(out, roster)
	return out, true
}

func (c *accessResolverCache) SetRoster(teamID snowflake.ID, memberIDs []snowflake.ID) {
	if teamID == 0 {
		return
	}
	stored := make([]snowflake.ID, len(memberIDs))
	copy(stored, memberIDs)
	c.rosters.Set(teamID, stored, c.rosterTTL)
}

func (c *accessResolverCache) InvalidateRoster(teamID snowflake.ID) {
	if teamID == 0 {
		return
	}
	c.rosters.Delete(teamID)
}
