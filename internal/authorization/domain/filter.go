package domain

import (
	"sort"

	"github.com/bwmarrin/snowflake"
)

// FilterKind discriminates the closed filter algebra.
type FilterKind string

const (
	// FilterKindUnrestricted selects across all organizations. Only the
	// platform role ever receives it, and only for platform entity types.
	FilterKindUnrestricted FilterKind = "unrestricted"
	// FilterKindOrganization selects rows of exactly one organization.
	FilterKindOrganization FilterKind = "organization"
	// FilterKindOwnerSet selects rows owned by a materialized user-id set,
	// the caller's team roster.
	FilterKindOwnerSet FilterKind = "owner_set"
	// FilterKindOwner selects rows owned by exactly one user.
	FilterKindOwner FilterKind = "owner"
	// FilterKindNothing selects no rows at all. It is the fail-closed
	// result when a role holds no read tier for an entity.
	FilterKindNothing FilterKind = "nothing"
)

// Filter is a plain, serializable predicate over tenant-scoped rows. It
// carries concrete ids, never deferred lookups, so it can be translated into
// a WHERE clause or checked in memory without touching the database again.
type Filter struct {
	Kind     FilterKind
	OrgID    snowflake.ID
	OwnerID  snowflake.ID
	OwnerIDs []snowflake.ID
}

// NoFilter selects everything. Platform dashboards only.
func NoFilter() Filter { return Filter{Kind: FilterKindUnrestricted} }

// OrganizationEquals selects rows of a single organization.
func OrganizationEquals(orgID snowflake.ID) Filter {
	return Filter{Kind: FilterKindOrganization, OrgID: orgID}
}

// OwnerWithinSet selects rows owned by any of the given users. The set is
// deduplicated and sorted so equal rosters produce equal filters; an empty
// set collapses to MatchNothing.
func OwnerWithinSet(ownerIDs []snowflake.ID) Filter {
	seen := make(map[snowflake.ID]struct{}, len(ownerIDs))
	ids := make([]snowflake.ID, 0, len(ownerIDs))
	for _, id := range ownerIDs {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return MatchNothing()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return Filter{Kind: FilterKindOwnerSet, OwnerIDs: ids}
}

// OwnerEquals selects rows owned by a single user.
func OwnerEquals(ownerID snowflake.ID) Filter {
	return Filter{Kind: FilterKindOwner, OwnerID: ownerID}
}

// MatchNothing selects no rows.
func MatchNothing() Filter { return Filter{Kind: FilterKindNothing} }

// Matches reports whether a row with the given attribution passes the
// filter. Unknown kinds match nothing.
func (f Filter) Matches(orgID, ownerID snowflake.ID) bool {
	switch f.Kind {
	case FilterKindUnrestricted:
		return true
	case FilterKindOrganization:
		return f.OrgID != 0 && f.OrgID == orgID
	case FilterKindOwnerSet:
		for _, id := range f.OwnerIDs {
			if id == ownerID && id != 0 {
				return true
			}
		}
		return false
	case FilterKindOwner:
		return f.OwnerID != 0 && f.OwnerID == ownerID
	default:
		return false
	}
}

// NeedsTeamRoster reports whether building the filter for this context and
// entity requires the materialized team roster. Callers resolve the roster
// first and pass it to SelectFilter.
func NeedsTeamRoster(tc TenantContext, entity EntityType) (bool, error) {
	tier, err := selectReadTier(tc, entity)
	if err != nil {
		return false, err
	}
	return tier == readTierTeam, nil
}

type readTier int

const (
	readTierNothing readTier = iota
	readTierPlatform
	readTierOrg
	readTierTeam
	readTierSelf
)

func selectReadTier(tc TenantContext, entity EntityType) (readTier, error) {
	traits, ok := entityCatalog[entity]
	if !ok {
		return readTierNothing, ErrUnknownEntity
	}

	role := tc.principal.Role

	if traits.viewPlatform != "" && tc.IsPlatformScope() && RoleHasPermission(role, traits.viewPlatform) {
		return readTierPlatform, nil
	}

	// Everything below is bounded by the caller's own organization; the
	// platform operator without one reads nothing.
	if tc.principal.OrgID == 0 {
		return readTierNothing, nil
	}

	if traits.orgVisible {
		return readTierOrg, nil
	}
	if traits.viewOrg != "" && RoleHasPermission(role, traits.viewOrg) {
		return readTierOrg, nil
	}
	if traits.viewTeam != "" && RoleHasPermission(role, traits.viewTeam) {
		return readTierTeam, nil
	}
	if traits.viewSelf != "" && RoleHasPermission(role, traits.viewSelf) {
		return readTierSelf, nil
	}
	return readTierNothing, nil
}

// SelectFilter picks the widest filter the context's role is entitled to for
// the entity type, narrowing platform -> organization -> team roster ->
// own records, and MatchNothing when no tier applies. teamRoster is consulted
// only for the team tier; pass the pre-resolved roster of the caller's team.
func SelectFilter(tc TenantContext, entity EntityType, teamRoster []snowflake.ID) (Filter, error) {
	tier, err := selectReadTier(tc, entity)
	if err != nil {
		return Filter{}, err
	}

	switch tier {
	case readTierPlatform:
		return NoFilter(), nil
	case readTierOrg:
		return OrganizationEquals(tc.principal.OrgID), nil
	case readTierTeam:
		if tc.principal.TeamID == 0 {
			// Manager without a team reads like a member.
			return OwnerEquals(tc.principal.UserID), nil
		}
		// The caller also holds the self tier, so their own records stay
		// visible even when the roster read is stale.
		ids := make([]snowflake.ID, 0, len(teamRoster)+1)
		ids = append(ids, teamRoster...)
		ids = append(ids, tc.principal.UserID)
		return OwnerWithinSet(ids), nil
	case readTierSelf:
		return OwnerEquals(tc.principal.UserID), nil
	default:
		return MatchNothing(), nil
	}
}
