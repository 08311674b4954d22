package domain

import (
	"sort"
	"strings"
)

// Role is one of the four fixed Sellora roles. The set is closed: there are
// no per-organization custom roles.
type Role string

const (
	RolePlatformAdmin Role = "PLATFORM_ADMIN"
	RoleOrgAdmin      Role = "ORG_ADMIN"
	RoleTeamManager   Role = "TEAM_MANAGER"
	RoleMember        Role = "MEMBER"
)

// AllRoles returns the closed role set, widest first.
func AllRoles() []Role {
	return []Role{RolePlatformAdmin, RoleOrgAdmin, RoleTeamManager, RoleMember}
}

// ParseRole normalizes and validates a stored role value. Anything outside
// the closed set fails with ErrInvalidRole; there is no default role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RolePlatformAdmin:
		return RolePlatformAdmin, nil
	case RoleOrgAdmin:
		return RoleOrgAdmin, nil
	case RoleTeamManager:
		return RoleTeamManager, nil
	case RoleMember:
		return RoleMember, nil
	default:
		return "", ErrInvalidRole
	}
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RolePlatformAdmin, RoleOrgAdmin, RoleTeamManager, RoleMember:
		return true
	default:
		return false
	}
}

// roleGrants lists the permissions each role introduces on top of the role it
// inherits from. The platform administrator inherits the full org-admin set
// rather than being granted everything outright: its organization-scope
// permissions still only apply inside its own organization, which the gate
// enforces.
var roleGrants = map[Role][]Permission{
	RoleMember: {
		PermSelfDataView,
		PermSelfDataEdit,
		PermSelfProfileManage,
		PermSelfIntegrationsUse,
	},
	RoleTeamManager: {
		PermTeamDataView,
		PermTeamDataEdit,
		PermTeamMembersManage,
		PermTeamAssign,
		PermTeamIntegrationsManage,
		PermTeamWorkflowsManage,
	},
	RoleOrgAdmin: {
		PermOrgProfileView,
		PermOrgProfileManage,
		PermOrgUsersManage,
		PermOrgTeamsManage,
		PermOrgBillingView,
		PermOrgAuditView,
		PermOrgDataView,
		PermOrgDataEdit,
		PermOrgDataExport,
		PermOrgDataImport,
		PermOrgAssign,
		PermOrgIntegrationsManage,
	},
	RolePlatformAdmin: {
		PermPlatformOrgsManage,
		PermPlatformBillingManage,
		PermPlatformAnalyticsView,
	},
}

// roleInherits is the strict widening chain member < team_manager < org_admin
// < platform_admin. The casbin policy seeds mirror it as grouping links.
var roleInherits = map[Role]Role{
	RolePlatformAdmin: RoleOrgAdmin,
	RoleOrgAdmin:      RoleTeamManager,
	RoleTeamManager:   RoleMember,
}

var rolePermissionSet = buildRolePermissionSets()

func buildRolePermissionSets() map[Role]map[Permission]struct{} {
	sets := make(map[Role]map[Permission]struct{}, len(roleGrants))
	for _, role := range AllRoles() {
		set := make(map[Permission]struct{})
		for current := role; current != ""; current = roleInherits[current] {
			for _, perm := range roleGrants[current] {
				set[perm] = struct{}{}
			}
		}
		sets[role] = set
	}
	return sets
}

// PermissionsFor returns the effective permission set of a role, inherited
// grants included, in stable order. Unknown roles fail with ErrInvalidRole.
func PermissionsFor(role Role) ([]Permission, error) {
	set, ok := rolePermissionSet[role]
	if !ok {
		return nil, ErrInvalidRole
	}
	out := make([]Permission, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// RoleHasPermission reports whether the role's effective set contains the
// permission. Unknown roles and unknown permissions are both false.
func RoleHasPermission(role Role, perm Permission) bool {
	set, ok := rolePermissionSet[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// RoleGrants returns the permissions a role introduces itself, without the
// inherited ones. The enforcer seeds its policy rows from this.
func RoleGrants(role Role) []Permission {
	grants := roleGrants[role]
	out := make([]Permission, len(grants))
	copy(out, grants)
	return out
}

// InheritsFrom returns the next narrower role in the chain, or empty for the
// narrowest role.
func (r Role) InheritsFrom() Role {
	return roleInherits[r]
}
