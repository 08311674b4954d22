// Package domain holds the access-control model for Sellora: the permission
// catalog, the role map, tenant contexts and the pure decision functions.
// Nothing in this package performs I/O; callers resolve organization state and
// team membership first and pass it in.
package domain

import "sort"

// Scope is the breadth of data a permission applies to.
type Scope string

const (
	ScopePlatform     Scope = "platform"
	ScopeOrganization Scope = "organization"
	ScopeTeam         Scope = "team"
	ScopeSelf         Scope = "self"
)

// Permission is a single capability from the closed catalog. Permissions are
// compile-time constants; there is no runtime registration.
type Permission string

// Platform scope. Held only by the platform administrator role and evaluated
// without an organization boundary.
const (
	PermPlatformOrgsManage    Permission = "platform.orgs_manage"
	PermPlatformBillingManage Permission = "platform.billing_manage"
	PermPlatformAnalyticsView Permission = "platform.analytics_view"
)

// Organization scope. Evaluated against the caller's own organization id,
// never against an arbitrary one.
const (
	PermOrgProfileView        Permission = "org.profile_view"
	PermOrgProfileManage      Permission = "org.profile_manage"
	PermOrgUsersManage        Permission = "org.users_manage"
	PermOrgTeamsManage        Permission = "org.teams_manage"
	PermOrgBillingView        Permission = "org.billing_view"
	PermOrgAuditView          Permission = "org.audit_view"
	PermOrgDataView           Permission = "org.data_view"
	PermOrgDataEdit           Permission = "org.data_edit"
	PermOrgDataExport         Permission = "org.data_export"
	PermOrgDataImport         Permission = "org.data_import"
	PermOrgAssign             Permission = "org.assign"
	PermOrgIntegrationsManage Permission = "org.integrations_manage"
)

// Team scope. Evaluated against the caller's own team.
const (
	PermTeamMembersManage      Permission = "team.members_manage"
	PermTeamDataView           Permission = "team.data_view"
	PermTeamDataEdit           Permission = "team.data_edit"
	PermTeamAssign             Permission = "team.assign"
	PermTeamIntegrationsManage Permission = "team.integrations_manage"
	PermTeamWorkflowsManage    Permission = "team.workflows_manage"
)

// Self scope. Evaluated by strict record ownership, for every role.
const (
	PermSelfDataView        Permission = "self.data_view"
	PermSelfDataEdit        Permission = "self.data_edit"
	PermSelfProfileManage   Permission = "self.profile_manage"
	PermSelfIntegrationsUse Permission = "self.integrations_use"
)

type permissionInfo struct {
	scope    Scope
	mutating bool
}

// catalog is the single source of truth for the permission set. Every entry
// declares exactly one scope; anything absent from this map is unknown and is
// rejected, never defaulted.
var catalog = map[Permission]permissionInfo{
	PermPlatformOrgsManage:    {scope: ScopePlatform, mutating: true},
	PermPlatformBillingManage: {scope: ScopePlatform, mutating: true},
	PermPlatformAnalyticsView: {scope: ScopePlatform, mutating: false},

	PermOrgProfileView:        {scope: ScopeOrganization, mutating: false},
	PermOrgProfileManage:      {scope: ScopeOrganization, mutating: true},
	PermOrgUsersManage:        {scope: ScopeOrganization, mutating: true},
	PermOrgTeamsManage:        {scope: ScopeOrganization, mutating: true},
	PermOrgBillingView:        {scope: ScopeOrganization, mutating: false},
	PermOrgAuditView:          {scope: ScopeOrganization, mutating: false},
	PermOrgDataView:           {scope: ScopeOrganization, mutating: false},
	PermOrgDataEdit:           {scope: ScopeOrganization, mutating: true},
	PermOrgDataExport:         {scope: ScopeOrganization, mutating: false},
	PermOrgDataImport:         {scope: ScopeOrganization, mutating: true},
	PermOrgAssign:             {scope: ScopeOrganization, mutating: true},
	PermOrgIntegrationsManage: {scope: ScopeOrganization, mutating: true},

	PermTeamMembersManage:      {scope: ScopeTeam, mutating: true},
	PermTeamDataView:           {scope: ScopeTeam, mutating: false},
	PermTeamDataEdit:           {scope: ScopeTeam, mutating: true},
	PermTeamAssign:             {scope: ScopeTeam, mutating: true},
	PermTeamIntegrationsManage: {scope: ScopeTeam, mutating: true},
	PermTeamWorkflowsManage:    {scope: ScopeTeam, mutating: true},

	PermSelfDataView:        {scope: ScopeSelf, mutating: false},
	PermSelfDataEdit:        {scope: ScopeSelf, mutating: true},
	PermSelfProfileManage:   {scope: ScopeSelf, mutating: true},
	PermSelfIntegrationsUse: {scope: ScopeSelf, mutating: true},
}

// AllPermissions returns the full catalog in stable order.
func AllPermissions() []Permission {
	out := make([]Permission, 0, len(catalog))
	for perm := range catalog {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether the permission exists in the catalog.
func (p Permission) Valid() bool {
	_, ok := catalog[p]
	return ok
}

// ScopeOf returns the declared scope of a permission. Unknown permissions are
// a programming defect at the call site and surface as ErrUnknownPermission.
func ScopeOf(p Permission) (Scope, error) {
	info, ok := catalog[p]
	if !ok {
		return "", ErrUnknownPermission
	}
	return info.scope, nil
}

// Mutating reports whether the permission writes data. Unknown permissions
// count as mutating so that lifecycle restrictions stay fail closed.
func (p Permission) Mutating() bool {
	info, ok := catalog[p]
	if !ok {
		return true
	}
	return info.mutating
}
