package domain

import "github.com/bwmarrin/snowflake"

// EntityType names a protected record type. Like permissions, the set is
// closed; filters for unknown entity types are never built.
type EntityType string

const (
	EntityContact       EntityType = "contact"
	EntityDeal          EntityType = "deal"
	EntityPipeline      EntityType = "pipeline"
	EntityMessage       EntityType = "message"
	EntityCall          EntityType = "call"
	EntityTicket        EntityType = "ticket"
	EntityWorkflow      EntityType = "workflow"
	EntityOrganization  EntityType = "organization"
	EntityTeam          EntityType = "team"
	EntityUser          EntityType = "user"
	EntityAuditLog      EntityType = "audit_log"
	EntityBillingRecord EntityType = "billing_record"
)

// Resource describes the record an operation touches. Zero ids mean the
// resource has no such attribution; the gate treats missing attribution as
// a mismatch, never as a pass.
type Resource struct {
	Entity  EntityType
	OrgID   snowflake.ID
	TeamID  snowflake.ID
	OwnerID snowflake.ID
}

type entityTraits struct {
	// viewPlatform, when set, lets the platform role list this entity
	// across all organizations (platform dashboards only).
	viewPlatform Permission
	// orgVisible marks shared per-organization rows (pipelines, the team
	// directory) that every role in the organization may read.
	orgVisible bool
	// viewOrg/viewTeam/viewSelf are the tiered read permissions; zero
	// means the tier does not exist for this entity.
	viewOrg  Permission
	viewTeam Permission
	viewSelf Permission
}

// entityCatalog declares, per entity type, which read tier each permission
// unlocks. The filter builder walks it widest tier first.
var entityCatalog = map[EntityType]entityTraits{
	EntityContact: {viewOrg: PermOrgDataView, viewTeam: PermTeamDataView, viewSelf: PermSelfDataView},
	EntityDeal:    {viewOrg: PermOrgDataView, viewTeam: PermTeamDataView, viewSelf: PermSelfDataView},
	EntityMessage: {viewOrg: PermOrgDataView, viewTeam: PermTeamDataView, viewSelf: PermSelfDataView},
	EntityCall:    {viewOrg: PermOrgDataView, viewTeam: PermTeamDataView, viewSelf: PermSelfDataView},
	EntityTicket:  {viewOrg: PermOrgDataView, viewTeam: PermTeamDataView, viewSelf: PermSelfDataView},

	// Pipelines and the team directory are shared configuration of the
	// organization, readable by every role inside it.
	EntityPipeline: {orgVisible: true},
	EntityTeam:     {orgVisible: true, viewPlatform: PermPlatformAnalyticsView},

	EntityWorkflow: {viewOrg: PermOrgIntegrationsManage, viewTeam: PermTeamWorkflowsManage},

	EntityUser: {viewOrg: PermOrgUsersManage, viewTeam: PermTeamMembersManage, viewSelf: PermSelfProfileManage},

	EntityOrganization:  {viewPlatform: PermPlatformAnalyticsView, viewOrg: PermOrgProfileView},
	EntityAuditLog:      {viewOrg: PermOrgAuditView},
	EntityBillingRecord: {viewPlatform: PermPlatformBillingManage, viewOrg: PermOrgBillingView},
}

// AllEntityTypes returns the closed entity set in declaration order.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityContact, EntityDeal, EntityPipeline, EntityMessage, EntityCall,
		EntityTicket, EntityWorkflow, EntityOrganization, EntityTeam,
		EntityUser, EntityAuditLog, EntityBillingRecord,
	}
}

// Valid reports whether the entity type is part of the catalog.
func (e EntityType) Valid() bool {
	_, ok := entityCatalog[e]
	return ok
}
