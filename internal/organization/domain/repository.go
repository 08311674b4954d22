package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org Organization) error
	// GetOrganization returns nil when no such organization exists.
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	// SetOrganizationStatus rewrites the lifecycle columns; nil timestamps
	// clear them.
	SetOrganizationStatus(ctx context.Context, id snowflake.ID, status string, suspendedAt, deletedAt *time.Time) error

	CreateTeam(ctx context.Context, team Team) error
	GetTeam(ctx context.Context, orgID, teamID snowflake.ID) (*Team, error)
	ListTeams(ctx context.Context, orgID snowflake.ID) ([]Team, error)

	AddMember(ctx context.Context, member OrganizationMember) error
	// GetMemberByUser looks the user up across all organizations; membership
	// is unique per user.
	GetMemberByUser(ctx context.Context, userID snowflake.ID) (*OrganizationMember, error)
	// GetMemberForUpdate takes a row lock; call inside a transaction.
	GetMemberForUpdate(ctx context.Context, userID snowflake.ID) (*OrganizationMember, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]OrganizationMember, error)
	ListTeamMemberIDs(ctx context.Context, teamID snowflake.ID) ([]snowflake.ID, error)
	UpdateMemberRole(ctx context.Context, orgID, userID snowflake.ID, role string) error
	UpdateMemberTeam(ctx context.Context, orgID, userID, teamID snowflake.ID) error
	// UpdateMemberPlacement rewrites org, team and role at once; transfers
	// only.
	UpdateMemberPlacement(ctx context.Context, userID, orgID, teamID snowflake.ID, role string) error
	RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error
	CountMembersWithRole(ctx context.Context, orgID snowflake.ID, role string) (int64, error)
}
