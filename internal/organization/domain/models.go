// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant. Status holds the lifecycle the access
// layer evaluates; deleted organizations keep their row so audit references
// stay resolvable.
type Organization struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	Slug         string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	SupportEmail string            `gorm:"type:text;column:support_email" json:"support_email"`
	Status       string            `gorm:"type:text;not null;default:'active'" json:"status"`
	TrialEndsAt  *time.Time        `gorm:"column:trial_ends_at" json:"trial_ends_at,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	SuspendedAt  *time.Time        `json:"suspended_at,omitempty"`
	DeletedAt    *time.Time        `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Team groups members inside one organization. Names are unique per org.
type Team struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_teams_org_name,priority:1" json:"org_id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_teams_org_name,priority:2" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Team) TableName() string { return "teams" }

// OrganizationMember places a user in exactly one organization. The unique
// index on user_id is what makes single-tenancy hold; TransferMember rewrites
// this row and nothing else may.
type OrganizationMember struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID  snowflake.ID `gorm:"not null;index" json:"org_id"`
	UserID snowflake.ID `gorm:"not null;uniqueIndex:ux_members_user" json:"user_id"`
	// TeamID is zero for members outside any team.
	TeamID    snowflake.ID `gorm:"not null;default:0;index" json:"team_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	Status    string       `gorm:"type:text;not null;default:'active'" json:"status"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }
