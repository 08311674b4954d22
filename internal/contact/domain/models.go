package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Contact is the smallest ownership-bearing CRM record. The org_id, team_id
// and owner_id columns are the attribution every scoped read and write keys
// on; team_id may be zero for owners outside any team.
type Contact struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"organization_id"`
	TeamID    snowflake.ID `gorm:"index" json:"team_id,omitempty"`
	OwnerID   snowflake.ID `gorm:"not null;index" json:"owner_id"`
	Name      string       `gorm:"not null" json:"name"`
	Email     string       `json:"email,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
