package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Deal stages. The set is fixed; pipeline reporting groups on it.
const (
	StageOpen = "open"
	StageWon  = "won"
	StageLost = "lost"
)

// Deal is an ownership-bearing sales record. Attribution columns mirror
// contacts; team_id follows the owner and is restamped on reassignment.
type Deal struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"organization_id"`
	TeamID    snowflake.ID `gorm:"index" json:"team_id,omitempty"`
	OwnerID   snowflake.ID `gorm:"not null;index" json:"owner_id"`
	ContactID snowflake.ID `gorm:"index" json:"contact_id,omitempty"`
	Title     string       `gorm:"not null" json:"title"`
	Stage     string       `gorm:"not null;default:open" json:"stage"`
	// Amount is in the currency's minor unit.
	Amount    int64     `gorm:"not null" json:"amount"`
	Currency  string    `gorm:"not null" json:"currency"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// ValidStage reports whether the stage belongs to the fixed set.
func ValidStage(stage string) bool {
	switch stage {
	case StageOpen, StageWon, StageLost:
		return true
	default:
		return false
	}
}
