package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"gorm.io/gorm"
)

// ContactCursor is a decoded keyset position in the created_at desc, id desc
// ordering.
type ContactCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListContactFilter struct {
	Name   string
	Cursor *ContactCursor
	Limit  int
}

// Repository loads rows without enforcing visibility. FindByID is
// deliberately unscoped: the service loads the row first and runs the gate
// against its attribution, so a cross-tenant probe earns a denial rather
// than a silent miss. List is the exception; it takes the caller's scope
// filter and never runs without one.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contact *Contact) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contact, error)
	List(ctx context.Context, db *gorm.DB, scope authzdomain.Filter, filter ListContactFilter) ([]*Contact, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
