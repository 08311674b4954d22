package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"gorm.io/gorm"
)

// DealCursor is a decoded keyset position in the created_at desc, id desc
// ordering.
type DealCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListDealFilter struct {
	Stage  string
	Cursor *DealCursor
	Limit  int
}

// Repository loads rows without enforcing visibility; the service gates
// every unscoped load against the row's attribution. List takes the
// caller's scope filter and never runs without one.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, deal *Deal) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Deal, error)
	List(ctx context.Context, db *gorm.DB, scope authzdomain.Filter, filter ListDealFilter) ([]*Deal, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
