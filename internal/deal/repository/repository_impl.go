package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/deal/domain"
	"github.com/smallbiznis/sellora/pkg/scopeq"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, deal *domain.Deal) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO deals (id, org_id, team_id, owner_id, contact_id, title, stage, amount, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deal.ID,
		deal.OrgID,
		deal.TeamID,
		deal.OwnerID,
		deal.ContactID,
		deal.Title,
		deal.Stage,
		deal.Amount,
		deal.Currency,
		deal.CreatedAt,
		deal.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Deal, error) {
	var deal domain.Deal
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, team_id, owner_id, contact_id, title, stage, amount, currency, created_at, updated_at
		 FROM deals WHERE id = ?`,
		id,
	).Scan(&deal).Error
	if err != nil {
		return nil, err
	}
	if deal.ID == 0 {
		return nil, nil
	}
	return &deal, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, scope authzdomain.Filter, filter domain.ListDealFilter) ([]*domain.Deal, error) {
	var deals []*domain.Deal
	stmt := scopeq.Apply(db.WithContext(ctx).Model(&domain.Deal{}), scope, scopeq.DefaultColumns())
	if filter.Stage != "" {
		stmt = stmt.Where("stage = ?", filter.Stage)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&domain.Deal{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Deal{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
