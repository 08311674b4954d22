package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	"github.com/smallbiznis/sellora/internal/contact/domain"
	"github.com/smallbiznis/sellora/pkg/scopeq"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contact *domain.Contact) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO contacts (id, org_id, team_id, owner_id, name, email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		contact.ID,
		contact.OrgID,
		contact.TeamID,
		contact.OwnerID,
		contact.Name,
		contact.Email,
		contact.CreatedAt,
		contact.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Contact, error) {
	var contact domain.Contact
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, team_id, owner_id, name, email, created_at, updated_at
		 FROM contacts WHERE id = ?`,
		id,
	).Scan(&contact).Error
	if err != nil {
		return nil, err
	}
	if contact.ID == 0 {
		return nil, nil
	}
	return &contact, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, scope authzdomain.Filter, filter domain.ListContactFilter) ([]*domain.Contact, error) {
	var contacts []*domain.Contact
	stmt := scopeq.Apply(db.WithContext(ctx).Model(&domain.Contact{}), scope, scopeq.DefaultColumns())
	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
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

	if err := stmt.Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&domain.Contact{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Contact{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
