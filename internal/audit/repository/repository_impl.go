package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/sellora/internal/audit/domain"
	"gorm.io/gorm"
)

type auditRepo struct{}

func Provide() domain.Repository {
	return &auditRepo{}
}

func (r *auditRepo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit entry requires an action")
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List pages newest-first within one organization. Rows with no org id are
// platform events and never appear in a tenant's view.
func (r *auditRepo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{}).
		Where("org_id = ?", filter.OrgID)

	for column, value := range map[string]string{
		"action":      filter.Action,
		"target_type": filter.TargetType,
		"target_id":   filter.TargetID,
		"actor_type":  filter.ActorType,
	} {
		if v := strings.TrimSpace(value); v != "" {
			stmt = stmt.Where(column+" = ?", v)
		}
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if cursor := filter.Cursor; cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		// One extra row signals another page.
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var logs []*domain.AuditLog
	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
