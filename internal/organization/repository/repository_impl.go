package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellora/internal/organization/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (id, name, slug, support_email, status, trial_ends_at, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID,
		org.Name,
		org.Slug,
		org.SupportEmail,
		org.Status,
		org.TrialEndsAt,
		org.Metadata,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
}

func (r *repository) GetOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name, slug, support_email, status, trial_ends_at, metadata,
		        created_at, updated_at, suspended_at, deleted_at
		 FROM organizations
		 WHERE id = ?`,
		id,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}

func (r *repository) SetOrganizationStatus(ctx context.Context, id snowflake.ID, status string, suspendedAt, deletedAt *time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations
		 SET status = ?, suspended_at = ?, deleted_at = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		suspendedAt,
		deletedAt,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repository) CreateTeam(ctx context.Context, team domain.Team) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO teams (id, org_id, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		team.ID,
		team.OrgID,
		team.Name,
		team.CreatedAt,
		team.UpdatedAt,
	).Error
}

func (r *repository) GetTeam(ctx context.Context, orgID, teamID snowflake.ID) (*domain.Team, error) {
	var team domain.Team
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, created_at, updated_at
		 FROM teams
		 WHERE id = ? AND org_id = ?`,
		teamID,
		orgID,
	).Scan(&team).Error
	if err != nil {
		return nil, err
	}
	if team.ID == 0 {
		return nil, nil
	}
	return &team, nil
}

func (r *repository) ListTeams(ctx context.Context, orgID snowflake.ID) ([]domain.Team, error) {
	var teams []domain.Team
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, created_at, updated_at
		 FROM teams
		 WHERE org_id = ?
		 ORDER BY created_at ASC`,
		orgID,
	).Scan(&teams).Error
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_members (id, org_id, user_id, team_id, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.OrgID,
		member.UserID,
		member.TeamID,
		member.Role,
		member.Status,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repository) GetMemberByUser(ctx context.Context, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, org_id, user_id, team_id, role, status, created_at, updated_at
		 FROM organization_members
		 WHERE user_id = ?`,
		userID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repository) GetMemberForUpdate(ctx context.Context, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, org_id, user_id, team_id, role, status, created_at, updated_at
		 FROM organization_members
		 WHERE user_id = ?
		 FOR UPDATE`,
		userID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, org_id, user_id, team_id, role, status, created_at, updated_at
		 FROM organization_members
		 WHERE org_id = ?
		 ORDER BY created_at ASC`,
		orgID,
	).Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) ListTeamMemberIDs(ctx context.Context, teamID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT user_id
		 FROM organization_members
		 WHERE team_id = ? AND status = 'active'
		 ORDER BY user_id ASC`,
		teamID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) UpdateMemberRole(ctx context.Context, orgID, userID snowflake.ID, role string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organization_members
		 SET role = ?, updated_at = ?
		 WHERE org_id = ? AND user_id = ?`,
		role,
		time.Now().UTC(),
		orgID,
		userID,
	).Error
}

func (r *repository) UpdateMemberTeam(ctx context.Context, orgID, userID, teamID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organization_members
		 SET team_id = ?, updated_at = ?
		 WHERE org_id = ? AND user_id = ?`,
		teamID,
		time.Now().UTC(),
		orgID,
		userID,
	).Error
}

func (r *repository) UpdateMemberPlacement(ctx context.Context, userID, orgID, teamID snowflake.ID, role string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organization_members
		 SET org_id = ?, team_id = ?, role = ?, updated_at = ?
		 WHERE user_id = ?`,
		orgID,
		teamID,
		role,
		time.Now().UTC(),
		userID,
	).Error
}

func (r *repository) RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM organization_members
		 WHERE org_id = ? AND user_id = ?`,
		orgID,
		userID,
	).Error
}

func (r *repository) CountMembersWithRole(ctx context.Context, orgID snowflake.ID, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM organization_members
		 WHERE org_id = ? AND role = ? AND status = 'active'`,
		orgID,
		role,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
