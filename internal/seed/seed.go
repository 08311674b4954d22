package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/sellora/internal/authorization/domain"
	identitydomain "github.com/smallbiznis/sellora/internal/identity/domain"
	"github.com/smallbiznis/sellora/internal/identity/password"
	orgdomain "github.com/smallbiznis/sellora/internal/organization/domain"
	"gorm.io/gorm"
)

const (
	platformOrgName      = "Platform"
	platformOrgSlug      = "platform"
	defaultAdminEmail    = "admin@sellora.cloud"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "Sellora Admin"
)

// EnsurePlatformOrg seeds the platform operator organization for startup
// bootstrap.
func EnsurePlatformOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensurePlatformOrgTx(ctx, tx, node.Generate())
		return err
	})
}

// EnsurePlatformOrgWithID seeds the platform organization under a fixed
// identifier so PLATFORM_ORG stays stable across environments. The pin only
// applies on first creation; an organization already seeded keeps its row.
func EnsurePlatformOrgWithID(db *gorm.DB, orgID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensurePlatformOrgTx(ctx, tx, snowflake.ID(orgID))
		return err
	})
}

// EnsurePlatformOrgAndAdmin seeds the platform organization and a default
// platform administrator for OSS mode.
func EnsurePlatformOrgAndAdmin(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensurePlatformOrgTx(ctx, tx, node.Generate())
		if err != nil {
			return err
		}

		var user identitydomain.User
		err = tx.WithContext(ctx).
			Where("email = ?", strings.ToLower(defaultAdminEmail)).
			First(&user).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			hashed, err := password.Hash(defaultAdminPassword)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			user = identitydomain.User{
				ID:           node.Generate(),
				Email:        strings.ToLower(defaultAdminEmail),
				DisplayName:  defaultAdminDisplay,
				PasswordHash: &hashed,
				// LastPasswordChanged stays nil so the first login is asked
				// to rotate the seeded password.
				IsDefault: true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
				return err
			}
		}

		var member orgdomain.OrganizationMember
		err = tx.WithContext(ctx).
			Where("org_id = ? AND user_id = ?", org.ID, user.ID).
			First(&member).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			now := time.Now().UTC()
			member = orgdomain.OrganizationMember{
				ID:        node.Generate(),
				OrgID:     org.ID,
				UserID:    user.ID,
				Role:      string(authzdomain.RolePlatformAdmin),
				Status:    string(authzdomain.MemberActive),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&member).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func ensurePlatformOrgTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (orgdomain.Organization, error) {
	var org orgdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", platformOrgSlug).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}
	now := time.Now().UTC()
	org = orgdomain.Organization{
		ID:        id,
		Name:      platformOrgName,
		Slug:      platformOrgSlug,
		Status:    string(authzdomain.OrgActive),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}
