package migration

import (
	auditdomain "github.com/smallbiznis/sellora/internal/audit/domain"
	"github.com/smallbiznis/sellora/internal/config"
	contactdomain "github.com/smallbiznis/sellora/internal/contact/domain"
	dealdomain "github.com/smallbiznis/sellora/internal/deal/domain"
	identitydomain "github.com/smallbiznis/sellora/internal/identity/domain"
	orgdomain "github.com/smallbiznis/sellora/internal/organization/domain"
	"github.com/smallbiznis/sellora/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(migrateOnStartup),
)

func migrateOnStartup(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if cfg.DBType == "sqlite" {
		// Versioned SQL files target postgres. Local sqlite installs get
		// their schema from the model definitions instead.
		if err := autoMigrateSQLite(conn); err != nil {
			return err
		}
		log.Info("schema created from models", zap.String("db_type", cfg.DBType))
	} else {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		version, err := RunMigrations(sqlDB)
		if err != nil {
			return err
		}
		log.Info("schema is current", zap.Uint("schema_version", version))
	}

	return seedBaseline(conn, cfg)
}

func autoMigrateSQLite(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&identitydomain.User{},
		&identitydomain.Session{},
		&orgdomain.Organization{},
		&orgdomain.Team{},
		&orgdomain.OrganizationMember{},
		&contactdomain.Contact{},
		&dealdomain.Deal{},
		&auditdomain.AuditLog{},
	)
}

// seedBaseline guarantees the platform organization exists before the first
// request is served, and in self-hosted installs seeds the bootstrap admin
// with it.
func seedBaseline(conn *gorm.DB, cfg config.Config) error {
	if cfg.PlatformOrgID != 0 {
		if err := seed.EnsurePlatformOrgWithID(conn, cfg.PlatformOrgID); err != nil {
			return err
		}
	} else if err := seed.EnsurePlatformOrg(conn); err != nil {
		return err
	}

	if !cfg.IsCloud() && cfg.Bootstrap.EnsurePlatformAdmin {
		return seed.EnsurePlatformOrgAndAdmin(conn)
	}
	return nil
}
