package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	compliancedomain "github.com/kittypup/kittypup/internal/compliance/domain"
	"github.com/kittypup/kittypup/internal/config"
	entitlementdomain "github.com/kittypup/kittypup/internal/entitlement/domain"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	purchasedomain "github.com/kittypup/kittypup/internal/purchase/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// sqlite is the local development path; AutoMigrate keeps it
		// schema-compatible without a second migration set.
		return conn.AutoMigrate(
			&entitlementdomain.Entitlement{},
			&jobdomain.Job{},
			&purchasedomain.Purchase{},
			&compliancedomain.DeletionRequest{},
		)
	}),
)
