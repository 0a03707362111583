package migrate

import (
	"context"
	"fmt"

	"github.com/surveycash/surveycash-backend/pkg/config"
	"github.com/surveycash/surveycash-backend/pkg/db"
	"github.com/surveycash/surveycash-backend/pkg/db/models"
	"github.com/surveycash/surveycash-backend/pkg/logger"
)

// MaybeRunDev prepares the schema when running in dev with the auto-migrate
// flag on: goose for Postgres, model auto-migration for SQLite.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if IsSQLite(cfg.DB.Driver) {
		logg.Info(ctx, "auto-migrating sqlite schema from models")
		if err := AutoMigrateModels(ctx, client); err != nil {
			return fmt.Errorf("auto-migrating models: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, EmbeddedDir, "up", Options{FS: Embedded}); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}

// AutoMigrateModels creates the ledger tables from the gorm models.
func AutoMigrateModels(ctx context.Context, client *db.Client) error {
	return client.DB().WithContext(ctx).AutoMigrate(
		&models.Account{},
		&models.RewardEvent{},
		&models.Withdrawal{},
		&models.LedgerEvent{},
	)
}
