package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/db"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations on startup when running in dev with
// BOOKINGS_AUTO_MIGRATE set. SQLite databases are skipped because the
// migrations use Postgres types.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if client.Dialect() != db.DialectPostgres {
		logg.Warn(ctx, "skipping auto migrate: migrations target postgres")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, client.Dialect(), DefaultDir, logg)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})
	logg.Info(ctx, "auto migrate starting")
	if err := runner.Run(ctx, CmdUp, ""); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	version, err := runner.Version(ctx)
	if err != nil {
		return fmt.Errorf("reading migrated version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "version", version), "auto migrate completed")
	return nil
}
