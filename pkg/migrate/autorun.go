package migrate

import (
	"context"

	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/db"
	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/logger"
)

// MaybeRunDev applies schema automatically when the auto-migrate flag is set.
// SQLite (local runs and tests) uses gorm's schema sync since the SQL
// migrations target postgres; everything else goes through goose.
func MaybeRunDev(ctx context.Context, cfg *config.Config, client *db.Client, logg *logger.Logger) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.DB.Driver == "sqlite" {
		logg.Info(ctx, "auto-migrating schema via gorm (sqlite)")
		return client.DB().WithContext(ctx).AutoMigrate(
			&models.PaymentIntent{},
			&models.LedgerEvent{},
		)
	}
	logg.Info(ctx, "applying goose migrations")
	return Up(ctx, client, cfg.DB.Driver)
}
