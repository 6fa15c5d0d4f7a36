package bootstrap

import (
	"context"
	"fmt"

	"triage_server/config"
	"triage_server/infra/database"
	"triage_server/migrations"
	"triage_server/pkg/logger"
)

// Migrate applies pending schema migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := database.NewSQLDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	applied, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("applied %d migrations", applied)
	return nil
}
