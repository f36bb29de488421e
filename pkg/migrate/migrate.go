package migrate

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/paygate-backend/pkg/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Up applies all pending migrations.
func Up(ctx context.Context, client *db.Client, dialect string) error {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("getting sql db handle: %w", err)
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, client *db.Client, dialect string) error {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("getting sql db handle: %w", err)
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.DownContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	return nil
}

// Status prints the migration status table.
func Status(ctx context.Context, client *db.Client, dialect string) error {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("getting sql db handle: %w", err)
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.StatusContext(ctx, sqlDB, migrationsDir)
}
