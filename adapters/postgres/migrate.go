package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"quote-engine/internal/logging"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Direction is a migration command
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Status Direction = "status"
)

// Migrate runs the embedded schema migrations
func Migrate(ctx context.Context, db *sql.DB, dir Direction, logger *zap.Logger) error {
	const operation = "postgres.Migrate"
	logger = logging.Component(logger, "migrations")

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: failed to set dialect: %w", operation, err)
	}

	switch dir {
	case Up:
		logger.Info("running database migrations")
		if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("%s: failed to run migrations: %w", operation, err)
		}
		logger.Info("database migrations completed")
	case Down:
		logger.Info("rolling back last migration")
		if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("%s: failed to roll back migration: %w", operation, err)
		}
	case Status:
		if err := goose.StatusContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("%s: failed to check migration status: %w", operation, err)
		}
	default:
		return fmt.Errorf("%s: unknown direction %q (want up, down or status)", operation, dir)
	}
	return nil
}
