package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

func openForMigrations(databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("DB_URL is required for migrations")
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(utils.Logger)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}
	return goose.OpenDBWithDriver("pgx", databaseURL)
}

// MigrateUp applies every pending embedded migration.
func MigrateUp(ctx context.Context, databaseURL string) error {
	sqlDB, err := openForMigrations(databaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return goose.UpContext(ctx, sqlDB, migrationsDir)
}

// MigrationStatus logs the applied/pending state of each migration.
func MigrationStatus(ctx context.Context, databaseURL string) error {
	sqlDB, err := openForMigrations(databaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return goose.StatusContext(ctx, sqlDB, migrationsDir)
}

// MigrationCount reports how many migration files are embedded.
func MigrationCount() (int, error) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
