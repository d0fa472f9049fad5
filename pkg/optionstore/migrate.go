package optionstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrations returns the SQL migrations that create the options table.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate applies pending migrations to db and returns the applied versions.
func Migrate(ctx context.Context, db *sql.DB) ([]int64, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, Migrations())
	if err != nil {
		return nil, fmt.Errorf("optionstore: migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("optionstore: migrate: %w", err)
	}
	versions := make([]int64, 0, len(results))
	for _, result := range results {
		if result == nil || result.Source == nil {
			continue
		}
		versions = append(versions, result.Source.Version)
	}
	return versions, nil
}
