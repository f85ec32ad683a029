package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/rbacauth/internal/logging"
	"github.com/example/rbacauth/migrations"
)

// ApplyMigrations brings the PostgreSQL schema at dsn up to date using
// the embedded migrations.
func ApplyMigrations(ctx context.Context, dsn string, log logging.Logger) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("opening database connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	from, to, err := migrations.Up(db)
	if err != nil {
		return err
	}
	if from == to {
		log.Info(ctx, "database is up to date", "version", to)
	} else {
		log.Info(ctx, "database migrated", "from", from, "to", to)
	}
	return nil
}
