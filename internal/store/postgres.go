package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// NewPostgres connects to PostgreSQL. The schema is owned by the
// migrations package and must be applied before use.
func NewPostgres(dsn string) (*SQL, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(20)
	d.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.PingContext(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return &SQL{db: d, dialect: dialectPostgres}, nil
}

// NewPostgresFromDB wraps an existing handle, e.g. one backed by sqlmock.
func NewPostgresFromDB(db *sql.DB) *SQL {
	return &SQL{db: db, dialect: dialectPostgres}
}
