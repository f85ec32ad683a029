package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		suspend INTEGER NOT NULL DEFAULT 0,
		role_id TEXT NOT NULL DEFAULT '',
		google_uid TEXT NOT NULL DEFAULT '',
		profile_pic TEXT NOT NULL DEFAULT '',
		theme TEXT NOT NULL DEFAULT '',
		first_login INTEGER NOT NULL DEFAULT 1,
		google_auth INTEGER NOT NULL DEFAULT 0,
		subscribed INTEGER NOT NULL DEFAULT 1,
		time_added INTEGER NOT NULL DEFAULT 0,
		last_login_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS user_visitors (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		visitor_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (user_id, visitor_id)
	);`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, token)
	);`,
	`CREATE INDEX IF NOT EXISTS refresh_tokens_expires_at ON refresh_tokens (expires_at);`,
	`CREATE TABLE IF NOT EXISTS otp_challenges (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		code TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		visitor_id TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS otp_challenges_email ON otp_challenges (email);`,
	`CREATE TABLE IF NOT EXISTS modules (
		id TEXT PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		active INTEGER NOT NULL DEFAULT 1,
		maintenance INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS roles (
		id TEXT PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL UNIQUE,
		slug TEXT NOT NULL UNIQUE
	);`,
	`CREATE TABLE IF NOT EXISTS role_permissions (
		role_id TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		module_id TEXT NOT NULL,
		can_get INTEGER NOT NULL DEFAULT 0,
		can_post INTEGER NOT NULL DEFAULT 0,
		can_put INTEGER NOT NULL DEFAULT 0,
		can_delete INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (role_id, position)
	);`,
	`CREATE TABLE IF NOT EXISTS defaults (
		category TEXT PRIMARY KEY,
		ref_id TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS visitors (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		device TEXT NOT NULL DEFAULT '',
		impression INTEGER NOT NULL DEFAULT 1,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		UNIQUE (fingerprint, device)
	);`,
}

// NewSQLite opens (creating if needed) the database at path and applies
// the schema. A single connection is used so writers never interleave.
func NewSQLite(path string) (*SQL, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	d, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	d.SetMaxOpenConns(1)
	s := &SQL{db: d, dialect: dialectSQLite}
	if err := s.initSQLite(context.Background()); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) initSQLite(ctx context.Context) error {
	for _, q := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}
