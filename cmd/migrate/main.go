// Command migrate manages the PostgreSQL schema outside of server startup.
//
//	migrate [-dir path] up [n]
//	migrate [-dir path] down [n]
//	migrate version
//	migrate force <version>
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"

	"github.com/example/rbacauth/internal/config"
	"github.com/example/rbacauth/migrations"
)

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-dir path] up|down [n] | version | force <version>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := execute(*dir, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func execute(dir string, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.DBAdapter != "postgres" {
		return fmt.Errorf("migrations need DB_ADAPTER=postgres, got %q", cfg.DBAdapter)
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migrations.New(db, dir)
	if err != nil {
		return err
	}

	switch cmd {
	case "up", "down":
		n, err := optionalInt(rest)
		if err != nil {
			return err
		}
		if err := step(m, cmd == "up", n); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
	case "force":
		if len(rest) != 1 {
			return errors.New("force needs a version")
		}
		v, err := strconv.Atoi(rest[0])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version %q", rest[0])
		}
		if err := m.Force(v); err != nil {
			return fmt.Errorf("force: %w", err)
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	v, dirty, err := migrations.Version(m)
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d", v)
	if dirty {
		fmt.Print(" (dirty)")
	}
	fmt.Println()
	return nil
}

func optionalInt(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid step count %q", args[0])
	}
	return n, nil
}

// step migrates n versions in the given direction, or all the way when n is 0.
func step(m *migrate.Migrate, up bool, n int) error {
	var err error
	switch {
	case n > 0 && up:
		err = m.Steps(n)
	case n > 0:
		err = m.Steps(-n)
	case up:
		err = m.Up()
	default:
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
