package checkpoint

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
)

//go:embed migrations/sqlite
var sqliteMigrationsFS embed.FS

// NewSQLiteStore opens (creating if necessary) a single-file sqlite
// checkpoint store at path, running embedded migrations on first use
// exactly as the teacher's pkg/database/client.go does for Postgres
// (go:embed + golang-migrate + iofs source driver).
//
// The pool is capped at one open connection: sqlite only supports one
// writer at a time, and spec.md §4.1 calls for "writes serialize
// through a mutex or a single connection" for the file variant.
func NewSQLiteStore(path string) (*sqlStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runSQLiteMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: sqlite migrations: %w", err)
	}

	return &sqlStore{db: db, dialect: sqliteDialect}, nil
}

func runSQLiteMigrations(db *sql.DB) error {
	sub, err := fs.Sub(sqliteMigrationsFS, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("sub embedded fs: %w", err)
	}
	sourceDriver, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Do not call m.Close() — it would close the shared *sql.DB via
	// dbDriver.Close(), exactly the pitfall documented in the
	// teacher's runMigrations. Close only the source.
	return sourceDriver.Close()
}
