package checkpoint

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations/postgres
var postgresMigrationsFS embed.FS

// PostgresConfig mirrors the teacher's database.Config pool-tuning
// knobs (pkg/database/client.go).
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewPostgresStore opens a network-backed checkpoint store over a
// connection pool, running embedded migrations on first use — the
// "network-sql" variant from spec.md §4.1, supporting multiple
// concurrent pipelines on different threads via row-level isolation.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*sqlStore, error) {
	db, err := stdsql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: ping postgres: %w", err)
	}

	if err := runPostgresMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: postgres migrations: %w", err)
	}

	return &sqlStore{db: db, dialect: postgresDialect}, nil
}

func runPostgresMigrations(db *stdsql.DB) error {
	sub, err := fs.Sub(postgresMigrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("sub embedded fs: %w", err)
	}
	sourceDriver, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// As in the teacher's runMigrations: closing the migrate instance
	// would close the shared *sql.DB. Close only the source driver.
	return sourceDriver.Close()
}
