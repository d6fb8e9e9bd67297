package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SchemaVersion is the newest content schema shipped with this binary.
const SchemaVersion uint = 2

const migrationsTable = "schema_migrations"

var ErrSchemaOutdated = errors.New("content schema is not current")

// SchemaStatus describes the content schema as recorded by the migrator.
type SchemaStatus struct {
	Version uint
	Dirty   bool
}

// Current reports whether the schema matches this binary and no migration
// was left half-applied.
func (s SchemaStatus) Current() bool {
	return s.Version == SchemaVersion && !s.Dirty
}

// migrationLogger routes migrate's progress output to slog.
type migrationLogger struct{}

func (migrationLogger) Printf(format string, v ...any) {
	slog.Debug("Content schema migration", "message", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (migrationLogger) Verbose() bool {
	return false
}

func newMigrator(db *DB) (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrationLogger{}

	return m, nil
}

// RunMigrations brings the content schema up to SchemaVersion. A dirty
// schema is reported as an error since content reads would be unreliable.
func RunMigrations(db *DB) (SchemaStatus, error) {
	m, err := newMigrator(db)
	if err != nil {
		return SchemaStatus{}, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return SchemaStatus{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to get migration version: %w", err)
	}

	status := SchemaStatus{Version: version, Dirty: dirty}
	if !status.Current() {
		return status, fmt.Errorf("%w: version %d dirty=%v", ErrSchemaOutdated, version, dirty)
	}

	return status, nil
}

// SchemaStatus reads the migration table directly so health checks stay
// cheap. An unmigrated database reports version 0.
func (db *DB) SchemaStatus(ctx context.Context) (SchemaStatus, error) {
	var status SchemaStatus
	err := db.QueryRowContext(ctx,
		`SELECT version, dirty FROM `+migrationsTable+` LIMIT 1`).Scan(&status.Version, &status.Dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return SchemaStatus{}, nil
	}
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return status, nil
}
