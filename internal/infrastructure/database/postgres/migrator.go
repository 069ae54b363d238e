package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Migrator
// ─────────────────────────────────────────────────────────────────────────────

// migration is the subset of *migrate.Migrate the Migrator drives.
type migration interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
}

// newMigration is a variable to allow mocking in tests.
var newMigration = func(c *Connection, sourceURL string) (migration, error) {
	driver, err := migratepg.WithInstance(c.db, &migratepg.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
}

// Migrator applies the schema in a migrations directory to the connected
// database. It never closes the underlying pool.
type Migrator struct {
	conn      *Connection
	sourceURL string
	logger    logging.Logger
}

// NewMigrator builds a Migrator for the directory at path ("file://" is
// optional).
func NewMigrator(conn *Connection, path string, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Migrator{conn: conn, sourceURL: sourceURL(path), logger: log}
}

func sourceURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	mg, err := newMigration(m.conn, m.sourceURL)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mg.Version()
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, fmt.Sprintf("failed to run migrations (current version: %d)", version))
	}

	version, dirty, err := m.version(mg)
	if err != nil {
		m.logger.Warn("Failed to get migration version", logging.Err(err))
	}
	m.logger.Info("Database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Rollback reverts steps migrations.
func (m *Migrator) Rollback(steps int) error {
	if steps <= 0 {
		return apperrors.NewValidation("steps must be greater than 0, got %d", steps)
	}
	mg, err := newMigration(m.conn, m.sourceURL)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	if err := mg.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return apperrors.New(apperrors.ErrCodeConflict, "no migrations to roll back")
		}
		return apperrors.Wrapf(err, apperrors.ErrCodeDatabaseError, "failed to rollback %d step(s)", steps)
	}
	return nil
}

// Status reports the applied version and whether the last run left the schema dirty.
func (m *Migrator) Status() (uint, bool, error) {
	mg, err := newMigration(m.conn, m.sourceURL)
	if err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return m.version(mg)
}

// Force marks the schema as being at version without running anything.
func (m *Migrator) Force(version int) error {
	mg, err := newMigration(m.conn, m.sourceURL)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	if err := mg.Force(version); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeDatabaseError, "failed to force version %d", version)
	}
	return nil
}

func (m *Migrator) version(mg migration) (uint, bool, error) {
	version, dirty, err := mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return version, dirty, nil
}
