// Package migrate brings the membership mirror schema (organizations,
// organization_memberships, organization_domains) to its target version
// from the embedded SQL set.
package migrate

import (
	"errors"
	"fmt"

	"membersync/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ErrNoChange reports that the mirror schema is already at the target version.
var ErrNoChange = migrate.ErrNoChange

// Run moves the mirror schema fully up or down. A schema that is already at
// the target version is success, not an error.
func Run(dsn string, direction string) error {
	if dsn == "" {
		return errors.New("migrate: DATABASE_URL is required to reach the mirror database")
	}
	if direction != DirectionUp && direction != DirectionDown {
		return fmt.Errorf("migrate: unknown direction %q (want %s or %s)", direction, DirectionUp, DirectionDown)
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: load embedded mirror schema: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: open mirror database: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	step := m.Up
	if direction == DirectionDown {
		step = m.Down
	}
	if err := step(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}
