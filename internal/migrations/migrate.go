// Package migrations applies the hand-written SQL GORM's AutoMigrate
// can't express — partial indexes over orders/offer_audit backing the
// ExpiryWorker's hot queries — via golang-migrate, the dependency
// order_service's go.mod declares.
// AutoMigrate (run separately at startup) still owns table/column sync;
// this package owns everything that needs raw DDL.
package migrations

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Run applies every pending migration against databaseURL. A no-change
// result is not an error.
func Run(databaseURL string) error {
	source, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
