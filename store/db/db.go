package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/internal/profile"
	"github.com/hrygo/studypulse/store"
	"github.com/hrygo/studypulse/store/db/postgres"
	"github.com/hrygo/studypulse/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// PostgreSQL: production.
// SQLite: development, tests and single-user installs.
//
// Both drivers share their SQL through store/db/sqlstore; only connection
// setup and the schema file differ.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
