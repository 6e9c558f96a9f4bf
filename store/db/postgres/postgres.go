package postgres

import (
	"time"

	"github.com/jmoiron/sqlx"
	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/internal/profile"
	"github.com/hrygo/studypulse/store"
	"github.com/hrygo/studypulse/store/db/sqlstore"
)

// ============================================================================
// POSTGRESQL SUPPORT (Production)
// ============================================================================
// PostgreSQL is the reference database. List-valued columns are JSONB and
// concurrent writers are allowed; per-key ordering is still enforced by the
// service's keyed lock plus a transaction.
// ============================================================================

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sqlx.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	// Verify connection is working before returning
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return sqlstore.New(db, "postgres"), nil
}
