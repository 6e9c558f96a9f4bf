package sqlite

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	// Import the pure Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/studypulse/internal/profile"
	"github.com/hrygo/studypulse/store"
	"github.com/hrygo/studypulse/store/db/sqlstore"
)

// ============================================================================
// SQLITE SUPPORT (Development / single user)
// ============================================================================
// One connection only: SQLite has a single writer, and a transaction holds the
// connection until it finishes, so same-database writes are serialised here.
// ============================================================================

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sqlx.Open("sqlite", dsn(profile.DSN))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return sqlstore.New(db, "sqlite"), nil
}

// dsn appends the pragmas every connection needs unless the caller set them.
func dsn(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", path, sep)
}
