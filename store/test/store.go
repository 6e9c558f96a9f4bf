package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/hrygo/studypulse/internal/profile"
	"github.com/hrygo/studypulse/store"
	"github.com/hrygo/studypulse/store/db"
)

// getDriverFromEnv returns the driver under test. DRIVER=postgres switches the
// suite to PostgreSQL, anything else runs on a temporary SQLite file.
func getDriverFromEnv() string {
	if driver := os.Getenv("DRIVER"); driver == "postgres" {
		return driver
	}
	return "sqlite"
}

const (
	testUser     = "testuser"
	testPassword = "testpassword"
	testDatabase = "studypulse_test"
	postgresImg  = "postgres:16-alpine"
)

// GetPostgresDSN returns POSTGRES_TEST_DSN when set. Otherwise it starts a
// fresh PostgreSQL container that lives until the test ends.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		return dsn
	}

	pgContainer, err := postgres.Run(t.Context(), postgresImg,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		// t.Context is already canceled when cleanups run
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(t.Context(), "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return dsn
}

// NewTestingStore opens a migrated store for the configured driver and closes it
// when the test ends.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	return newTestingStoreWithDriver(ctx, t, getDriverFromEnv())
}

func newTestingStoreWithDriver(ctx context.Context, t *testing.T, driverName string) *store.Store {
	t.Helper()

	p := &profile.Profile{Mode: "dev", Driver: driverName}
	switch p.Driver {
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		p.Data = t.TempDir()
		p.DSN = filepath.Join(p.Data, "studypulse_test.db")
	}

	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}
	s := store.New(driver, p)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("failed to close store: %v", err)
		}
	})

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return s
}
