// Package sqlstore implements store.Driver over sqlx. The sqlite and postgres
// drivers share it and differ only in connection setup and schema file.
package sqlstore

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/store"
)

// DB is a store.Driver bound either to a connection pool or to one transaction.
type DB struct {
	db     *sqlx.DB
	tx     *sqlx.Tx
	q      sqlx.ExtContext
	schema string
}

// New wraps db. schema names the migration directory under store/migration.
func New(db *sqlx.DB, schema string) *DB {
	return &DB{db: db, q: db, schema: schema}
}

func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	statements, err := store.LatestSchema(d.schema)
	if err != nil {
		return err
	}
	return d.RunInTx(ctx, func(tx store.Driver) error {
		q := tx.(*DB).q
		for i, stmt := range statements {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "failed to execute statement %d: %s", i+1, stmt)
			}
		}
		slog.Debug("schema applied", slog.String("driver", d.schema), slog.Int("statements", len(statements)))
		return nil
	})
}

func (d *DB) RunInTx(ctx context.Context, fn func(tx store.Driver) error) error {
	if d.tx != nil {
		return fn(d)
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&DB{tx: tx, q: tx, schema: d.schema}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (d *DB) ListOwners(ctx context.Context) ([]string, error) {
	owners := []string{}
	query := `SELECT DISTINCT owner FROM revision_item ORDER BY owner`
	if err := sqlx.SelectContext(ctx, d.q, &owners, query); err != nil {
		return nil, errors.Wrap(err, "failed to list owners")
	}
	return owners, nil
}
