package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/plugin/study/review"
)

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = errors.New("not found")

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	Close() error

	// Migrate creates the schema if it does not exist yet. It is idempotent.
	Migrate(ctx context.Context) error

	// RunInTx runs fn against a driver bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Driver) error) error

	// RevisionItem model related methods.
	CreateRevisionItem(ctx context.Context, create *review.RevisionItem) (*review.RevisionItem, error)
	ListRevisionItems(ctx context.Context, find *FindRevisionItem) ([]*review.RevisionItem, error)
	UpdateRevisionItem(ctx context.Context, update *review.RevisionItem) error

	// ConceptMastery model related methods.
	ListConceptMasteries(ctx context.Context, find *FindConceptMastery) ([]*mastery.ConceptMastery, error)
	UpsertConceptMastery(ctx context.Context, upsert *mastery.ConceptMastery) (*mastery.ConceptMastery, error)
	// BulkUpsertConceptMasteries writes every concept in one transaction. Existing
	// rows only receive the DerivedConceptColumns. It returns the number of rows
	// inserted or updated.
	BulkUpsertConceptMasteries(ctx context.Context, upserts []*mastery.ConceptMastery) (int, error)

	// ListOwners returns every owner that has at least one revision item.
	ListOwners(ctx context.Context) ([]string, error)
}
