package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/internal/profile"
	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/plugin/study/review"
)

// Store provides database access to revision items and concept masteries.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// RunInTx runs fn with a Store bound to one transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.driver.RunInTx(ctx, func(tx Driver) error {
		return fn(&Store{driver: tx, profile: s.profile})
	})
}

func (s *Store) CreateRevisionItem(ctx context.Context, create *review.RevisionItem) (*review.RevisionItem, error) {
	return s.driver.CreateRevisionItem(ctx, create)
}

func (s *Store) ListRevisionItems(ctx context.Context, find *FindRevisionItem) ([]*review.RevisionItem, error) {
	return s.driver.ListRevisionItems(ctx, find)
}

// GetRevisionItem returns the item or nil when it does not exist.
func (s *Store) GetRevisionItem(ctx context.Context, owner, id string) (*review.RevisionItem, error) {
	list, err := s.driver.ListRevisionItems(ctx, &FindRevisionItem{Owner: owner, ID: &id, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateRevisionItem(ctx context.Context, update *review.RevisionItem) error {
	return s.driver.UpdateRevisionItem(ctx, update)
}

// ListConceptMasteries returns the owner's concepts with their status re-derived.
func (s *Store) ListConceptMasteries(ctx context.Context, find *FindConceptMastery) ([]*mastery.ConceptMastery, error) {
	list, err := s.driver.ListConceptMasteries(ctx, find)
	if err != nil {
		return nil, err
	}
	for i, c := range list {
		reconciled := mastery.Reconcile(*c)
		list[i] = &reconciled
	}
	return list, nil
}

// GetConceptMastery returns the concept or nil when it does not exist.
func (s *Store) GetConceptMastery(ctx context.Context, owner, key string) (*mastery.ConceptMastery, error) {
	list, err := s.ListConceptMasteries(ctx, &FindConceptMastery{Owner: owner, ConceptKey: &key})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpsertConceptMastery(ctx context.Context, upsert *mastery.ConceptMastery) (*mastery.ConceptMastery, error) {
	return s.driver.UpsertConceptMastery(ctx, upsert)
}

func (s *Store) BulkUpsertConceptMasteries(ctx context.Context, upserts []*mastery.ConceptMastery) (int, error) {
	for _, c := range upserts {
		if c.Owner == "" || c.ConceptKey == "" {
			return 0, errors.Errorf("concept %q of owner %q has no identity", c.ConceptKey, c.Owner)
		}
	}
	return s.driver.BulkUpsertConceptMasteries(ctx, upserts)
}

func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	return s.driver.ListOwners(ctx)
}
