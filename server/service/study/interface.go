package study

import (
	"context"

	"github.com/hrygo/studypulse/plugin/study/graph"
	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/plugin/study/recommend"
	"github.com/hrygo/studypulse/plugin/study/review"
)

// Service defines the study operations exposed to the CLI and the sync runner.
// Every method is scoped to one owner; errors are *errors.StudyError values.
type Service interface {
	// CreateRevisionItem stores a new item with the initial schedule.
	CreateRevisionItem(ctx context.Context, owner string, create *CreateRevisionItemRequest) (*review.RevisionItem, error)
	// ReviewRevisionItem applies one 0-5 rating and persists the new schedule.
	// Out-of-range ratings are clamped.
	ReviewRevisionItem(ctx context.Context, owner, id string, quality review.Quality) (*review.RevisionItem, error)
	// ArchiveRevisionItem takes an item out of the review queue for good.
	ArchiveRevisionItem(ctx context.Context, owner, id string) (*review.RevisionItem, error)
	// DueRevisionItems lists the active items due now with a study time estimate.
	DueRevisionItems(ctx context.Context, owner string) (*DueRevisionItems, error)
	// RevisionStatistics summarises all of the owner's items.
	RevisionStatistics(ctx context.Context, owner string) (*review.Statistics, error)

	// UpsertConcept creates a concept or edits its identity fields and prerequisites.
	UpsertConcept(ctx context.Context, owner string, upsert *UpsertConceptRequest) (*mastery.ConceptMastery, error)
	// RecordActivity folds one activity into a concept, creating it on first activity.
	RecordActivity(ctx context.Context, owner string, activity *RecordActivityRequest) (*mastery.ConceptMastery, error)
	// MarkMastered forces a concept into the mastered state.
	MarkMastered(ctx context.Context, owner, conceptKey string) (*mastery.ConceptMastery, error)
	// ListConcepts returns every concept of the owner.
	ListConcepts(ctx context.Context, owner string) ([]*mastery.ConceptMastery, error)
	// DueConcepts returns the concepts whose next review is at or before now.
	DueConcepts(ctx context.Context, owner string) ([]*mastery.ConceptMastery, error)

	// ConceptGraph projects the owner's concepts into a graph. cfg.Now defaults to the service clock.
	ConceptGraph(ctx context.Context, owner string, cfg graph.Config) (*graph.ConceptGraph, error)
	// Recommendations ranks the owner's concepts. A limit <= 0 uses the configured default.
	Recommendations(ctx context.Context, owner string, limit int) ([]recommend.Recommendation, error)

	// SyncFromRevisions derives concepts from the owner's revision items and bulk-upserts them.
	SyncFromRevisions(ctx context.Context, owner string) (int, error)
	// SyncAll runs SyncFromRevisions for every owner with bounded concurrency.
	SyncAll(ctx context.Context) (*SyncReport, error)
}

// CreateRevisionItemRequest represents the request to create a revision item.
type CreateRevisionItemRequest struct {
	Title   string
	Content string
	Subject string
	Tags    []string
}

// DueRevisionItems is the review queue for one owner.
type DueRevisionItems struct {
	Items            []review.RevisionItem
	EstimatedMinutes int
}

// UpsertConceptRequest represents the request to create or edit a concept.
// Nil pointers leave the current value unchanged. A name that yields no key
// creates a new concept under a generated key.
type UpsertConceptRequest struct {
	ConceptName   string
	Subject       *string
	Tags          []string
	Importance    *float64
	Difficulty    *float64
	Prerequisites []mastery.Relation
}

// RecordActivityRequest represents one observed activity on a concept.
// ConceptKey wins over ConceptName when both are set; the name is still used
// as the display name when the concept is created.
type RecordActivityRequest struct {
	ConceptKey  string
	ConceptName string
	Subject     string
	Tags        []string
	Event       mastery.ActivityEvent
}

// SyncReport summarises one SyncAll run.
type SyncReport struct {
	Owners   int
	Concepts int
	Failed   map[string]error
}
