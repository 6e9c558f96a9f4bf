package store

import (
	"time"
)

// FindConceptMastery specifies the conditions for listing concept masteries.
// Owner is required.
type FindConceptMastery struct {
	Owner      string
	ConceptKey *string
	Subject    *string
	// DueBefore keeps concepts with a scheduled review at or before the given time.
	DueBefore *time.Time
}

// Columns a bulk sync may overwrite on an existing concept. Identity columns
// (concept_name, subject, tags, importance, prerequisites, review_history,
// created_ts) are written only when the row is inserted. total_reviews only
// grows, and a concept marked mastered (status mastered, no next review) is
// skipped entirely.
var DerivedConceptColumns = []string{
	"mastery_level",
	"confidence_score",
	"status",
	"difficulty",
	"total_reviews",
	"recent_score",
	"last_reviewed_ts",
	"next_review_ts",
	"related_concepts",
	"updated_ts",
}
