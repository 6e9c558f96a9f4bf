package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/store"
)

func newConcept(t *testing.T, owner, name string) mastery.ConceptMastery {
	t.Helper()
	c, err := mastery.New(owner, name, "math", []string{"algebra"}, baseTime)
	require.NoError(t, err)
	return c
}

func TestConceptMasteryStore_UpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	owner := testOwner()

	c := newConcept(t, owner, "Quadratic Equations")
	c.Prerequisites = []mastery.Relation{{ConceptKey: "linear-equations", Strength: 0.9}}
	c = mastery.RecordActivity(c, mastery.ActivityEvent{Score: mastery.Percent(80), Source: mastery.SourceQuiz}, baseTime.Add(time.Hour))

	saved, err := ts.UpsertConceptMastery(ctx, &c)
	require.NoError(t, err)
	require.Equal(t, c.MasteryLevel, saved.MasteryLevel)
	require.Equal(t, c.Prerequisites, saved.Prerequisites)
	require.Len(t, saved.ReviewHistory, 1)
	require.Equal(t, mastery.SourceQuiz, saved.ReviewHistory[0].Source)
	require.NotNil(t, saved.NextReview)
	require.True(t, c.NextReview.Equal(*saved.NextReview))

	// full replace keeps created time
	c2 := mastery.MarkMastered(*saved, baseTime.Add(2*time.Hour))
	c2.CreatedAt = baseTime.Add(99 * time.Hour)
	_, err = ts.UpsertConceptMastery(ctx, &c2)
	require.NoError(t, err)

	got, err := ts.GetConceptMastery(ctx, owner, c.ConceptKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 100, got.MasteryLevel)
	require.Nil(t, got.NextReview)
	require.True(t, baseTime.Equal(got.CreatedAt))

	missing, err := ts.GetConceptMastery(ctx, owner, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestConceptMasteryStore_StatusReconciledOnRead(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	owner := testOwner()

	c := newConcept(t, owner, "Vectors")
	c.MasteryLevel = 95
	c.ConfidenceScore = 0.8
	c.Status = mastery.StatusWeak // stale
	_, err := ts.UpsertConceptMastery(ctx, &c)
	require.NoError(t, err)

	got, err := ts.GetConceptMastery(ctx, owner, c.ConceptKey)
	require.NoError(t, err)
	require.Equal(t, mastery.StatusMastered, got.Status)
}

func TestConceptMasteryStore_BulkUpsertOnlyTouchesDerivedFields(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	owner := testOwner()

	existing := newConcept(t, owner, "Limits")
	existing.ConceptName = "Limits (edited)"
	existing.Importance = 0.9
	existing.Prerequisites = []mastery.Relation{{ConceptKey: "functions", Strength: 1}}
	_, err := ts.UpsertConceptMastery(ctx, &existing)
	require.NoError(t, err)

	next := baseTime.Add(72 * time.Hour)
	synced := newConcept(t, owner, "Limits")
	synced.ConceptName = "Limits"
	synced.Subject = "calculus"
	synced.Tags = []string{"renamed"}
	synced.MasteryLevel = 75
	synced.ConfidenceScore = 0.65
	synced.Status = mastery.StatusStrong
	synced.NextReview = &next
	synced.RelatedConcepts = []mastery.Relation{{ConceptKey: "derivatives", Strength: 0.8}}
	synced.CreatedAt = baseTime.Add(48 * time.Hour)
	synced.UpdatedAt = baseTime.Add(48 * time.Hour)

	fresh := newConcept(t, owner, "Derivatives")
	fresh.MasteryLevel = 30

	n, err := ts.BulkUpsertConceptMasteries(ctx, []*mastery.ConceptMastery{&synced, &fresh})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := ts.GetConceptMastery(ctx, owner, existing.ConceptKey)
	require.NoError(t, err)
	// identity fields untouched
	require.Equal(t, "Limits (edited)", got.ConceptName)
	require.Equal(t, "math", got.Subject)
	require.Equal(t, []string{"algebra"}, got.Tags)
	require.Equal(t, 0.9, got.Importance)
	require.Equal(t, existing.Prerequisites, got.Prerequisites)
	require.True(t, baseTime.Equal(got.CreatedAt))
	// derived fields overwritten
	require.Equal(t, 75, got.MasteryLevel)
	require.Equal(t, 0.65, got.ConfidenceScore)
	require.True(t, next.Equal(*got.NextReview))
	require.Equal(t, synced.RelatedConcepts, got.RelatedConcepts)
	require.True(t, synced.UpdatedAt.Equal(got.UpdatedAt))

	inserted, err := ts.GetConceptMastery(ctx, owner, "derivatives")
	require.NoError(t, err)
	require.NotNil(t, inserted)
	require.Equal(t, 30, inserted.MasteryLevel)

	subject := "math"
	bySubject, err := ts.ListConceptMasteries(ctx, &store.FindConceptMastery{Owner: owner, Subject: &subject})
	require.NoError(t, err)
	require.Len(t, bySubject, 2)

	due, err := ts.ListConceptMasteries(ctx, &store.FindConceptMastery{Owner: owner, DueBefore: &next})
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "limits", due[0].ConceptKey)
}

func TestConceptMasteryStore_BulkUpsertKeepsReviewCountAndMastered(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	owner := testOwner()

	reviewed := newConcept(t, owner, "Matrices")
	reviewed.TotalReviews = 4
	_, err := ts.UpsertConceptMastery(ctx, &reviewed)
	require.NoError(t, err)

	pinned := mastery.MarkMastered(newConcept(t, owner, "Vectors"), baseTime)
	pinned.TotalReviews = 2
	_, err = ts.UpsertConceptMastery(ctx, &pinned)
	require.NoError(t, err)

	next := baseTime.Add(24 * time.Hour)
	syncedReviewed := newConcept(t, owner, "Matrices")
	syncedReviewed.MasteryLevel = 40
	syncedReviewed.TotalReviews = 1
	syncedReviewed.NextReview = &next
	syncedPinned := newConcept(t, owner, "Vectors")
	syncedPinned.MasteryLevel = 10
	syncedPinned.TotalReviews = 7
	syncedPinned.NextReview = &next

	n, err := ts.BulkUpsertConceptMasteries(ctx, []*mastery.ConceptMastery{&syncedReviewed, &syncedPinned})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := ts.GetConceptMastery(ctx, owner, "matrices")
	require.NoError(t, err)
	require.Equal(t, 4, got.TotalReviews)
	require.Equal(t, 40, got.MasteryLevel)

	got, err = ts.GetConceptMastery(ctx, owner, "vectors")
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalReviews)
	require.Equal(t, 100, got.MasteryLevel)
	require.Equal(t, mastery.StatusMastered, got.Status)
	require.Nil(t, got.NextReview)
}

func TestConceptMasteryStore_BulkUpsertRejectsMissingIdentity(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	_, err := ts.BulkUpsertConceptMasteries(ctx, []*mastery.ConceptMastery{{Owner: testOwner()}})
	require.Error(t, err)

	n, err := ts.BulkUpsertConceptMasteries(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, n)
}
