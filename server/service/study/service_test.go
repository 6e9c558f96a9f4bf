package study

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/studypulse/internal/profile"
	"github.com/hrygo/studypulse/plugin/study/graph"
	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/plugin/study/review"
	studyerrors "github.com/hrygo/studypulse/server/internal/errors"
	"github.com/hrygo/studypulse/server/internal/observability"
	storetest "github.com/hrygo/studypulse/store/test"
)

var baseTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type testService struct {
	Service
	now     time.Time
	metrics *observability.Metrics
}

func (ts *testService) advance(d time.Duration) {
	ts.now = ts.now.Add(d)
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	return newTestServiceWithProfile(t, &profile.Profile{SyncConcurrency: 2, RecommendationLimit: 6})
}

func newTestServiceWithProfile(t *testing.T, p *profile.Profile, opts ...Option) *testService {
	t.Helper()
	st := storetest.NewTestingStore(context.Background(), t)
	ts := &testService{now: baseTime, metrics: observability.NewMetrics()}
	ts.Service = NewService(st, p, append([]Option{
		WithClock(func() time.Time { return ts.now }),
		WithMetrics(ts.metrics),
	}, opts...)...)
	return ts
}

// logEntries decodes every JSON log line written to buf.
func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		entries = append(entries, entry)
	}
	return entries
}

func testOwner() string {
	return "owner-" + uuid.NewString()
}

func ptr[T any](v T) *T { return &v }

func TestRevisionFlow(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)
	owner := testOwner()

	item, err := ts.CreateRevisionItem(ctx, owner, &CreateRevisionItemRequest{
		Title:   "Chain rule",
		Subject: "calculus",
		Tags:    []string{"derivatives"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)
	assert.Equal(t, 1, item.IntervalDays)
	assert.True(t, baseTime.AddDate(0, 0, 1).Equal(item.NextReview))

	due, err := ts.DueRevisionItems(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, due.Items)

	ts.advance(36 * time.Hour)
	due, err = ts.DueRevisionItems(ctx, owner)
	require.NoError(t, err)
	require.Len(t, due.Items, 1)
	assert.Equal(t, review.DefaultMinutesPerItem, due.EstimatedMinutes)

	reviewed, err := ts.ReviewRevisionItem(ctx, owner, item.ID, review.QualityPerfect)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewed.Repetitions)
	assert.Equal(t, 6, reviewed.IntervalDays)
	assert.Equal(t, 30, reviewed.MasteryLevel)
	assert.Greater(t, reviewed.EaseFactor, review.DefaultEaseFactor)
	require.Len(t, reviewed.ReviewHistory, 1)
	assert.Equal(t, review.QualityPerfect, reviewed.ReviewHistory[0].Quality)

	due, err = ts.DueRevisionItems(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, due.Items)

	// out of range ratings are clamped, not rejected
	failed, err := ts.ReviewRevisionItem(ctx, owner, item.ID, review.Quality(-3))
	require.NoError(t, err)
	assert.Equal(t, 0, failed.Repetitions)
	assert.Equal(t, 1, failed.IntervalDays)
	require.Len(t, failed.ReviewHistory, 2)
	assert.Equal(t, review.QualityBlackout, failed.ReviewHistory[1].Quality)

	stats, err := ts.RevisionStatistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Active)
}

func TestArchiveRemovesFromQueue(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)
	owner := testOwner()

	item, err := ts.CreateRevisionItem(ctx, owner, &CreateRevisionItemRequest{Content: "# Limits\nepsilon delta"})
	require.NoError(t, err)

	archived, err := ts.ArchiveRevisionItem(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.Equal(t, review.StatusArchived, archived.Status)

	ts.advance(10 * 24 * time.Hour)
	due, err := ts.DueRevisionItems(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, due.Items)

	// reviewing an archived item keeps it archived
	reviewed, err := ts.ReviewRevisionItem(ctx, owner, item.ID, review.QualityPerfect)
	require.NoError(t, err)
	assert.Equal(t, review.StatusArchived, reviewed.Status)
}

func TestRevisionErrors(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)
	owner := testOwner()

	_, err := ts.ReviewRevisionItem(ctx, owner, "missing", review.QualityPerfect)
	require.Error(t, err)
	assert.True(t, studyerrors.IsCode(err, studyerrors.ErrCodeNotFound))

	_, err = ts.CreateRevisionItem(ctx, owner, &CreateRevisionItemRequest{Title: "  "})
	assert.True(t, studyerrors.IsCode(err, studyerrors.ErrCodeInvalidArgument))

	_, err = ts.CreateRevisionItem(ctx, "", &CreateRevisionItemRequest{Title: "x"})
	assert.True(t, studyerrors.IsCode(err, studyerrors.ErrCodeInvalidArgument))

	item, err := ts.CreateRevisionItem(ctx, owner, &CreateRevisionItemRequest{Title: "Mine"})
	require.NoError(t, err)
	_, err = ts.ReviewRevisionItem(ctx, testOwner(), item.ID, review.QualityPerfect)
	assert.True(t, studyerrors.IsCode(err, studyerrors.ErrCodeNotFound), "items are scoped to their owner")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ts.DueRevisionItems(canceled, owner)
	assert.True(t, studyerrors.IsCode(err, studyerrors.ErrCodeContextCanceled))

	snap := ts.metrics.Snapshot()
	require.Contains(t, snap.Operations, OpReviewRevisionItem)
	assert.Equal(t, int64(2), snap.Operations[OpReviewRevisionItem].ErrorCount)
}

func TestRecordActivityCreatesConcept(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)
	owner := testOwner()

	c, err := ts.RecordActivity(ctx, owner, &RecordActivityRequest{
		ConceptName: "Linear Equations",
		Subject:     "algebra",
		Event:       mastery.ActivityEvent{Score: mastery.Percent(80), Source: mastery.SourceQuiz},
	})
	require.NoError(t, err)
	assert.Equal(t, "linear-equations", c.ConceptKey)
	assert.Equal(t, "Linear Equations", c.ConceptName)
	assert.Equal(t, 20, c.MasteryLevel)
	assert.InDelta(t, 0.24, c.ConfidenceScore, 1e-9)
	assert.Equal(t, mastery.StatusWeak, c.Status)
	assert.Equal(t, 1, c.TotalReviews)
	require.NotNil(t, c.NextReview)

	// the key wins over the name
	c, err = ts.RecordActivity(ctx, owner, &RecordActivityRequest{
		ConceptKey: "linear-equations",
		Event:      mastery.ActivityEvent{Score: mastery.Fraction(0.9)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Linear Equations", c.ConceptName)
	assert.Equal(t, 2, c.TotalReviews)

	list, err := ts.ListConcepts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)

	due, err := ts.DueConcepts(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, due)

	ts.advance(60 * 24 * time.Hour)
	due, err = ts.DueConcepts(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	// a name without a usable key gets a generated one
	unnamed, err := ts.RecordActivity(ctx, owner, &RecordActivityRequest{
		ConceptName: "!!!",
		Event:       mastery.ActivityEvent{Score: mastery.Percent(40)},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(unnamed.ConceptKey, mastery.FallbackKeyPrefix))
	assert.Equal(t, unnamed.ConceptKey, unnamed.ConceptName)
	assert.Equal(t, 1, unnamed.TotalReviews)

	again, err := ts.RecordActivity(ctx, owner, &RecordActivityRequest{
		ConceptKey: unnamed.ConceptKey,
		Event:      mastery.ActivityEvent{Score: mastery.Percent(60)},
	})
	require.NoError(t, err)
	assert.Equal(t, unnamed.ConceptKey, again.ConceptKey)
	assert.Equal(t, 2, again.TotalReviews)
}

func TestMarkMastered(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)
	owner := testOwner()

	_, err := ts.MarkMastered(ctx, owner, "unknown")
	assert.True(t, studyerrors.IsCode(err, studyerrors.ErrCodeNotFound))

	_, err = ts.RecordActivity(ctx, owner, &RecordActivityRequest{
		ConceptName: "Vectors",
		Event:       mastery.ActivityEvent{Score: mastery.Percent(50)},
	})
	require.NoError(t, err)

	c, err := ts.MarkMastered(ctx, owner, "vectors")
	require.NoError(t, err)
	assert.Equal(t, 100, c.MasteryLevel)
	assert.Equal(t, mastery.StatusMastered, c.Status)
	assert.Nil(t, c.NextReview)

	ts.advance(365 * 24 * time.Hour)
	due, err := ts.DueConcepts(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestUpsertConcept(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)
	owner := testOwner()

	c, err := ts.UpsertConcept(ctx, owner, &UpsertConceptRequest{
		ConceptName: "Integration by Parts",
		Subject:     ptr("calculus"),
		Importance:  ptr(1.5),
		Prerequisites: []mastery.Relation{
			{ConceptKey: "derivatives", Strength: 2},
			{ConceptKey: "integration-by-parts", Strength: 0.5},
			{ConceptKey: "derivatives", Strength: 0.1},
			{ConceptKey: " ", Strength: 0.5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "integration-by-parts", c.ConceptKey)
	assert.Equal(t, 1.0, c.Importance)
	assert.Equal(t, mastery.DefaultDifficulty, c.Difficulty)
	assert.Equal(t, []mastery.Relation{{ConceptKey: "derivatives", Strength: 1}}, c.Prerequisites)

	_, err = ts.RecordActivity(ctx, owner, &RecordActivityRequest{
		ConceptKey: c.ConceptKey,
		Event:      mastery.ActivityEvent{Score: mastery.Percent(100)},
	})
	require.NoError(t, err)

	// editing identity fields keeps the learning state
	edited, err := ts.UpsertConcept(ctx, owner, &UpsertConceptRequest{
		ConceptName: "Integration By Parts",
		Difficulty:  ptr(0.8),
	})
	require.NoError(t, err)
	assert.Equal(t, "Integration By Parts", edited.ConceptName)
	assert.Equal(t, "calculus", edited.Subject)
	assert.Equal(t, 25, edited.MasteryLevel)
	assert.Equal(t, 0.8, edited.Difficulty)
	assert.Len(t, edited.Prerequisites, 1)
	assert.True(t, baseTime.Equal(edited.CreatedAt))

	a, err := ts.UpsertConcept(ctx, owner, &UpsertConceptRequest{ConceptName: ""})
	require.NoError(t, err)
	b, err := ts.UpsertConcept(ctx, owner, &UpsertConceptRequest{ConceptName: "  "})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.ConceptKey, mastery.FallbackKeyPrefix))
	assert.Equal(t, a.ConceptKey, a.ConceptName)
	assert.NotEqual(t, a.ConceptKey, b.ConceptKey)

	list, err := ts.ListConcepts(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestConceptGraphAndRecommendations(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)
	owner := testOwner()

	_, err := ts.UpsertConcept(ctx, owner, &UpsertConceptRequest{ConceptName: "Derivatives", Subject: ptr("calculus")})
	require.NoError(t, err)
	_, err = ts.UpsertConcept(ctx, owner, &UpsertConceptRequest{
		ConceptName:   "Chain Rule",
		Subject:       ptr("calculus"),
		Importance:    ptr(0.9),
		Prerequisites: []mastery.Relation{{ConceptKey: "derivatives", Strength: 0.7}},
	})
	require.NoError(t, err)
	_, err = ts.RecordActivity(ctx, owner, &RecordActivityRequest{
		ConceptName: "Sets",
		Subject:     "logic",
		Event:       mastery.ActivityEvent{Score: mastery.Percent(95)},
	})
	require.NoError(t, err)

	g, err := ts.ConceptGraph(ctx, owner, graph.Config{})
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 3)
	require.Len(t, g.Links, 1)
	assert.Equal(t, "derivatives", g.Links[0].Source)
	assert.Equal(t, "chain-rule", g.Links[0].Target)
	assert.Equal(t, graph.LinkTypePrerequisite, g.Links[0].Type)
	assert.Equal(t, 3, g.Stats.Total)

	recs, err := ts.Recommendations(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Priority, recs[i].Priority)
	}
	for _, r := range recs {
		if r.ConceptKey == "chain-rule" {
			require.Len(t, r.Blockers, 1)
			assert.Equal(t, "derivatives", r.Blockers[0].ConceptKey)
		}
	}

	recs, err = ts.Recommendations(ctx, owner, 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	empty, err := ts.Recommendations(ctx, testOwner(), 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSyncFromRevisionsKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)
	owner := testOwner()

	deriv, err := ts.CreateRevisionItem(ctx, owner, &CreateRevisionItemRequest{Title: "Derivatives", Subject: "calculus", Tags: []string{"limits"}})
	require.NoError(t, err)
	_, err = ts.CreateRevisionItem(ctx, owner, &CreateRevisionItemRequest{Title: "Integrals", Subject: "calculus", Tags: []string{"limits"}})
	require.NoError(t, err)
	_, err = ts.ReviewRevisionItem(ctx, owner, deriv.ID, review.QualityPerfect)
	require.NoError(t, err)

	_, err = ts.UpsertConcept(ctx, owner, &UpsertConceptRequest{ConceptName: "Derivatives", Importance: ptr(0.9), Subject: ptr("analysis")})
	require.NoError(t, err)

	ts.advance(time.Hour)
	n, err := ts.SyncFromRevisions(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := ts.ListConcepts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byKey := map[string]*mastery.ConceptMastery{}
	for _, c := range list {
		byKey[c.ConceptKey] = c
	}
	d := byKey["derivatives"]
	require.NotNil(t, d)
	assert.Equal(t, 0.9, d.Importance)
	assert.Equal(t, "analysis", d.Subject)
	assert.True(t, baseTime.Equal(d.CreatedAt))
	assert.Equal(t, 30, d.MasteryLevel)
	assert.Equal(t, []mastery.Relation{{ConceptKey: "integrals", Strength: 0.8}}, d.RelatedConcepts)

	i := byKey["integrals"]
	require.NotNil(t, i)
	assert.Equal(t, "Integrals", i.ConceptName)
	assert.Equal(t, mastery.DefaultImportance, i.Importance)

	// repeated syncs converge
	n, err = ts.SyncFromRevisions(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	list, err = ts.ListConcepts(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSyncFromRevisionsKeepsMasteredAndReviewCount(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)
	owner := testOwner()

	for i := 0; i < 5; i++ {
		_, err := ts.RecordActivity(ctx, owner, &RecordActivityRequest{
			ConceptName: "Eigenvalues",
			Event:       mastery.ActivityEvent{Score: mastery.Percent(70)},
		})
		require.NoError(t, err)
	}
	_, err := ts.RecordActivity(ctx, owner, &RecordActivityRequest{
		ConceptName: "Determinants",
		Event:       mastery.ActivityEvent{Score: mastery.Percent(70)},
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = ts.RecordActivity(ctx, owner, &RecordActivityRequest{
			ConceptName: "Determinants",
			Event:       mastery.ActivityEvent{Score: mastery.Percent(70)},
		})
		require.NoError(t, err)
	}

	_, err = ts.MarkMastered(ctx, owner, "eigenvalues")
	require.NoError(t, err)

	_, err = ts.CreateRevisionItem(ctx, owner, &CreateRevisionItemRequest{Title: "Eigenvalues", Subject: "linear-algebra"})
	require.NoError(t, err)
	_, err = ts.CreateRevisionItem(ctx, owner, &CreateRevisionItemRequest{Title: "Determinants", Subject: "linear-algebra"})
	require.NoError(t, err)

	ts.advance(time.Hour)
	n, err := ts.SyncFromRevisions(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the mastered concept is not rewritten")

	list, err := ts.ListConcepts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	byKey := map[string]*mastery.ConceptMastery{}
	for _, c := range list {
		byKey[c.ConceptKey] = c
	}

	e := byKey["eigenvalues"]
	require.NotNil(t, e)
	assert.Equal(t, 5, e.TotalReviews)
	assert.Equal(t, 100, e.MasteryLevel)
	assert.Equal(t, mastery.StatusMastered, e.Status)
	assert.Nil(t, e.NextReview)

	// a fresh revision item has no history; the count does not go back down
	d := byKey["determinants"]
	require.NotNil(t, d)
	assert.Equal(t, 3, d.TotalReviews)

	ts.advance(365 * 24 * time.Hour)
	due, err := ts.DueConcepts(ctx, owner)
	require.NoError(t, err)
	for _, c := range due {
		assert.NotEqual(t, "eigenvalues", c.ConceptKey)
	}
}

func TestSyncAll(t *testing.T) {
	ctx := context.Background()
	ts := newTestService(t)

	owners := []string{testOwner(), testOwner(), testOwner()}
	for i, owner := range owners {
		for j := 0; j <= i; j++ {
			_, err := ts.CreateRevisionItem(ctx, owner, &CreateRevisionItemRequest{Title: "Topic " + string(rune('A'+j))})
			require.NoError(t, err)
		}
	}

	report, err := ts.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Owners)
	assert.Equal(t, 6, report.Concepts)
	assert.Empty(t, report.Failed)

	for i, owner := range owners {
		list, err := ts.ListConcepts(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, list, i+1)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ts.SyncAll(canceled)
	assert.True(t, studyerrors.IsCode(err, studyerrors.ErrCodeContextCanceled))
}

func TestSyncAll_Paced(t *testing.T) {
	ctx := context.Background()
	ts := newTestServiceWithProfile(t, &profile.Profile{SyncConcurrency: 4, SyncRate: 50})

	for i := 0; i < 3; i++ {
		_, err := ts.CreateRevisionItem(ctx, testOwner(), &CreateRevisionItemRequest{Title: "Recursion"})
		require.NoError(t, err)
	}

	report, err := ts.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Owners)
	assert.Equal(t, 3, report.Concepts)
}

func TestSyncAllSharesRequestID(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ts := newTestServiceWithProfile(t, &profile.Profile{SyncConcurrency: 2}, WithLogger(logger))

	for i := 0; i < 3; i++ {
		_, err := ts.CreateRevisionItem(ctx, testOwner(), &CreateRevisionItemRequest{Title: "Photosynthesis"})
		require.NoError(t, err)
	}
	buf.Reset()

	_, err := ts.SyncAll(ctx)
	require.NoError(t, err)

	var syncAllID string
	perOwner := 0
	ids := map[any]bool{}
	for _, entry := range logEntries(t, &buf) {
		switch entry[observability.LogFieldOperation] {
		case OpSyncAll:
			syncAllID, _ = entry[observability.LogFieldRequestID].(string)
		case OpSyncFromRevisions:
			perOwner++
			ids[entry[observability.LogFieldRequestID]] = true
		}
	}
	require.NotEmpty(t, syncAllID)
	assert.GreaterOrEqual(t, perOwner, 3)
	assert.Equal(t, map[any]bool{syncAllID: true}, ids)
}

func TestFailureLogCarriesErrorContext(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	ts := newTestServiceWithProfile(t, &profile.Profile{}, WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	owner := testOwner()

	_, err := ts.MarkMastered(ctx, owner, "ghost")
	require.True(t, studyerrors.IsCode(err, studyerrors.ErrCodeNotFound))
	_, err = ts.ArchiveRevisionItem(ctx, owner, "missing-item")
	require.True(t, studyerrors.IsCode(err, studyerrors.ErrCodeNotFound))

	entries := logEntries(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "ghost", entries[0][observability.LogFieldConceptKey])
	assert.Equal(t, string(studyerrors.ErrCodeNotFound), entries[0][observability.LogFieldErrorCode])
	assert.Equal(t, "missing-item", entries[1][observability.LogFieldItemID])
}
