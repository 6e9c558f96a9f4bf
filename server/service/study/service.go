// Package study provides the study operations: SM-2 revision reviews, concept
// mastery tracking, the concept graph, recommendations and the revision to
// concept sync.
//
// Each write is a read-modify-write of one snapshot. Writes to the same key are
// serialised with an in-process key lock and run inside a store transaction;
// the engine functions themselves are pure and never see the store.
package study

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/internal/profile"
	"github.com/hrygo/studypulse/plugin/study/mastery"
	studyerrors "github.com/hrygo/studypulse/server/internal/errors"
	"github.com/hrygo/studypulse/server/internal/observability"
	"github.com/hrygo/studypulse/store"
)

// Operation names used in logs and metrics.
const (
	OpCreateRevisionItem  = "create_revision_item"
	OpReviewRevisionItem  = "review_revision_item"
	OpArchiveRevisionItem = "archive_revision_item"
	OpDueRevisionItems    = "due_revision_items"
	OpRevisionStatistics  = "revision_statistics"
	OpUpsertConcept       = "upsert_concept"
	OpRecordActivity      = "record_activity"
	OpMarkMastered        = "mark_mastered"
	OpListConcepts        = "list_concepts"
	OpDueConcepts         = "due_concepts"
	OpConceptGraph        = "concept_graph"
	OpRecommendations     = "recommendations"
	OpSyncFromRevisions   = "sync_from_revisions"
	OpSyncAll             = "sync_all"
)

type service struct {
	store   *store.Store
	profile *profile.Profile
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   func() time.Time
	locks   *keyLock
}

// Option configures the service.
type Option func(*service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *service) { s.clock = clock }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// WithMetrics sets the metrics collector. Defaults to the global one.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *service) { s.metrics = metrics }
}

// NewService creates a new study service.
func NewService(st *store.Store, p *profile.Profile, opts ...Option) Service {
	if p == nil {
		p = &profile.Profile{}
	}
	s := &service{
		store:   st,
		profile: p,
		logger:  slog.Default(),
		metrics: observability.GlobalMetrics(),
		clock:   time.Now,
		locks:   newKeyLock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now is second precision, matching what the store keeps.
func (s *service) now() time.Time {
	return s.clock().UTC().Truncate(time.Second)
}

func lockKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// run wraps one operation with owner validation, logging, metrics and error classification.
func (s *service) run(ctx context.Context, op, owner string, fn func(rc *observability.RequestContext) error) error {
	rc := observability.NewRequestContextWithID(s.logger, observability.RequestIDFromContext(ctx), op, owner)

	err := func() error {
		if strings.TrimSpace(owner) == "" {
			return studyerrors.InvalidArgument("owner is required", nil)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(rc)
	}()
	err = classify(err)

	s.metrics.Observe(op, rc.Duration(), err != nil)
	if err != nil {
		rc.Warn("operation failed", append(errorAttrs(err), slog.Int64(observability.LogFieldDuration, rc.DurationMs()))...)
		return err
	}
	rc.Debug("operation completed", slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return nil
}

// errorAttrs describes a classified error, including any context it carries.
func errorAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{
		slog.String(observability.LogFieldErrorCode, string(studyerrors.GetCodeFromError(err, studyerrors.ErrCodeStorageFailure))),
		slog.String("error", err.Error()),
	}
	var studyErr *studyerrors.StudyError
	if errors.As(err, &studyErr) {
		for _, key := range slices.Sorted(maps.Keys(studyErr.Context)) {
			attrs = append(attrs, slog.Any(key, studyErr.Context[key]))
		}
	}
	return attrs
}

// classify maps any failure onto a StudyError code.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var studyErr *studyerrors.StudyError
	if errors.As(err, &studyErr) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return studyerrors.ContextCanceled(err)
	case errors.Is(err, mastery.ErrEmptyConceptKey):
		return studyerrors.InvalidArgument("concept name produces no key", err)
	case errors.Is(err, store.ErrNotFound):
		return studyerrors.Wrap(err, studyerrors.ErrCodeNotFound, "not found")
	default:
		return studyerrors.StorageFailure("store operation failed", err)
	}
}
