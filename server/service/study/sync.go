package study

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hrygo/studypulse/plugin/study/conceptsync"
	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/server/internal/observability"
	"github.com/hrygo/studypulse/store"
)

// DefaultSyncConcurrency bounds SyncAll when the profile leaves it unset.
const DefaultSyncConcurrency = 4

func (s *service) SyncFromRevisions(ctx context.Context, owner string) (int, error) {
	var count int
	err := s.run(ctx, OpSyncFromRevisions, owner, func(rc *observability.RequestContext) error {
		unlock := s.locks.Lock(lockKey(owner, "sync"))
		defer unlock()

		list, err := s.store.ListRevisionItems(ctx, &store.FindRevisionItem{Owner: owner})
		if err != nil {
			return errors.Wrap(err, "failed to list revision items")
		}
		derived := conceptsync.Derive(derefItems(list), s.now())
		if len(derived) == 0 {
			rc.Debug("nothing to sync")
			return nil
		}

		upserts := make([]*mastery.ConceptMastery, len(derived))
		for i := range derived {
			upserts[i] = &derived[i]
		}
		if count, err = s.store.BulkUpsertConceptMasteries(ctx, upserts); err != nil {
			return errors.Wrap(err, "failed to upsert derived concepts")
		}
		rc.Info("concepts synced from revisions",
			slog.Int("revision_items", len(list)),
			slog.Int(observability.LogFieldCount, count),
		)
		return nil
	})
	return count, err
}

// SyncAll keeps going when one owner fails; the failure is recorded in the report.
// Only cancellation of ctx aborts the run.
func (s *service) SyncAll(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{Failed: map[string]error{}}
	rc := observability.NewRequestContextWithID(s.logger, observability.RequestIDFromContext(ctx), OpSyncAll, "")
	// per-owner syncs log under the same request ID
	ctx = observability.WithRequestContext(ctx, rc)

	owners, err := s.store.ListOwners(ctx)
	if err != nil {
		err = classify(errors.Wrap(err, "failed to list owners"))
		s.metrics.Observe(OpSyncAll, rc.Duration(), true)
		return nil, err
	}
	report.Owners = len(owners)

	limit := s.profile.SyncConcurrency
	if limit <= 0 {
		limit = DefaultSyncConcurrency
	}

	// SyncRate paces owner starts; zero leaves them unpaced.
	var limiter *rate.Limiter
	if s.profile.SyncRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.profile.SyncRate), 1)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, owner := range owners {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			} else if err := gctx.Err(); err != nil {
				return err
			}
			count, err := s.SyncFromRevisions(gctx, owner)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rc.WithFields(slog.String("owner", owner)).Warn("owner sync failed", slog.String("error", err.Error()))
				report.Failed[owner] = err
				return nil
			}
			report.Concepts += count
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		err = classify(err)
		s.metrics.Observe(OpSyncAll, rc.Duration(), true)
		rc.Warn("sync aborted", slog.String("error", err.Error()))
		return report, err
	}

	s.metrics.Observe(OpSyncAll, rc.Duration(), len(report.Failed) > 0)
	rc.Info("sync completed",
		slog.Int("owners", report.Owners),
		slog.Int(observability.LogFieldCount, report.Concepts),
		slog.Int("failed", len(report.Failed)),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()),
	)
	return report, nil
}
