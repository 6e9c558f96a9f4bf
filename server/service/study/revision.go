package study

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/plugin/study/review"
	studyerrors "github.com/hrygo/studypulse/server/internal/errors"
	"github.com/hrygo/studypulse/server/internal/observability"
	"github.com/hrygo/studypulse/store"
)

func (s *service) CreateRevisionItem(ctx context.Context, owner string, create *CreateRevisionItemRequest) (*review.RevisionItem, error) {
	var created *review.RevisionItem
	err := s.run(ctx, OpCreateRevisionItem, owner, func(rc *observability.RequestContext) error {
		if create == nil || (strings.TrimSpace(create.Title) == "" && strings.TrimSpace(create.Content) == "") {
			return studyerrors.InvalidArgument("revision item needs a title or content", nil)
		}
		item := review.NewRevisionItem(owner, create.Title, create.Content, create.Subject, create.Tags, s.now())
		var err error
		created, err = s.store.CreateRevisionItem(ctx, &item)
		if err != nil {
			return err
		}
		rc.Info("revision item created", slog.String(observability.LogFieldItemID, created.ID))
		return nil
	})
	return created, err
}

func (s *service) ReviewRevisionItem(ctx context.Context, owner, id string, quality review.Quality) (*review.RevisionItem, error) {
	var updated *review.RevisionItem
	err := s.run(ctx, OpReviewRevisionItem, owner, func(rc *observability.RequestContext) error {
		unlock := s.locks.Lock(lockKey(owner, "revision", id))
		defer unlock()

		return s.store.RunInTx(ctx, func(tx *store.Store) error {
			item, err := getRevisionItem(ctx, tx, owner, id)
			if err != nil {
				return err
			}
			schedule := review.ApplyReview(*item, quality, s.now())
			next := schedule.ApplyTo(*item, quality)
			if err := tx.UpdateRevisionItem(ctx, &next); err != nil {
				return err
			}
			updated = &next
			rc.Info("revision item reviewed",
				slog.String(observability.LogFieldItemID, id),
				slog.Int("quality", int(review.ClampQuality(quality))),
				slog.Int("interval_days", next.IntervalDays),
				slog.String("status", string(next.Status)),
			)
			return nil
		})
	})
	return updated, err
}

func (s *service) ArchiveRevisionItem(ctx context.Context, owner, id string) (*review.RevisionItem, error) {
	var updated *review.RevisionItem
	err := s.run(ctx, OpArchiveRevisionItem, owner, func(rc *observability.RequestContext) error {
		unlock := s.locks.Lock(lockKey(owner, "revision", id))
		defer unlock()

		return s.store.RunInTx(ctx, func(tx *store.Store) error {
			item, err := getRevisionItem(ctx, tx, owner, id)
			if err != nil {
				return err
			}
			item.Status = review.StatusArchived
			item.UpdatedAt = s.now()
			if err := tx.UpdateRevisionItem(ctx, item); err != nil {
				return err
			}
			updated = item
			rc.Info("revision item archived", slog.String(observability.LogFieldItemID, id))
			return nil
		})
	})
	return updated, err
}

func (s *service) DueRevisionItems(ctx context.Context, owner string) (*DueRevisionItems, error) {
	var due *DueRevisionItems
	err := s.run(ctx, OpDueRevisionItems, owner, func(_ *observability.RequestContext) error {
		now := s.now()
		active := review.StatusActive
		list, err := s.store.ListRevisionItems(ctx, &store.FindRevisionItem{Owner: owner, Status: &active, DueBefore: &now})
		if err != nil {
			return err
		}
		items := review.DueItems(derefItems(list), now)
		due = &DueRevisionItems{
			Items:            items,
			EstimatedMinutes: review.EstimateStudyMinutes(items, review.DefaultMinutesPerItem),
		}
		return nil
	})
	return due, err
}

func (s *service) RevisionStatistics(ctx context.Context, owner string) (*review.Statistics, error) {
	var stats *review.Statistics
	err := s.run(ctx, OpRevisionStatistics, owner, func(_ *observability.RequestContext) error {
		list, err := s.store.ListRevisionItems(ctx, &store.FindRevisionItem{Owner: owner})
		if err != nil {
			return err
		}
		aggregated := review.AggregateStatistics(derefItems(list), s.now())
		stats = &aggregated
		return nil
	})
	return stats, err
}

func getRevisionItem(ctx context.Context, st *store.Store, owner, id string) (*review.RevisionItem, error) {
	if strings.TrimSpace(id) == "" {
		return nil, studyerrors.InvalidArgument("revision item id is required", nil)
	}
	item, err := st.GetRevisionItem(ctx, owner, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get revision item %s", id)
	}
	if item == nil {
		return nil, studyerrors.NotFound("revision item "+id).WithContext(observability.LogFieldItemID, id)
	}
	return item, nil
}

func derefItems(list []*review.RevisionItem) []review.RevisionItem {
	items := make([]review.RevisionItem, 0, len(list))
	for _, item := range list {
		items = append(items, *item)
	}
	return items
}
