package study

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/studypulse/plugin/study/graph"
	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/plugin/study/mathx"
	"github.com/hrygo/studypulse/plugin/study/recommend"
	studyerrors "github.com/hrygo/studypulse/server/internal/errors"
	"github.com/hrygo/studypulse/server/internal/observability"
	"github.com/hrygo/studypulse/store"
)

func (s *service) UpsertConcept(ctx context.Context, owner string, upsert *UpsertConceptRequest) (*mastery.ConceptMastery, error) {
	var saved *mastery.ConceptMastery
	err := s.run(ctx, OpUpsertConcept, owner, func(rc *observability.RequestContext) error {
		if upsert == nil {
			return studyerrors.InvalidArgument("concept is required", nil)
		}
		name := strings.TrimSpace(upsert.ConceptName)
		key, generated := mastery.CreateConceptKeyOrFallback(name)
		if generated {
			name = key
		}

		unlock := s.locks.Lock(lockKey(owner, "concept", key))
		defer unlock()

		return s.store.RunInTx(ctx, func(tx *store.Store) error {
			now := s.now()
			current, err := tx.GetConceptMastery(ctx, owner, key)
			if err != nil {
				return errors.Wrapf(err, "failed to get concept %s", key)
			}

			var next mastery.ConceptMastery
			if current == nil {
				subject := ""
				if upsert.Subject != nil {
					subject = *upsert.Subject
				}
				if next, err = mastery.New(owner, name, subject, upsert.Tags, now); err != nil {
					return err
				}
				next.ConceptKey = key
			} else {
				next = current.Clone()
				next.ConceptName = name
				if upsert.Subject != nil {
					next.Subject = strings.TrimSpace(*upsert.Subject)
				}
				if upsert.Tags != nil {
					next.Tags = append([]string{}, upsert.Tags...)
				}
				next.UpdatedAt = now
			}
			if upsert.Importance != nil {
				next.Importance = mathx.Clamp(*upsert.Importance, 0, 1)
			}
			if upsert.Difficulty != nil {
				next.Difficulty = mathx.Clamp(*upsert.Difficulty, 0, 1)
			}
			if upsert.Prerequisites != nil {
				next.Prerequisites = normalizeRelations(key, upsert.Prerequisites)
			}

			if saved, err = tx.UpsertConceptMastery(ctx, &next); err != nil {
				return err
			}
			rc.Info("concept saved",
				slog.String(observability.LogFieldConceptKey, key),
				slog.Bool("created", current == nil),
				slog.Bool("generated_key", generated),
			)
			return nil
		})
	})
	return saved, err
}

func (s *service) RecordActivity(ctx context.Context, owner string, activity *RecordActivityRequest) (*mastery.ConceptMastery, error) {
	var saved *mastery.ConceptMastery
	err := s.run(ctx, OpRecordActivity, owner, func(rc *observability.RequestContext) error {
		if activity == nil {
			return studyerrors.InvalidArgument("activity is required", nil)
		}
		key := strings.TrimSpace(activity.ConceptKey)
		if key == "" {
			key, _ = mastery.CreateConceptKeyOrFallback(activity.ConceptName)
		}

		unlock := s.locks.Lock(lockKey(owner, "concept", key))
		defer unlock()

		return s.store.RunInTx(ctx, func(tx *store.Store) error {
			now := s.now()
			current, err := tx.GetConceptMastery(ctx, owner, key)
			if err != nil {
				return errors.Wrapf(err, "failed to get concept %s", key)
			}
			if current == nil {
				name := activity.ConceptName
				if _, err := mastery.CreateConceptKey(name); err != nil {
					name = key
				}
				created, err := mastery.New(owner, name, activity.Subject, activity.Tags, now)
				if err != nil {
					return err
				}
				created.ConceptKey = key
				current = &created
			}

			next := mastery.RecordActivity(*current, activity.Event, now)
			if saved, err = tx.UpsertConceptMastery(ctx, &next); err != nil {
				return err
			}
			rc.Info("activity recorded",
				slog.String(observability.LogFieldConceptKey, key),
				slog.Int("mastery_level", next.MasteryLevel),
				slog.String("status", string(next.Status)),
			)
			return nil
		})
	})
	return saved, err
}

func (s *service) MarkMastered(ctx context.Context, owner, conceptKey string) (*mastery.ConceptMastery, error) {
	var saved *mastery.ConceptMastery
	err := s.run(ctx, OpMarkMastered, owner, func(rc *observability.RequestContext) error {
		key := strings.TrimSpace(conceptKey)
		if key == "" {
			return studyerrors.InvalidArgument("concept key is required", nil)
		}

		unlock := s.locks.Lock(lockKey(owner, "concept", key))
		defer unlock()

		return s.store.RunInTx(ctx, func(tx *store.Store) error {
			current, err := tx.GetConceptMastery(ctx, owner, key)
			if err != nil {
				return errors.Wrapf(err, "failed to get concept %s", key)
			}
			if current == nil {
				return studyerrors.NotFound("concept " + key).WithContext(observability.LogFieldConceptKey, key)
			}
			next := mastery.MarkMastered(*current, s.now())
			if saved, err = tx.UpsertConceptMastery(ctx, &next); err != nil {
				return err
			}
			rc.Info("concept marked mastered", slog.String(observability.LogFieldConceptKey, key))
			return nil
		})
	})
	return saved, err
}

func (s *service) ListConcepts(ctx context.Context, owner string) ([]*mastery.ConceptMastery, error) {
	var list []*mastery.ConceptMastery
	err := s.run(ctx, OpListConcepts, owner, func(_ *observability.RequestContext) error {
		var err error
		list, err = s.store.ListConceptMasteries(ctx, &store.FindConceptMastery{Owner: owner})
		return err
	})
	return list, err
}

func (s *service) DueConcepts(ctx context.Context, owner string) ([]*mastery.ConceptMastery, error) {
	var due []*mastery.ConceptMastery
	err := s.run(ctx, OpDueConcepts, owner, func(_ *observability.RequestContext) error {
		now := s.now()
		list, err := s.store.ListConceptMasteries(ctx, &store.FindConceptMastery{Owner: owner, DueBefore: &now})
		if err != nil {
			return err
		}
		due = make([]*mastery.ConceptMastery, 0, len(list))
		for _, c := range list {
			if mastery.IsDue(*c, now) {
				due = append(due, c)
			}
		}
		return nil
	})
	return due, err
}

// ConceptGraph and Recommendations read the owner's concepts once and project
// that single list, so every node, link and score comes from the same snapshot.

func (s *service) ConceptGraph(ctx context.Context, owner string, cfg graph.Config) (*graph.ConceptGraph, error) {
	var result *graph.ConceptGraph
	err := s.run(ctx, OpConceptGraph, owner, func(rc *observability.RequestContext) error {
		concepts, err := s.conceptValues(ctx, owner)
		if err != nil {
			return err
		}
		if cfg.Now.IsZero() {
			cfg.Now = s.now()
		}
		g := graph.BuildGraph(concepts, cfg)
		result = &g
		rc.Debug("graph built", slog.Int("nodes", len(g.Nodes)), slog.Int("links", len(g.Links)))
		return nil
	})
	return result, err
}

func (s *service) Recommendations(ctx context.Context, owner string, limit int) ([]recommend.Recommendation, error) {
	var recs []recommend.Recommendation
	err := s.run(ctx, OpRecommendations, owner, func(_ *observability.RequestContext) error {
		concepts, err := s.conceptValues(ctx, owner)
		if err != nil {
			return err
		}
		if limit <= 0 {
			limit = s.profile.RecommendationLimit
		}
		recs = recommend.Rank(concepts, limit, s.now())
		return nil
	})
	return recs, err
}

func (s *service) conceptValues(ctx context.Context, owner string) ([]mastery.ConceptMastery, error) {
	list, err := s.store.ListConceptMasteries(ctx, &store.FindConceptMastery{Owner: owner})
	if err != nil {
		return nil, err
	}
	concepts := make([]mastery.ConceptMastery, 0, len(list))
	for _, c := range list {
		concepts = append(concepts, *c)
	}
	return concepts, nil
}

// normalizeRelations drops self references, empty and duplicate keys, and clamps strengths.
func normalizeRelations(self string, relations []mastery.Relation) []mastery.Relation {
	out := make([]mastery.Relation, 0, len(relations))
	seen := make(map[string]bool, len(relations))
	for _, rel := range relations {
		key := strings.TrimSpace(rel.ConceptKey)
		if key == "" || key == self || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, mastery.Relation{ConceptKey: key, Strength: mathx.Clamp(rel.Strength, 0, 1)})
	}
	return out
}
