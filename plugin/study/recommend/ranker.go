package recommend

import (
	"sort"
	"time"

	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/plugin/study/mathx"
)

type scored struct {
	rec      Recommendation
	priority float64
	scores   Scores
}

// Rank orders concepts by priority, highest first, and keeps at most limit of them.
// Ties are broken by concept key. A limit <= 0 means DefaultLimit. A key that
// appears more than once is ranked once, using its first occurrence.
func Rank(concepts []mastery.ConceptMastery, limit int, now time.Time) []Recommendation {
	if limit <= 0 {
		limit = DefaultLimit
	}

	byKey := make(map[string]mastery.ConceptMastery, len(concepts))
	for _, c := range concepts {
		if _, ok := byKey[c.ConceptKey]; !ok {
			byKey[c.ConceptKey] = c
		}
	}

	items := make([]scored, 0, len(byKey))
	ranked := make(map[string]bool, len(byKey))
	for _, c := range concepts {
		if ranked[c.ConceptKey] {
			continue
		}
		ranked[c.ConceptKey] = true
		scores := Score(c, now)
		items = append(items, scored{
			rec: Recommendation{
				ConceptKey:  c.ConceptKey,
				ConceptName: c.ConceptName,
				Subject:     c.Subject,
				Blockers:    blockers(c, byKey),
			},
			priority: Priority(scores),
			scores:   scores,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].priority != items[j].priority {
			return items[i].priority > items[j].priority
		}
		return items[i].rec.ConceptKey < items[j].rec.ConceptKey
	})

	if len(items) > limit {
		items = items[:limit]
	}

	out := make([]Recommendation, 0, len(items))
	for _, it := range items {
		rec := it.rec
		rec.Priority = mathx.RoundTo(it.priority, 3)
		rec.Scores = Scores{
			Due:        mathx.RoundTo(it.scores.Due, 3),
			Mastery:    mathx.RoundTo(it.scores.Mastery, 3),
			Importance: mathx.RoundTo(it.scores.Importance, 3),
		}
		out = append(out, rec)
	}
	return out
}

// Score computes the unrounded component scores of c.
func Score(c mastery.ConceptMastery, now time.Time) Scores {
	due := UnscheduledDueScore
	if c.NextReview != nil {
		days := mathx.DaysUntil(*c.NextReview, now)
		due = mathx.Clamp(1-min(days/DueHorizonDays, 1), 0, 1)
	}
	return Scores{
		Due:        due,
		Mastery:    1 - mathx.Clamp(float64(c.MasteryLevel)/100, 0, 1),
		Importance: mathx.Clamp(c.Importance, 0, 1),
	}
}

// Priority blends the component scores with the fixed weights.
func Priority(s Scores) float64 {
	return s.Importance*ImportanceWeight + s.Due*DueWeight + s.Mastery*MasteryWeight
}

// blockers lists prerequisites present in the batch whose mastery is below BlockerMastery.
func blockers(c mastery.ConceptMastery, byKey map[string]mastery.ConceptMastery) []Blocker {
	out := make([]Blocker, 0)
	for _, pre := range c.Prerequisites {
		target, ok := byKey[pre.ConceptKey]
		if !ok || target.MasteryLevel >= BlockerMastery {
			continue
		}
		out = append(out, Blocker{
			ConceptKey:   target.ConceptKey,
			ConceptName:  target.ConceptName,
			MasteryLevel: target.MasteryLevel,
		})
	}
	return out
}
