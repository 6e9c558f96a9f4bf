// Package conceptsync derives concept mastery snapshots from an owner's revision items.
package conceptsync

import (
	"sort"
	"strings"
	"time"

	"github.com/hrygo/studypulse/plugin/study/mastery"
	"github.com/hrygo/studypulse/plugin/study/mathx"
	"github.com/hrygo/studypulse/plugin/study/review"
)

// Related edge constants.
const (
	MaxRelated       = 6
	RelatedStrength  = 0.8
	RelatedDecay     = 0.1
	RelatedFloor     = 0.25
	QualityToPercent = 20.0
)

// Derive builds one concept per non-archived revision item. Items whose titles
// slug to the same key collapse to the first one. The result is meant for a bulk
// upsert that only sets identity fields (name, subject, tags, importance,
// created time) when the concept does not exist yet.
func Derive(items []review.RevisionItem, now time.Time) []mastery.ConceptMastery {
	concepts := make([]mastery.ConceptMastery, 0, len(items))
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		if item.Status == review.StatusArchived {
			continue
		}
		c := fromRevision(item, now)
		if seen[c.ConceptKey] {
			continue
		}
		seen[c.ConceptKey] = true
		concepts = append(concepts, c)
	}

	for i := range concepts {
		concepts[i].RelatedConcepts = relatedFor(concepts[i], concepts)
	}
	return concepts
}

func fromRevision(item review.RevisionItem, now time.Time) mastery.ConceptMastery {
	name := strings.TrimSpace(item.Title)
	if name == "" {
		name = headingTitle(item.Content)
	}
	key, err := mastery.CreateConceptKey(name)
	if err != nil {
		// keyed by item so repeated syncs land on the same concept
		key = mastery.FallbackKeyPrefix + item.ID
	}
	if name == "" {
		name = key
	}

	level := mathx.ClampInt(item.MasteryLevel, 0, 100)
	confidence := Confidence(item.Repetitions)

	var recent float64
	if n := len(item.ReviewHistory); n > 0 {
		recent = float64(review.ClampQuality(item.ReviewHistory[n-1].Quality)) * QualityToPercent
	}

	var lastReviewed *time.Time
	if item.LastReviewed != nil {
		t := *item.LastReviewed
		lastReviewed = &t
	}
	next := item.NextReview

	return mastery.ConceptMastery{
		Owner:           item.Owner,
		ConceptKey:      key,
		ConceptName:     name,
		Subject:         strings.TrimSpace(item.Subject),
		Tags:            append([]string{}, item.Tags...),
		MasteryLevel:    level,
		ConfidenceScore: confidence,
		Status:          mastery.Classify(float64(level), confidence),
		Difficulty:      Difficulty(item.EaseFactor),
		Importance:      mastery.DefaultImportance,
		TotalReviews:    len(item.ReviewHistory),
		RecentScore:     recent,
		LastReviewed:    lastReviewed,
		NextReview:      &next,
		RelatedConcepts: []mastery.Relation{},
		Prerequisites:   []mastery.Relation{},
		ReviewHistory:   []mastery.HistoryEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Confidence maps successful repetitions to a confidence score.
func Confidence(repetitions int) float64 {
	return mathx.Clamp(0.2+0.15*float64(repetitions), 0.2, 0.95)
}

// Difficulty maps an SM-2 ease factor to a 0-1 difficulty; lower ease is harder.
func Difficulty(ease float64) float64 {
	if ease == 0 {
		ease = review.DefaultEaseFactor
	}
	return mathx.Clamp((2.8-ease)/1.5, 0, 1)
}

// RelatedStrengthAt returns the edge strength for the rank-th related concept, 0-based.
func RelatedStrengthAt(rank int) float64 {
	return max(RelatedFloor, mathx.RoundTo(RelatedStrength-RelatedDecay*float64(rank), 2))
}

type candidate struct {
	key    string
	shared int
	next   time.Time
}

// relatedFor links c to the same-subject concepts sharing the most tags.
// Concepts without a subject are never linked.
func relatedFor(c mastery.ConceptMastery, all []mastery.ConceptMastery) []mastery.Relation {
	if c.Subject == "" {
		return []mastery.Relation{}
	}
	tags := tagSet(c.Tags)

	candidates := make([]candidate, 0)
	for _, other := range all {
		if other.ConceptKey == c.ConceptKey || !strings.EqualFold(other.Subject, c.Subject) {
			continue
		}
		cand := candidate{key: other.ConceptKey}
		for t := range tagSet(other.Tags) {
			if tags[t] {
				cand.shared++
			}
		}
		if other.NextReview != nil {
			cand.next = *other.NextReview
		}
		candidates = append(candidates, cand)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.shared != b.shared {
			return a.shared > b.shared
		}
		if !a.next.Equal(b.next) {
			return a.next.Before(b.next)
		}
		return a.key < b.key
	})
	if len(candidates) > MaxRelated {
		candidates = candidates[:MaxRelated]
	}

	relations := make([]mastery.Relation, 0, len(candidates))
	for rank, cand := range candidates {
		relations = append(relations, mastery.Relation{ConceptKey: cand.key, Strength: RelatedStrengthAt(rank)})
	}
	return relations
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = true
		}
	}
	return set
}
