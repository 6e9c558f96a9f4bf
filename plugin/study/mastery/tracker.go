package mastery

import (
	"strings"
	"time"

	"github.com/hrygo/studypulse/plugin/study/mathx"
)

// Classify derives the status for a (mastery, confidence) pair.
// Thresholds are inclusive on their lower edge.
func Classify(mastery, confidence float64) Status {
	switch {
	case mastery >= 90 && confidence >= 0.7:
		return StatusMastered
	case mastery >= 65 && confidence >= 0.5:
		return StatusStrong
	case mastery >= 35 && confidence >= 0.3:
		return StatusDeveloping
	default:
		return StatusWeak
	}
}

// New creates the snapshot used on first upsert or first activity.
func New(owner, name, subject string, tags []string, now time.Time) (ConceptMastery, error) {
	name = strings.TrimSpace(name)
	key, err := CreateConceptKey(name)
	if err != nil {
		return ConceptMastery{}, err
	}
	return ConceptMastery{
		Owner:           owner,
		ConceptKey:      key,
		ConceptName:     name,
		Subject:         strings.TrimSpace(subject),
		Tags:            append([]string(nil), tags...),
		Status:          Classify(0, 0),
		Difficulty:      DefaultDifficulty,
		Importance:      DefaultImportance,
		RelatedConcepts: []Relation{},
		Prerequisites:   []Relation{},
		ReviewHistory:   []HistoryEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// SmoothingRate is the weight given to a new observation. Higher confidence trusts it more.
func SmoothingRate(confidence float64) float64 {
	return mathx.Clamp(0.25+confidence*0.4, 0.2, 0.75)
}

// RecordActivity folds one activity event into c and returns the updated snapshot.
// A zero event timestamp is replaced by now. c is not modified.
func RecordActivity(c ConceptMastery, event ActivityEvent, now time.Time) ConceptMastery {
	out := c.Clone()

	ts := event.Timestamp
	if ts.IsZero() {
		ts = now
	}
	source := event.Source
	if source == "" {
		source = SourceManual
	}
	score := event.Score.Normalized()

	alpha := SmoothingRate(c.ConfidenceScore)
	out.MasteryLevel = mathx.Round(mathx.Clamp(float64(c.MasteryLevel)*(1-alpha)+score*alpha, 0, 100))
	out.ConfidenceScore = mathx.Clamp(c.ConfidenceScore*0.7+(score/100)*0.3, 0, 1)

	if event.DifficultyShift != 0 {
		out.Difficulty = mathx.Clamp(c.Difficulty+event.DifficultyShift, 0, 1)
	}
	if event.ImportanceShift != 0 {
		out.Importance = mathx.Clamp(c.Importance+event.ImportanceShift, 0, 1)
	}

	out.Status = Classify(float64(out.MasteryLevel), out.ConfidenceScore)
	out.TotalReviews = c.TotalReviews + 1
	out.RecentScore = score
	out.LastReviewed = &ts
	next := ComputeNextReview(out, &score, ts)
	out.NextReview = &next
	out.UpdatedAt = ts

	out.ReviewHistory = appendHistory(out.ReviewHistory, HistoryEntry{
		Date:         ts,
		Source:       source,
		Score:        score,
		MasteryLevel: out.MasteryLevel,
	})
	return out
}

// appendHistory appends e and keeps only the newest MaxHistory entries.
func appendHistory(history []HistoryEntry, e HistoryEntry) []HistoryEntry {
	history = append(history, e)
	if len(history) > MaxHistory {
		history = append([]HistoryEntry(nil), history[len(history)-MaxHistory:]...)
	}
	return history
}

// ComputeNextReview returns when c should next be reviewed after an activity at ts.
// A nil score is treated as DefaultScore.
func ComputeNextReview(c ConceptMastery, score *float64, ts time.Time) time.Time {
	s := DefaultScore
	if score != nil {
		s = *score
	}

	masteryFactor := mathx.Clamp(float64(c.MasteryLevel)/100, 0.05, 1)
	confidenceFactor := mathx.Clamp(c.ConfidenceScore, 0.05, 1)
	difficultyFactor := mathx.Clamp(1.4-c.Difficulty, 0.6, 1.6)
	scoreFactor := mathx.Clamp(s/100, 0.05, 1.2)

	baseDays := 1 + masteryFactor*14
	intervalDays := baseDays * confidenceFactor * difficultyFactor * scoreFactor

	return mathx.AddDays(ts, max(1, mathx.Round(intervalDays)))
}

// MarkMastered forces c into the terminal mastered state, bypassing smoothing.
// Clearing NextReview removes the concept from due queries.
func MarkMastered(c ConceptMastery, now time.Time) ConceptMastery {
	out := c.Clone()
	out.MasteryLevel = 100
	out.ConfidenceScore = 0.9
	out.Status = StatusMastered
	out.NextReview = nil
	out.LastReviewed = &now
	out.UpdatedAt = now
	return out
}

// Reconcile re-derives the status of a snapshot read from storage.
// Status is owned by the engine, so whatever was persisted is replaced.
func Reconcile(c ConceptMastery) ConceptMastery {
	c.Status = Classify(float64(c.MasteryLevel), c.ConfidenceScore)
	return c
}

// IsDue reports whether c has a scheduled review at or before asOf.
func IsDue(c ConceptMastery, asOf time.Time) bool {
	return c.NextReview != nil && !c.NextReview.After(asOf)
}
