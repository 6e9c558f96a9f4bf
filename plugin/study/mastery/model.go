// Package mastery tracks per-concept mastery and confidence with exponential smoothing.
package mastery

import (
	"time"

	"github.com/hrygo/studypulse/plugin/study/mathx"
)

// Status is always derived from mastery and confidence via Classify.
type Status string

const (
	StatusWeak       Status = "weak"
	StatusDeveloping Status = "developing"
	StatusStrong     Status = "strong"
	StatusMastered   Status = "mastered"
)

// Statuses lists every status from weakest to strongest.
var Statuses = []Status{StatusWeak, StatusDeveloping, StatusStrong, StatusMastered}

// Source identifies where an activity event came from.
type Source string

const (
	SourceManual Source = "manual"
	SourceQuiz   Source = "quiz"
	SourceReview Source = "review"
	SourceSync   Source = "sync"
)

// MaxHistory is the number of history entries kept per concept.
const MaxHistory = 50

// Defaults for a freshly created concept.
const (
	DefaultDifficulty = 0.5
	DefaultImportance = 0.5
	// DefaultScore stands in for a missing score when computing the next review.
	DefaultScore = 70.0
)

// Relation is a weighted edge to another concept of the same owner.
type Relation struct {
	ConceptKey string  `json:"concept_key"`
	Strength   float64 `json:"strength"` // 0-1
}

// HistoryEntry records one applied activity.
type HistoryEntry struct {
	Date         time.Time `json:"date"`
	Source       Source    `json:"source"`
	Score        float64   `json:"score"` // 0-100
	MasteryLevel int       `json:"mastery_level"`
}

// ConceptMastery is the persisted mastery snapshot for one (owner, concept).
type ConceptMastery struct {
	Owner           string         `json:"owner"`
	ConceptKey      string         `json:"concept_key"`
	ConceptName     string         `json:"concept_name"`
	Subject         string         `json:"subject"`
	Tags            []string       `json:"tags"`
	MasteryLevel    int            `json:"mastery_level"`    // 0-100
	ConfidenceScore float64        `json:"confidence_score"` // 0-1
	Status          Status         `json:"status"`
	Difficulty      float64        `json:"difficulty"` // 0-1
	Importance      float64        `json:"importance"` // 0-1
	TotalReviews    int            `json:"total_reviews"`
	RecentScore     float64        `json:"recent_score"`
	LastReviewed    *time.Time     `json:"last_reviewed,omitempty"`
	NextReview      *time.Time     `json:"next_review,omitempty"`
	RelatedConcepts []Relation     `json:"related_concepts"`
	Prerequisites   []Relation     `json:"prerequisites"`
	ReviewHistory   []HistoryEntry `json:"review_history"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so callers can derive new snapshots without sharing slices.
func (c ConceptMastery) Clone() ConceptMastery {
	out := c
	out.Tags = append([]string(nil), c.Tags...)
	out.RelatedConcepts = append([]Relation(nil), c.RelatedConcepts...)
	out.Prerequisites = append([]Relation(nil), c.Prerequisites...)
	out.ReviewHistory = append([]HistoryEntry(nil), c.ReviewHistory...)
	if c.LastReviewed != nil {
		t := *c.LastReviewed
		out.LastReviewed = &t
	}
	if c.NextReview != nil {
		t := *c.NextReview
		out.NextReview = &t
	}
	return out
}

type scoreUnit int

const (
	unitPercent scoreUnit = iota
	unitFraction
)

// Score is an observed performance value tagged with its unit.
type Score struct {
	value float64
	unit  scoreUnit
}

// Percent builds a score on the 0-100 scale.
func Percent(v float64) Score { return Score{value: v, unit: unitPercent} }

// Fraction builds a score on the 0-1 scale.
func Fraction(v float64) Score { return Score{value: v, unit: unitFraction} }

// Normalized returns the score on the 0-100 scale, clamped.
func (s Score) Normalized() float64 {
	v := s.value
	if s.unit == unitFraction {
		v *= 100
	}
	return mathx.Clamp(v, 0, 100)
}

// ActivityEvent is one observation of the learner's performance on a concept.
type ActivityEvent struct {
	Score           Score
	DifficultyShift float64
	ImportanceShift float64
	Source          Source    // empty means manual
	Timestamp       time.Time // zero means the caller's current time
}
