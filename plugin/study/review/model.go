// Package review implements the SM-2 derived scheduler for revision items.
package review

import (
	"time"
)

// Status is the lifecycle state of a revision item.
type Status string

const (
	StatusActive   Status = "active"
	StatusMastered Status = "mastered"
	StatusArchived Status = "archived"
)

// Quality is the learner's 0-5 recall rating for one review.
type Quality int

const (
	// QualityBlackout - complete blackout.
	QualityBlackout Quality = 0
	// QualityIncorrect - wrong, but recognised the answer.
	QualityIncorrect Quality = 1
	// QualityIncorrectFamiliar - wrong, but the answer felt familiar.
	QualityIncorrectFamiliar Quality = 2
	// QualityCorrectDifficult - correct with serious difficulty.
	QualityCorrectDifficult Quality = 3
	// QualityCorrectHesitation - correct after some hesitation.
	QualityCorrectHesitation Quality = 4
	// QualityPerfect - perfect recall.
	QualityPerfect Quality = 5
)

// PassThreshold is the lowest quality that counts as a successful recall.
const PassThreshold = QualityCorrectDifficult

// DefaultEaseFactor is the initial ease factor for new items.
const DefaultEaseFactor = 2.5

// MinEaseFactor is the minimum ease factor to prevent intervals from getting too short.
const MinEaseFactor = 1.3

// MaxIntervalDays keeps NextReview within time.Duration range.
const MaxIntervalDays = 36500

// DefaultMinutesPerItem is the study time estimate for a single review.
const DefaultMinutesPerItem = 5

// HistoryEntry records one applied review.
type HistoryEntry struct {
	Date       time.Time `json:"date"`
	Quality    Quality   `json:"quality"`
	Interval   int       `json:"interval"`
	Difficulty float64   `json:"difficulty"` // ease factor after the review
}

// RevisionItem is a single piece of study material scheduled with SM-2.
type RevisionItem struct {
	ID            string         `json:"id"`
	Owner         string         `json:"owner"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Subject       string         `json:"subject"`
	Tags          []string       `json:"tags"`
	EaseFactor    float64        `json:"ease_factor"`
	IntervalDays  int            `json:"interval_days"`
	Repetitions   int            `json:"repetitions"`
	LastReviewed  *time.Time     `json:"last_reviewed,omitempty"`
	NextReview    time.Time      `json:"next_review"`
	Status        Status         `json:"status"`
	MasteryLevel  int            `json:"mastery_level"` // 0-100
	ReviewHistory []HistoryEntry `json:"review_history"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Schedule is the set of fields ApplyReview derives for an item.
type Schedule struct {
	EaseFactor   float64   `json:"ease_factor"`
	IntervalDays int       `json:"interval_days"`
	Repetitions  int       `json:"repetitions"`
	NextReview   time.Time `json:"next_review"`
	MasteryLevel int       `json:"mastery_level"`
	Status       Status    `json:"status"`
	LastReviewed time.Time `json:"last_reviewed"`
}

// Statistics summarises a set of revision items.
type Statistics struct {
	Total          int `json:"total"`
	Active         int `json:"active"`
	Mastered       int `json:"mastered"`
	DueToday       int `json:"due_today"`
	DueThisWeek    int `json:"due_this_week"`
	AverageMastery int `json:"average_mastery"`
}
