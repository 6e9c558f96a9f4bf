package review

import (
	"strings"
	"time"

	"github.com/hrygo/studypulse/plugin/study/mathx"
)

// ScheduleInitial returns the schedule every new revision item starts with.
func ScheduleInitial(now time.Time) Schedule {
	return Schedule{
		EaseFactor:   DefaultEaseFactor,
		IntervalDays: 1,
		Repetitions:  0,
		NextReview:   mathx.AddDays(now, 1),
		MasteryLevel: 0,
		Status:       StatusActive,
	}
}

// NewRevisionItem creates an item with the initial schedule.
func NewRevisionItem(owner, title, content, subject string, tags []string, now time.Time) RevisionItem {
	initial := ScheduleInitial(now)
	return RevisionItem{
		Owner:        owner,
		Title:        strings.TrimSpace(title),
		Content:      content,
		Subject:      strings.TrimSpace(subject),
		Tags:         append([]string(nil), tags...),
		EaseFactor:   initial.EaseFactor,
		IntervalDays: initial.IntervalDays,
		Repetitions:  initial.Repetitions,
		NextReview:   initial.NextReview,
		Status:       initial.Status,
		MasteryLevel: initial.MasteryLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ClampQuality bounds a rating into [0, 5]. Out-of-range ratings are corrected, never rejected.
func ClampQuality(q Quality) Quality {
	return Quality(mathx.ClampInt(int(q), int(QualityBlackout), int(QualityPerfect)))
}

// ApplyReview computes the schedule that follows a review of item with the given quality.
// The item itself is not modified.
func ApplyReview(item RevisionItem, quality Quality, now time.Time) Schedule {
	quality = ClampQuality(quality)
	q := float64(quality)

	// EF' = EF + (0.1 - (5 - q) * (0.08 + (5 - q) * 0.02))
	ease := item.EaseFactor
	if ease == 0 {
		ease = DefaultEaseFactor
	}
	ease += 0.1 - (5-q)*(0.08+(5-q)*0.02)
	if ease < MinEaseFactor {
		ease = MinEaseFactor
	}

	repetitions := item.Repetitions + 1
	if quality < PassThreshold {
		repetitions = 0
	}

	var interval int
	switch repetitions {
	case 0:
		interval = 1
	case 1:
		interval = 6
	default:
		interval = mathx.Round(float64(item.IntervalDays) * ease)
	}
	interval = mathx.ClampInt(interval, 1, MaxIntervalDays)

	mastery := masteryForRepetitions(repetitions, ease)

	status := item.Status
	if status == "" {
		status = StatusActive
	}
	switch {
	case status == StatusArchived:
		// archived items keep their status
	case mastery >= 90 && repetitions >= 5:
		status = StatusMastered
	case status == StatusMastered && quality < PassThreshold:
		status = StatusActive
	}

	return Schedule{
		EaseFactor:   ease,
		IntervalDays: interval,
		Repetitions:  repetitions,
		NextReview:   mathx.AddDays(now, interval),
		MasteryLevel: mastery,
		Status:       status,
		LastReviewed: now,
	}
}

// masteryForRepetitions is the step function mapping (repetitions, ease) to a 0-100 mastery level.
func masteryForRepetitions(repetitions int, ease float64) int {
	var level int
	switch {
	case repetitions >= 5 && ease >= 2.0:
		level = 100
	case repetitions >= 3:
		level = 60 + (repetitions-3)*15
	case repetitions >= 1:
		level = 30 + (repetitions-1)*15
	default:
		level = min(30, repetitions*15)
	}
	return mathx.ClampInt(level, 0, 100)
}

// Entry builds the history entry for a review that produced s.
func (s Schedule) Entry(quality Quality) HistoryEntry {
	return HistoryEntry{
		Date:       s.LastReviewed,
		Quality:    ClampQuality(quality),
		Interval:   s.IntervalDays,
		Difficulty: s.EaseFactor,
	}
}

// ApplyTo returns a copy of item with s merged in and the review appended to its history.
func (s Schedule) ApplyTo(item RevisionItem, quality Quality) RevisionItem {
	out := item
	out.Tags = append([]string(nil), item.Tags...)
	out.EaseFactor = s.EaseFactor
	out.IntervalDays = s.IntervalDays
	out.Repetitions = s.Repetitions
	out.NextReview = s.NextReview
	out.MasteryLevel = s.MasteryLevel
	out.Status = s.Status
	reviewed := s.LastReviewed
	out.LastReviewed = &reviewed
	out.UpdatedAt = s.LastReviewed

	history := make([]HistoryEntry, 0, len(item.ReviewHistory)+1)
	history = append(history, item.ReviewHistory...)
	out.ReviewHistory = append(history, s.Entry(quality))
	return out
}

// IsDue reports whether item should be reviewed at asOf.
func IsDue(item RevisionItem, asOf time.Time) bool {
	return item.Status == StatusActive && !item.NextReview.After(asOf)
}

// DueItems returns the items due at asOf, preserving input order.
func DueItems(items []RevisionItem, asOf time.Time) []RevisionItem {
	due := make([]RevisionItem, 0)
	for _, item := range items {
		if IsDue(item, asOf) {
			due = append(due, item)
		}
	}
	return due
}

// EstimateStudyMinutes estimates the time needed to review items.
func EstimateStudyMinutes(items []RevisionItem, perItem int) int {
	if perItem <= 0 {
		perItem = DefaultMinutesPerItem
	}
	return len(items) * perItem
}

// AggregateStatistics summarises items as of now.
func AggregateStatistics(items []RevisionItem, now time.Time) Statistics {
	stats := Statistics{Total: len(items)}
	endOfDay := mathx.EndOfDay(now)
	weekAhead := mathx.AddDays(now, 7)

	levels := make([]int, 0, len(items))
	for _, item := range items {
		levels = append(levels, item.MasteryLevel)

		switch item.Status {
		case StatusActive:
			stats.Active++
		case StatusMastered:
			stats.Mastered++
		}

		if item.Status != StatusActive {
			continue
		}
		if !item.NextReview.After(endOfDay) {
			stats.DueToday++
		}
		if !item.NextReview.After(weekAhead) {
			stats.DueThisWeek++
		}
	}
	stats.AverageMastery = mathx.MeanRounded(levels)
	return stats
}
