package store

import (
	"time"

	"github.com/hrygo/studypulse/plugin/study/review"
)

// FindRevisionItem specifies the conditions for listing revision items.
// Owner is required.
type FindRevisionItem struct {
	Owner  string
	ID     *string
	Status *review.Status
	// DueBefore keeps items whose next review is at or before the given time.
	DueBefore *time.Time
	Limit     int
}
