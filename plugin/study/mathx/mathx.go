// Package mathx holds the small numeric helpers shared by the study engine.
package mathx

import (
	"math"
	"time"
)

// Day is the scheduling unit used by every engine component.
const Day = 24 * time.Hour

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt bounds v into [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round rounds half away from zero and returns an int.
func Round(v float64) int {
	return int(math.Round(v))
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// MeanRounded returns the rounded arithmetic mean, or 0 for an empty slice.
func MeanRounded(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return Round(float64(sum) / float64(len(values)))
}

// DaysUntil returns the fractional number of days from now to t.
// Negative values mean t is in the past.
func DaysUntil(t, now time.Time) float64 {
	return float64(t.Sub(now)) / float64(Day)
}

// AddDays shifts t by a whole number of days.
func AddDays(t time.Time, days int) time.Time {
	return t.Add(time.Duration(days) * Day)
}

// EndOfDay returns the last instant of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
