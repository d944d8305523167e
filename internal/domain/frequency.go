package domain

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the recurrence cadence of an activity.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// epochWeek is the length of one weekly bucket.
const epochWeek = 7 * 24 * time.Hour

// ParseFrequency converts user input into a Frequency.
func ParseFrequency(raw string) (Frequency, error) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(raw))); f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, raw)
	}
}

// Valid reports whether f is one of the known cadences.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// SamePeriod reports whether a and b fall in the same bucket under f.
func SamePeriod(f Frequency, a, b time.Time) bool {
	switch f {
	case FrequencyDaily:
		return SameDay(a, b)
	case FrequencyWeekly:
		return SameEpochWeek(a, b)
	default:
		return SameMonth(a, b)
	}
}

// SameDay compares calendar days in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameEpochWeek compares fixed seven day buckets counted from the Unix epoch.
// Buckets ignore locale week starts and time zones: two dates a few days apart
// can land in different buckets even inside one calendar week.
func SameEpochWeek(a, b time.Time) bool {
	return EpochWeek(a) == EpochWeek(b)
}

// EpochWeek returns the index of the seven day bucket containing t.
func EpochWeek(t time.Time) int64 {
	return floorDiv(t.UnixMilli(), epochWeek.Milliseconds())
}

// SameMonth compares calendar months in a's location.
func SameMonth(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
