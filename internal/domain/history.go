package domain

import (
	"slices"
)

// SortHistory returns a copy of records ordered most recent first.
func SortHistory(records []CompletionRecord) []CompletionRecord {
	out := append([]CompletionRecord(nil), records...)
	slices.SortStableFunc(out, func(a, b CompletionRecord) int {
		return b.Date.Compare(a.Date)
	})
	return out
}
