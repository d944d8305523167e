package domain

import "time"

// DateLayout is the calendar date format used for month overview keys.
const DateLayout = "2006-01-02"

// DayEntry names one activity outcome on a calendar day.
type DayEntry struct {
	Title string `json:"title"`
	Note  string `json:"note,omitempty"`
}

// DaySummary aggregates every record that landed on a calendar day.
type DaySummary struct {
	Total          int        `json:"total"`
	Completed      int        `json:"completed"`
	CompletedItems []DayEntry `json:"completed_items"`
	MissedItems    []DayEntry `json:"missed_items"`
}

// AggregateMonth groups the records of activities by calendar day for one month.
// Days without records are omitted.
func AggregateMonth(activities []Activity, year int, month time.Month, loc *time.Location) map[string]*DaySummary {
	days := make(map[string]*DaySummary)
	for _, activity := range activities {
		for _, record := range activity.CompletionHistory {
			local := record.Date.In(loc)
			if local.Year() != year || local.Month() != month {
				continue
			}
			key := local.Format(DateLayout)
			day, ok := days[key]
			if !ok {
				day = &DaySummary{CompletedItems: []DayEntry{}, MissedItems: []DayEntry{}}
				days[key] = day
			}
			day.Total++
			entry := DayEntry{Title: activity.Title, Note: record.Note}
			if record.Completed {
				day.Completed++
				day.CompletedItems = append(day.CompletedItems, entry)
			} else {
				day.MissedItems = append(day.MissedItems, entry)
			}
		}
	}
	return days
}
