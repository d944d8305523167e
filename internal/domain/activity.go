package domain

import "time"

// CompletionRecord is the outcome recorded for one period of an activity.
type CompletionRecord struct {
	Date      time.Time `json:"date"`
	Completed bool      `json:"completed"`
	Note      string    `json:"note,omitempty"`
}

// Activity is the habit document owned by a single user.
type Activity struct {
	ID                string
	UserID            string
	Title             string
	Description       string
	Frequency         Frequency
	StartDate         time.Time
	EndDate           *time.Time
	CompletionHistory []CompletionRecord
	CurrentStreak     int
	BestStreak        int
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a copy that shares no mutable state with a.
func (a Activity) Clone() Activity {
	out := a
	if a.EndDate != nil {
		end := *a.EndDate
		out.EndDate = &end
	}
	if a.CompletionHistory != nil {
		out.CompletionHistory = append([]CompletionRecord(nil), a.CompletionHistory...)
	}
	return out
}
