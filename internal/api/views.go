package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JarvisScienz/progress-tracker/internal/domain"
)

// CreateActivityRequest models the POST payload.
type CreateActivityRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Frequency   string `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// UpdateActivityRequest models the PUT payload. Absent fields are unchanged;
// an empty end_date clears it.
type UpdateActivityRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Frequency   *string `json:"frequency" validate:"omitempty,oneof=daily weekly monthly"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

// MarkPeriodRequest models the completion payload.
type MarkPeriodRequest struct {
	Date        string `json:"date"`
	Completed   *bool  `json:"completed" validate:"required"`
	Note        string `json:"note" validate:"max=1000"`
	Description string `json:"description" validate:"max=1000"`
}

// note prefers the explicit note and falls back to the legacy description field.
func (r MarkPeriodRequest) note() string {
	if r.Note != "" {
		return r.Note
	}
	return r.Description
}

// UpdateSettingsRequest models the settings PUT payload.
type UpdateSettingsRequest struct {
	ThresholdPercentage *int    `json:"threshold_percentage" validate:"omitempty,min=0,max=100"`
	Username            *string `json:"username" validate:"omitempty,max=100"`
	DarkMode            *bool   `json:"dark_mode"`
	Email               *string `json:"email" validate:"omitempty,email"`
	RemindersEnabled    *bool   `json:"reminders_enabled"`
}

// CompletionRecordView is the API view of one period's outcome.
type CompletionRecordView struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Note      string `json:"note,omitempty"`
}

// ActivityView is the API representation of an activity.
type ActivityView struct {
	ActivityID        string                 `json:"activity_id"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Frequency         string                 `json:"frequency"`
	StartDate         string                 `json:"start_date"`
	EndDate           *string                `json:"end_date,omitempty"`
	CompletionHistory []CompletionRecordView `json:"completion_history"`
	CurrentStreak     int                    `json:"current_streak"`
	BestStreak        int                    `json:"best_streak"`
	IsActive          bool                   `json:"is_active"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// ListActivitiesResponse represents a paginated list.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// MarkPeriodResponse returns the updated activity and what the mark changed.
type MarkPeriodResponse struct {
	Activity  ActivityView `json:"activity"`
	Created   bool         `json:"created"`
	NewRecord bool         `json:"new_record"`
}

// HistoryResponse lists completion records, most recent first.
type HistoryResponse struct {
	Items []CompletionRecordView `json:"items"`
}

// MonthOverviewResponse maps each day of the month to its summary.
type MonthOverviewResponse struct {
	Year  int                           `json:"year"`
	Month int                           `json:"month"`
	Days  map[string]*domain.DaySummary `json:"days"`
}

// ProgressResponse reports completion for one day against the user's goal.
type ProgressResponse struct {
	Date                string  `json:"date"`
	Total               int     `json:"total"`
	Completed           int     `json:"completed"`
	Percentage          float64 `json:"percentage"`
	ThresholdPercentage int     `json:"threshold_percentage"`
	MeetsThreshold      bool    `json:"meets_threshold"`
}

// SettingsView is the API representation of user preferences.
type SettingsView struct {
	ThresholdPercentage int       `json:"threshold_percentage"`
	Username            string    `json:"username"`
	DarkMode            bool      `json:"dark_mode"`
	Email               string    `json:"email"`
	RemindersEnabled    bool      `json:"reminders_enabled"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (h *Handler) toActivityView(a domain.Activity) ActivityView {
	loc := h.service.Location()
	view := ActivityView{
		ActivityID:        a.ID,
		Title:             a.Title,
		Description:       a.Description,
		Frequency:         string(a.Frequency),
		StartDate:         a.StartDate.In(loc).Format(domain.DateLayout),
		CompletionHistory: h.toRecordViews(a.CompletionHistory),
		CurrentStreak:     a.CurrentStreak,
		BestStreak:        a.BestStreak,
		IsActive:          a.IsActive,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	if a.EndDate != nil {
		end := a.EndDate.In(loc).Format(domain.DateLayout)
		view.EndDate = &end
	}
	return view
}

func (h *Handler) toRecordViews(records []domain.CompletionRecord) []CompletionRecordView {
	loc := h.service.Location()
	out := make([]CompletionRecordView, 0, len(records))
	for _, r := range records {
		out = append(out, CompletionRecordView{
			Date:      r.Date.In(loc).Format(domain.DateLayout),
			Completed: r.Completed,
			Note:      r.Note,
		})
	}
	return out
}

func toSettingsView(s domain.Settings) SettingsView {
	return SettingsView{
		ThresholdPercentage: s.ThresholdPercentage,
		Username:            s.Username,
		DarkMode:            s.DarkMode,
		Email:               s.Email,
		RemindersEnabled:    s.RemindersEnabled,
		UpdatedAt:           s.UpdatedAt,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
