// Package api exposes HTTP handlers for the progress tracker.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/JarvisScienz/progress-tracker/internal/auth"
	"github.com/JarvisScienz/progress-tracker/internal/domain"
	"github.com/JarvisScienz/progress-tracker/internal/observability"
	"github.com/JarvisScienz/progress-tracker/internal/persistence"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, validate: newValidator(), logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/activities", h.listActivities)
	mux.HandleFunc("POST /v1/activities", h.createActivity)
	mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	mux.HandleFunc("PUT /v1/activities/{id}", h.updateActivity)
	mux.HandleFunc("DELETE /v1/activities/{id}", h.retireActivity)
	mux.HandleFunc("POST /v1/activities/{id}/complete", h.markPeriod)
	mux.HandleFunc("GET /v1/activities/{id}/history", h.history)
	mux.HandleFunc("GET /v1/activities/month/{year}/{month}", h.monthOverview)
	mux.HandleFunc("GET /v1/progress", h.dailyProgress)
	mux.HandleFunc("GET /v1/settings", h.getSettings)
	mux.HandleFunc("PUT /v1/settings", h.updateSettings)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsRead)
	if !ok {
		return
	}

	page := domain.Page{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		if parsed > 100 {
			parsed = 100
		}
		page.Limit = parsed
	}
	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}
	page.Cursor = cursor

	activities, next, err := h.service.ListActivities(r.Context(), claims.Subject, page)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, h.toActivityView(activity))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsWrite)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if !h.decode(w, r, &req) {
		return
	}

	frequency, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	start, err := parseOptionalDate(req.StartDate, h.service.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "start_date: "+err.Error())
		return
	}
	end, err := parseOptionalDate(req.EndDate, h.service.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "end_date: "+err.Error())
		return
	}

	activity, err := h.service.CreateActivity(r.Context(), domain.CreateActivityInput{
		UserID:      claims.Subject,
		Title:       req.Title,
		Description: req.Description,
		Frequency:   frequency,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toActivityView(*activity))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsRead)
	if !ok {
		return
	}

	activity, err := h.service.GetActivity(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toActivityView(*activity))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsWrite)
	if !ok {
		return
	}

	var req UpdateActivityRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := domain.UpdateActivityInput{
		UserID:      claims.Subject,
		ActivityID:  r.PathValue("id"),
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Frequency != nil {
		frequency, err := domain.ParseFrequency(*req.Frequency)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		input.Frequency = &frequency
	}
	if req.StartDate != nil {
		start, err := parseOptionalDate(*req.StartDate, h.service.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "start_date: "+err.Error())
			return
		}
		input.StartDate = start
	}
	if req.EndDate != nil {
		end, err := parseOptionalDate(*req.EndDate, h.service.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "end_date: "+err.Error())
			return
		}
		input.EndDate = end
		input.ClearEndDate = end == nil
	}

	activity, err := h.service.UpdateActivity(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toActivityView(*activity))
}

func (h *Handler) retireActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsWrite)
	if !ok {
		return
	}

	if err := h.service.RetireActivity(r.Context(), claims.Subject, r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "activity deleted"})
}

func (h *Handler) markPeriod(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsWrite)
	if !ok {
		return
	}

	var req MarkPeriodRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := parseOptionalDate(req.Date, h.service.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date: "+err.Error())
		return
	}

	result, err := h.service.MarkPeriod(r.Context(), domain.MarkPeriodInput{
		UserID:     claims.Subject,
		ActivityID: r.PathValue("id"),
		Date:       date,
		Completed:  *req.Completed,
		Note:       req.note(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	observability.RecordPeriodMarked(string(result.Activity.Frequency), *req.Completed, result.NewRecord)

	writeJSON(w, http.StatusOK, MarkPeriodResponse{
		Activity:  h.toActivityView(result.Activity),
		Created:   result.Created,
		NewRecord: result.NewRecord,
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsRead)
	if !ok {
		return
	}

	records, err := h.service.History(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: h.toRecordViews(records)})
}

func (h *Handler) monthOverview(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsRead)
	if !ok {
		return
	}

	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid year")
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid month")
		return
	}

	days, err := h.service.MonthOverview(r.Context(), claims.Subject, year, month)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MonthOverviewResponse{Year: year, Month: month, Days: days})
}

func (h *Handler) dailyProgress(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsRead)
	if !ok {
		return
	}

	day, err := parseOptionalDate(r.URL.Query().Get("date"), h.service.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date: "+err.Error())
		return
	}

	progress, err := h.service.DailyProgress(r.Context(), claims.Subject, day)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProgressResponse{
		Date:                progress.Date.Format(domain.DateLayout),
		Total:               progress.Total,
		Completed:           progress.Completed,
		Percentage:          progress.Percentage,
		ThresholdPercentage: progress.ThresholdPercentage,
		MeetsThreshold:      progress.MeetsThreshold,
	})
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsRead)
	if !ok {
		return
	}

	settings, err := h.service.GetSettings(r.Context(), claims.Subject)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsView(*settings))
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeHabitsWrite)
	if !ok {
		return
	}

	var req UpdateSettingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	settings, err := h.service.UpdateSettings(r.Context(), domain.UpdateSettingsInput{
		UserID:              claims.Subject,
		ThresholdPercentage: req.ThresholdPercentage,
		Username:            req.Username,
		DarkMode:            req.DarkMode,
		Email:               req.Email,
		RemindersEnabled:    req.RemindersEnabled,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsView(*settings))
}

// requireScope writes 401/403 and returns false unless the caller holds scope.
// The write scope implies read access.
func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if claims.HasScope(scope) || (scope == auth.ScopeHabitsRead && claims.HasScope(auth.ScopeHabitsWrite)) {
		return claims, true
	}
	writeError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("scope %s required", scope))
	return nil, false
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", describeValidation(err))
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrInvalidFrequency),
		errors.Is(err, domain.ErrInvalidMonth),
		errors.Is(err, domain.ErrInvalidThreshold),
		errors.Is(err, domain.ErrTitleRequired),
		errors.Is(err, domain.ErrFrequencyImmutable):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "server_error", "server error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// parseOptionalDate accepts a calendar date or an RFC 3339 timestamp. Blank
// input yields nil so the service applies its default.
func parseOptionalDate(raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(domain.DateLayout, raw, loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD or RFC 3339 timestamp")
	}
	return &t, nil
}
