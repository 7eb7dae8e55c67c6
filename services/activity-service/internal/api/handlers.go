// Package api exposes HTTP handlers for the activity service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/fitness/libs/go/auth"
	"example.com/fitness/services/activity-service/internal/domain"
)

const activityPath = "/api/v1/activity"

// retryAfterSeconds is advertised when the user directory cannot vouch for the owner.
const retryAfterSeconds = "5"

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger zerolog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(activityPath, h.activities)
	mux.HandleFunc(activityPath+"/", h.activityRoutes)
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, activityPath+"/"), "/")

	switch rest {
	case "", "activities":
		h.activities(w, r)
		return
	case "track", "trackActivity":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.trackActivity(w, r)
		return
	}

	if strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, r, rest)
	case http.MethodDelete:
		h.deleteActivity(w, r, rest)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) trackActivity(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing "+auth.HeaderUserID+" header")
		return
	}

	var req TrackActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	record, err := h.service.TrackActivity(r.Context(), ownerID, req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(record))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing "+auth.HeaderUserID+" header")
		return
	}

	records, err := h.service.GetUserActivities(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	items := make([]ActivityView, 0, len(records))
	for _, record := range records {
		items = append(items, toActivityView(record))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	record, ok := h.ownedActivity(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*record))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.ownedActivity(w, r, id); !ok {
		return
	}
	if err := h.service.DeleteActivity(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedActivity loads the activity and hides records that belong to someone else.
func (h *Handler) ownedActivity(w http.ResponseWriter, r *http.Request, id string) (*domain.ActivityRecord, bool) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing "+auth.HeaderUserID+" header")
		return nil, false
	}

	record, err := h.service.GetActivity(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	if record.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
		return nil, false
	}
	return record, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidOwner):
		writeError(w, http.StatusForbidden, "invalid_owner", "user is not registered")
	case errors.Is(err, domain.ErrValidationUnavailable):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusServiceUnavailable, "validation_unavailable", "unable to validate user, retry later")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// TrackActivityRequest is the payload for POST /api/v1/activity/track.
type TrackActivityRequest struct {
	ActivityType      string         `json:"activityType"`
	DurationSeconds   int            `json:"durationSeconds"`
	CaloriesBurned    int            `json:"caloriesBurned"`
	StartTime         *time.Time     `json:"startTime,omitempty"`
	AdditionalMetrics map[string]any `json:"additionalMetrics,omitempty"`
}

func (r TrackActivityRequest) toInput() domain.ActivityInput {
	input := domain.ActivityInput{
		Type:              r.ActivityType,
		DurationSeconds:   r.DurationSeconds,
		CaloriesBurned:    r.CaloriesBurned,
		AdditionalMetrics: r.AdditionalMetrics,
	}
	if r.StartTime != nil {
		input.StartTime = *r.StartTime
	}
	return input
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ID                string         `json:"id"`
	OwnerID           string         `json:"ownerId"`
	ActivityType      string         `json:"activityType"`
	DurationSeconds   int            `json:"durationSeconds"`
	CaloriesBurned    int            `json:"caloriesBurned"`
	StartTime         time.Time      `json:"startTime"`
	AdditionalMetrics map[string]any `json:"additionalMetrics,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

func toActivityView(record domain.ActivityRecord) ActivityView {
	return ActivityView{
		ID:                record.ID,
		OwnerID:           record.OwnerID,
		ActivityType:      record.Type,
		DurationSeconds:   record.DurationSeconds,
		CaloriesBurned:    record.CaloriesBurned,
		StartTime:         record.StartTime,
		AdditionalMetrics: record.AdditionalMetrics,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
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
