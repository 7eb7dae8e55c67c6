// Package api exposes the caller's pending recommendation inputs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/fitness/libs/go/auth"
	"example.com/fitness/libs/go/events"
)

const recommendationPath = "/api/v1/recommendation"

// StatusPending marks an activity that has been received but not yet scored.
const StatusPending = "PENDING"

// PendingReader is the read side of the per-user pending queue.
type PendingReader interface {
	Pending(ctx context.Context, ownerID string, limit int64) ([]events.ActivityIngested, error)
}

// Handler serves pending recommendation entries scoped to the caller.
type Handler struct {
	pending PendingReader
	logger  zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(pending PendingReader, logger zerolog.Logger) *Handler {
	return &Handler{pending: pending, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(recommendationPath, h.recommendationRoutes)
	mux.HandleFunc(recommendationPath+"/", h.recommendationRoutes)
}

func (h *Handler) recommendationRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing "+auth.HeaderUserID+" header")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, recommendationPath), "/")
	if rest == "" {
		h.userRecommendations(w, r, callerID, callerID)
		return
	}

	kind, id, found := strings.Cut(rest, "/")
	if !found || id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
		return
	}

	switch kind {
	case "user":
		h.userRecommendations(w, r, callerID, id)
	case "activity":
		h.activityRecommendation(w, r, callerID, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
	}
}

func (h *Handler) userRecommendations(w http.ResponseWriter, r *http.Request, callerID, userID string) {
	if userID != callerID {
		writeError(w, http.StatusForbidden, "forbidden", "recommendations belong to another user")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
		return
	}

	entries, err := h.pending.Pending(r.Context(), callerID, limit)
	if err != nil {
		h.writeServerError(w, r, err)
		return
	}

	items := make([]RecommendationView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toRecommendationView(entry))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) activityRecommendation(w http.ResponseWriter, r *http.Request, callerID, activityID string) {
	entries, err := h.pending.Pending(r.Context(), callerID, 0)
	if err != nil {
		h.writeServerError(w, r, err)
		return
	}
	for _, entry := range entries {
		if entry.ActivityID == activityID {
			writeJSON(w, http.StatusOK, toRecommendationView(entry))
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", "no recommendation for activity")
}

func (h *Handler) writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func parseLimit(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit < 0 {
		return 0, strconv.ErrSyntax
	}
	return limit, nil
}

// RecommendationView is one received activity awaiting a recommendation.
type RecommendationView struct {
	UserID          string    `json:"userId"`
	ActivityID      string    `json:"activityId"`
	ActivityType    string    `json:"activityType"`
	DurationSeconds int       `json:"durationSeconds"`
	CaloriesBurned  int       `json:"caloriesBurned"`
	StartTime       time.Time `json:"startTime"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toRecommendationView(event events.ActivityIngested) RecommendationView {
	return RecommendationView{
		UserID:          event.OwnerID,
		ActivityID:      event.ActivityID,
		ActivityType:    event.Type,
		DurationSeconds: event.DurationSeconds,
		CaloriesBurned:  event.CaloriesBurned,
		StartTime:       event.StartTime,
		Status:          StatusPending,
		CreatedAt:       event.CreatedAt,
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
