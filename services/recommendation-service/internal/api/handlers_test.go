package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/fitness/libs/go/auth"
	"example.com/fitness/libs/go/events"
)

type stubPending struct {
	byOwner   map[string][]events.ActivityIngested
	err       error
	lastLimit int64
}

func (s *stubPending) Pending(_ context.Context, ownerID string, limit int64) ([]events.ActivityIngested, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	entries := s.byOwner[ownerID]
	if limit > 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func newTestHandler(pending *stubPending) http.Handler {
	mux := http.NewServeMux()
	NewHandler(pending, zerolog.Nop()).RegisterRoutes(mux)
	return auth.NewMiddleware(nil).Wrap(mux)
}

func get(t *testing.T, h http.Handler, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userID != "" {
		req.Header.Set(auth.HeaderUserID, userID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func seededPending() *stubPending {
	return &stubPending{byOwner: map[string][]events.ActivityIngested{
		"u-1": {
			{OwnerID: "u-1", ActivityID: "a-2", Type: "SWIM", DurationSeconds: 900},
			{OwnerID: "u-1", ActivityID: "a-1", Type: "RUN", DurationSeconds: 1800, CaloriesBurned: 300},
		},
		"u-2": {
			{OwnerID: "u-2", ActivityID: "a-9", Type: "YOGA"},
		},
	}}
}

func TestUserRecommendationsListsCallerPendingEntries(t *testing.T) {
	h := newTestHandler(seededPending())

	for _, path := range []string{"/api/v1/recommendation/user/u-1", "/api/v1/recommendation"} {
		rr := get(t, h, path, "u-1")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var items []RecommendationView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
		require.Len(t, items, 2)
		require.Equal(t, "a-2", items[0].ActivityID)
		require.Equal(t, "RUN", items[1].ActivityType)
		require.Equal(t, StatusPending, items[1].Status)
	}
}

func TestUserRecommendationsHonoursLimit(t *testing.T) {
	pending := seededPending()
	h := newTestHandler(pending)

	rr := get(t, h, "/api/v1/recommendation/user/u-1?limit=1", "u-1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int64(1), pending.lastLimit)

	var items []RecommendationView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Len(t, items, 1)

	rr = get(t, h, "/api/v1/recommendation/user/u-1?limit=-3", "u-1")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUserRecommendationsForAnotherUserAreForbidden(t *testing.T) {
	h := newTestHandler(seededPending())

	rr := get(t, h, "/api/v1/recommendation/user/u-2", "u-1")
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestActivityRecommendationIsScopedToCaller(t *testing.T) {
	h := newTestHandler(seededPending())

	rr := get(t, h, "/api/v1/recommendation/activity/a-1", "u-1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var view RecommendationView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Equal(t, "u-1", view.UserID)
	require.Equal(t, 300, view.CaloriesBurned)

	rr = get(t, h, "/api/v1/recommendation/activity/a-9", "u-1")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecommendationRoutesRequireUserID(t *testing.T) {
	h := newTestHandler(seededPending())

	rr := get(t, h, "/api/v1/recommendation/user/u-1", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRecommendationRoutesRejectUnknownPathsAndMethods(t *testing.T) {
	h := newTestHandler(seededPending())

	require.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/recommendation/other/x", "u-1").Code)
	require.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/recommendation/user/u-1/extra", "u-1").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendation/user/u-1", nil)
	req.Header.Set(auth.HeaderUserID, "u-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestQueueFailureIsServerError(t *testing.T) {
	h := newTestHandler(&stubPending{err: errors.New("redis: connection refused")})

	rr := get(t, h, "/api/v1/recommendation/user/u-1", "u-1")
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "server_error", body["type"])
}
