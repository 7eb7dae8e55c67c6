// Package api exposes HTTP handlers for the user directory.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/fitness/services/user-service/internal/domain"
)

const usersPath = "/api/v1/users"

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
	mux.HandleFunc(usersPath, h.users)
	mux.HandleFunc(usersPath+"/", h.userByID)
}

func (h *Handler) users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listUsers(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) userByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, usersPath+"/"), "/")

	switch {
	case rest == "":
		h.users(w, r)
	case rest == "register":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.register(w, r)
	case strings.HasSuffix(rest, "/validate"):
		id := strings.TrimSuffix(rest, "/validate")
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.validate(w, r, id)
	case !strings.Contains(rest, "/"):
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.getUser(w, r, rest)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	user, created, err := h.service.Register(r.Context(), domain.RegisterInput{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		ExternalID: req.ExternalID,
		Password:   req.Password,
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidInput):
		recordRegistration("invalid")
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	case errors.Is(err, domain.ErrEmailTaken):
		recordRegistration("email_taken")
		writeError(w, http.StatusConflict, "email_taken", err.Error())
		return
	default:
		recordRegistration("error")
		h.serverError(w, r, err)
		return
	}

	if created {
		recordRegistration("created")
		h.logger.Info().Str("user_id", user.ID).Str("external_id", user.ExternalID).Msg("user registered")
	} else {
		recordRegistration("existing")
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request, id string) {
	ok, err := h.service.Validate(r.Context(), id)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	items := make([]UserView, 0, len(users))
	for _, user := range users {
		items = append(items, toUserView(user))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}

// RegisterRequest is the payload for POST /api/v1/users/register.
type RegisterRequest struct {
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	ExternalID string `json:"externalId"`
	Password   string `json:"password"`
}

// UserView is the public representation of a user. The password hash never leaves the service.
type UserView struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toUserView(user domain.User) UserView {
	return UserView{
		ID:         user.ID,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Role:       string(user.Role),
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
