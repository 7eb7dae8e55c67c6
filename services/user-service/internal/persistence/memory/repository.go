// Package memory provides an in-process user repository for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"example.com/fitness/services/user-service/internal/domain"
)

// Repository keeps users in maps guarded by a single mutex.
type Repository struct {
	mu         sync.RWMutex
	byID       map[string]domain.User
	byExternal map[string]string
	byEmail    map[string]string
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		byID:       make(map[string]domain.User),
		byExternal: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Insert implements domain.Repository.
func (r *Repository) Insert(_ context.Context, user domain.User) (domain.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byExternal[user.ExternalID]; ok {
		return r.byID[id], false, nil
	}
	email := strings.ToLower(user.Email)
	if _, ok := r.byEmail[email]; ok {
		return domain.User{}, false, domain.ErrEmailTaken
	}

	r.byID[user.ID] = user
	r.byExternal[user.ExternalID] = user.ID
	r.byEmail[email] = user.ID
	return user, true, nil
}

// Get implements domain.Repository.
func (r *Repository) Get(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if user, ok := r.byID[id]; ok {
		return &user, nil
	}
	if internal, ok := r.byExternal[id]; ok {
		user := r.byID[internal]
		return &user, nil
	}
	return nil, nil
}

// GetByExternalID implements domain.Repository.
func (r *Repository) GetByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	internal, ok := r.byExternal[externalID]
	if !ok {
		return nil, nil
	}
	user := r.byID[internal]
	return &user, nil
}

// List implements domain.Repository.
func (r *Repository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]domain.User, 0, len(r.byID))
	for _, user := range r.byID {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}
