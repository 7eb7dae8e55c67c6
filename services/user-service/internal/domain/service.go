// Package domain defines the business logic for the user directory.
package domain

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidInput indicates the registration payload failed validation.
	ErrInvalidInput = errors.New("invalid registration input")
	// ErrEmailTaken is returned when another external identity already owns the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserNotFound is returned when a user cannot be located.
	ErrUserNotFound = errors.New("user not found")
)

// bcrypt ignores input past this length.
const maxPasswordBytes = 72

// Role is the coarse authorisation level of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is the internal user record. The directory is its only writer.
type User struct {
	ID           string
	ExternalID   string
	Email        string
	FirstName    string
	LastName     string
	Role         Role
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository captures persistence operations.
type Repository interface {
	// Insert stores user unless a record with the same external id exists, in
	// which case the stored record is returned with created=false.
	Insert(ctx context.Context, user User) (stored User, created bool, err error)
	// Get returns nil when no user matches the internal or external id.
	Get(ctx context.Context, id string) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	List(ctx context.Context) ([]User, error)
}

// RegisterInput captures the payload from the API layer.
type RegisterInput struct {
	Email      string
	FirstName  string
	LastName   string
	ExternalID string
	Password   string
}

// Option customises the Service.
type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service orchestrates user workflows.
type Service struct {
	repo       Repository
	bcryptCost int
	now        func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		bcryptCost: bcrypt.DefaultCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates the user for input.ExternalID exactly once. Repeat calls
// return the stored record unchanged with created=false.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, bool, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.ExternalID = strings.TrimSpace(input.ExternalID)
	if err := validateRegistration(input); err != nil {
		return User{}, false, err
	}

	existing, err := s.repo.GetByExternalID(ctx, input.ExternalID)
	if err != nil {
		return User{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return User{}, false, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	return s.repo.Insert(ctx, User{
		ID:           uuid.NewString(),
		ExternalID:   input.ExternalID,
		Email:        strings.ToLower(input.Email),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         RoleUser,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// Validate reports whether id names a known user, by internal or external id.
func (s *Service) Validate(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// Get fetches by internal or external id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// List returns every registered user.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func validateRegistration(input RegisterInput) error {
	var errs []error
	if input.ExternalID == "" {
		errs = append(errs, errors.New("externalId is required"))
	}
	if input.Email == "" {
		errs = append(errs, errors.New("email is required"))
	} else if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		errs = append(errs, fmt.Errorf("email %q is not a valid address", input.Email))
	}
	switch {
	case input.Password == "":
		errs = append(errs, errors.New("password is required"))
	case len(input.Password) > maxPasswordBytes:
		errs = append(errs, fmt.Errorf("password exceeds %d bytes", maxPasswordBytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}
