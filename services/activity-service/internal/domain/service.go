// Package domain defines the business logic for the activity service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/fitness/libs/go/events"
	"example.com/fitness/services/activity-service/internal/observability"
)

var (
	// ErrInvalidOwner is returned when the owner is unknown to the user directory.
	ErrInvalidOwner = errors.New("activity owner is not a registered user")
	// ErrValidationUnavailable is returned when the owner could not be checked.
	ErrValidationUnavailable = errors.New("owner validation unavailable")
	// ErrNotFound is returned when an activity cannot be located.
	ErrNotFound = errors.New("activity not found")
	// ErrInvalidInput indicates the activity payload failed validation.
	ErrInvalidInput = errors.New("invalid activity input")
)

// OwnerValidator confirms that a user id is known.
type OwnerValidator interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Repository captures persistence operations.
type Repository interface {
	Create(ctx context.Context, record ActivityRecord) error
	// Get returns nil when the activity does not exist.
	Get(ctx context.Context, activityID string) (*ActivityRecord, error)
	// ListByOwner returns the owner's activities, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]ActivityRecord, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, activityID string) (bool, error)
}

// Publisher hands ingestion events to the message bus.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event events.ActivityIngested) error
}

// Option customises the Service.
type Option func(*Service)

// WithTopic overrides the topic ingestion events are published to.
func WithTopic(topic string) Option {
	return func(s *Service) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithLogger sets the logger used for publish failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service orchestrates activity workflows.
type Service struct {
	owners    OwnerValidator
	repo      Repository
	publisher Publisher
	topic     string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(owners OwnerValidator, repo Repository, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		owners:    owners,
		repo:      repo,
		publisher: publisher,
		topic:     events.DefaultActivityTopic,
		logger:    zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackActivity validates the owner, persists the activity and then publishes
// an ActivityIngested event. A failed publish never undoes the write.
func (s *Service) TrackActivity(ctx context.Context, ownerID string, input ActivityInput) (ActivityRecord, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return ActivityRecord{}, ErrInvalidOwner
	}

	exists, err := s.owners.Exists(ctx, ownerID)
	if err != nil {
		return ActivityRecord{}, fmt.Errorf("%w: %v", ErrValidationUnavailable, err)
	}
	if !exists {
		return ActivityRecord{}, ErrInvalidOwner
	}

	if err := input.Validate(); err != nil {
		return ActivityRecord{}, err
	}

	now := s.now()
	record := ActivityRecord{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		Type:              strings.ToUpper(strings.TrimSpace(input.Type)),
		DurationSeconds:   input.DurationSeconds,
		CaloriesBurned:    input.CaloriesBurned,
		StartTime:         input.StartTime.UTC(),
		AdditionalMetrics: copyMetrics(input.AdditionalMetrics),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if record.StartTime.IsZero() {
		record.StartTime = now
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return ActivityRecord{}, fmt.Errorf("persist activity: %w", err)
	}
	observability.RecordActivityPersisted(now)

	// The write is committed; a client disconnect must not abort the hand-off.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), s.topic, ownerID, record.IngestedEvent()); err != nil {
		observability.RecordPublish(false)
		s.logger.Warn().
			Err(err).
			Str("activity_id", record.ID).
			Str("owner_id", ownerID).
			Str("topic", s.topic).
			Msg("activity persisted but event publish failed")
	} else {
		observability.RecordPublish(true)
	}

	return record, nil
}

// GetUserActivities lists the owner's activities, newest first.
func (s *Service) GetUserActivities(ctx context.Context, ownerID string) ([]ActivityRecord, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, activityID string) (*ActivityRecord, error) {
	record, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// DeleteActivity removes the activity. No event is published for deletions.
func (s *Service) DeleteActivity(ctx context.Context, activityID string) error {
	deleted, err := s.repo.Delete(ctx, activityID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}
