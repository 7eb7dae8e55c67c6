// Package events defines shared cross-service event payloads.
package events

import (
	"errors"
	"strings"
	"time"
)

// EventTypeActivityIngested is carried in the event_type header of every ingestion event.
const EventTypeActivityIngested = "activity.ingested"

// DefaultActivityTopic is used when a deployment does not configure its own topic.
const DefaultActivityTopic = "activity-events"

// ActivityIngested is a snapshot of an activity taken when it was persisted.
// Consumers must not assume it tracks later changes to the record.
type ActivityIngested struct {
	OwnerID         string         `json:"owner_id"`
	ActivityID      string         `json:"activity_id"`
	Type            string         `json:"type"`
	DurationSeconds int            `json:"duration_seconds"`
	CaloriesBurned  int            `json:"calories_burned"`
	StartTime       time.Time      `json:"start_time"`
	Metrics         map[string]any `json:"metrics,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ErrInvalidEvent is returned by Validate for events missing required fields.
var ErrInvalidEvent = errors.New("invalid activity event")

// Validate reports whether the event carries the fields consumers rely on.
func (e ActivityIngested) Validate() error {
	switch {
	case strings.TrimSpace(e.OwnerID) == "":
		return errors.Join(ErrInvalidEvent, errors.New("owner_id is required"))
	case strings.TrimSpace(e.ActivityID) == "":
		return errors.Join(ErrInvalidEvent, errors.New("activity_id is required"))
	case strings.TrimSpace(e.Type) == "":
		return errors.Join(ErrInvalidEvent, errors.New("type is required"))
	case e.DurationSeconds < 0 || e.CaloriesBurned < 0:
		return errors.Join(ErrInvalidEvent, errors.New("duration and calories must not be negative"))
	}
	return nil
}
