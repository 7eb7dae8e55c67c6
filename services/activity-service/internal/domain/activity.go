package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/fitness/libs/go/events"
)

// ActivityRecord is a workout stored for its owner.
type ActivityRecord struct {
	ID                string
	OwnerID           string
	Type              string
	DurationSeconds   int
	CaloriesBurned    int
	StartTime         time.Time
	AdditionalMetrics map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ActivityInput captures the payload from the API layer. The owner comes from
// the resolved identity, never from the payload.
type ActivityInput struct {
	Type              string
	DurationSeconds   int
	CaloriesBurned    int
	StartTime         time.Time
	AdditionalMetrics map[string]any
}

// Validate ensures input correctness.
func (in ActivityInput) Validate() error {
	var errs []error
	if strings.TrimSpace(in.Type) == "" {
		errs = append(errs, errors.New("type is required"))
	}
	if in.DurationSeconds < 0 {
		errs = append(errs, errors.New("durationSeconds must be >= 0"))
	}
	if in.CaloriesBurned < 0 {
		errs = append(errs, errors.New("caloriesBurned must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// IngestedEvent snapshots the record for downstream consumers.
func (r ActivityRecord) IngestedEvent() events.ActivityIngested {
	return events.ActivityIngested{
		OwnerID:         r.OwnerID,
		ActivityID:      r.ID,
		Type:            r.Type,
		DurationSeconds: r.DurationSeconds,
		CaloriesBurned:  r.CaloriesBurned,
		StartTime:       r.StartTime,
		Metrics:         copyMetrics(r.AdditionalMetrics),
		CreatedAt:       r.CreatedAt,
	}
}

func copyMetrics(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
