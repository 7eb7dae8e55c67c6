package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/fitness/libs/go/events"
)

// PendingStore queues activities for later scoring.
type PendingStore interface {
	Push(ctx context.Context, event events.ActivityIngested) error
}

// IngestHandler queues ActivityIngested events per owner and ignores other event types.
type IngestHandler struct {
	store PendingStore
}

// NewIngestHandler constructs an IngestHandler.
func NewIngestHandler(store PendingStore) *IngestHandler {
	return &IngestHandler{store: store}
}

// Handle implements Handler.
func (h *IngestHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.EventTypeActivityIngested {
		recordSkipped(msg.EventType)
		return nil
	}

	var event events.ActivityIngested
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrPermanent, msg.EventType, err)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	if msg.Key != "" && msg.Key != event.OwnerID {
		return fmt.Errorf("%w: key %q does not match owner %q", ErrPermanent, msg.Key, event.OwnerID)
	}

	return h.store.Push(ctx, event)
}
