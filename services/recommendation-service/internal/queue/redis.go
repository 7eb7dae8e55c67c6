// Package queue keeps ingested activities waiting to be scored, one Redis list per user.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/fitness/libs/go/events"
)

const keyPrefix = "recommendation:pending:"

// PendingQueue stores the newest events per owner in a capped, expiring list.
type PendingQueue struct {
	client redis.Cmdable
	cap    int64
	ttl    time.Duration
}

// NewPendingQueue constructs a PendingQueue. capacity <= 0 keeps every entry;
// ttl <= 0 disables expiry.
func NewPendingQueue(client redis.Cmdable, capacity int64, ttl time.Duration) *PendingQueue {
	return &PendingQueue{client: client, cap: capacity, ttl: ttl}
}

// Key returns the Redis list holding ownerID's pending events.
func Key(ownerID string) string {
	return keyPrefix + ownerID
}

// Push prepends event to its owner's list, trims it to capacity and refreshes the expiry.
func (q *PendingQueue) Push(ctx context.Context, event events.ActivityIngested) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := Key(event.OwnerID)
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		if q.cap > 0 {
			pipe.LTrim(ctx, key, 0, q.cap-1)
		}
		if q.ttl > 0 {
			pipe.Expire(ctx, key, q.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue activity %s: %w", event.ActivityID, err)
	}
	return nil
}

// Pending returns up to limit events for ownerID, newest first. limit <= 0 returns all.
func (q *PendingQueue) Pending(ctx context.Context, ownerID string, limit int64) ([]events.ActivityIngested, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	raw, err := q.client.LRange(ctx, Key(ownerID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pending activities: %w", err)
	}

	out := make([]events.ActivityIngested, 0, len(raw))
	for _, item := range raw {
		var event events.ActivityIngested
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pending activity: %w", err)
		}
		out = append(out, event)
	}
	return out, nil
}
