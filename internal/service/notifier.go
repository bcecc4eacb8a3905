package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airtime-live/stagedoor/pkg/redis"
)

// Notification event names delivered to users
const (
	NotifySessionStarted   = "session_started"
	NotifySessionWarning   = "session_warning"
	NotifySessionEnded     = "session_ended"
	NotifySessionCancelled = "session_cancelled"
	NotifyQueueJoined      = "queue_joined"
	NotifyQueueWarning     = "queue_warning"
	NotifyQueueUpdated     = "queue_updated"
	NotifyPointsChanged    = "points_changed"
)

// Notifier delivers per-user notifications. Delivery is best effort;
// callers must not treat a delivery failure as an operation failure.
type Notifier interface {
	// NotifyUser delivers an event with a payload to one user
	NotifyUser(ctx context.Context, userID, event string, payload interface{}) error
}

// userNotification is the wire format published to the user channel
type userNotification struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RedisNotifier publishes notifications to per-user Redis pub/sub channels.
// Gateway instances subscribe to notify:user:* and fan out to connections.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a new Redis-backed notifier
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// NotifyUser delivers an event with a payload to one user
func (n *RedisNotifier) NotifyUser(ctx context.Context, userID, event string, payload interface{}) error {
	msg := userNotification{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	channel := fmt.Sprintf("notify:user:%s", userID)
	if err := n.client.Publish(ctx, channel, data); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// NoOpNotifier is a no-op implementation of Notifier for testing
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new no-op notifier
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// NotifyUser is a no-op
func (n *NoOpNotifier) NotifyUser(ctx context.Context, userID, event string, payload interface{}) error {
	return nil
}
