package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Notification types published to the outside world.
const (
	NotifyOrderStatusChanged  = "order.status_changed"
	NotifyCostProposed        = "order.cost_proposed"
	NotifyCostDecided         = "order.cost_decided"
	NotifyReviewReported      = "review.reported"
	NotifyChatAccessGranted   = "chat_access.granted"
	NotifyChatAccessRevoked   = "chat_access.revoked"
	defaultNotificationTopic  = "servicehub:notifications"
	notificationPublishBudget = 5 * time.Second
)

// Notification is a fire-and-forget message for a single recipient. Delivery
// (email, push) happens downstream and is never awaited.
type Notification struct {
	Type        string                 `json:"type"`
	RecipientID uint                   `json:"recipient_id"`
	OrderID     uint                   `json:"order_id,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Notifier hands notifications off without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the structured log only.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) {
	zap.L().Info("notification",
		zap.String("type", n.Type),
		zap.Uint("recipient_id", n.RecipientID),
		zap.Uint("order_id", n.OrderID),
	)
}

// RedisNotifier publishes notifications as JSON on a Redis channel for the
// email/push workers to consume.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to the Redis instance named by redisURL.
func NewRedisNotifier(redisURL string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return &RedisNotifier{client: redis.NewClient(opts), channel: defaultNotificationTopic}, nil
}

// Notify publishes in the background; failures are logged and dropped.
func (r *RedisNotifier) Notify(_ context.Context, n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		zap.L().Error("failed to encode notification", zap.String("type", n.Type), zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notificationPublishBudget)
		defer cancel()
		if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
			zap.L().Warn("failed to publish notification",
				zap.String("type", n.Type),
				zap.Uint("recipient_id", n.RecipientID),
				zap.Error(err),
			)
		}
	}()
}

// Close releases the Redis connection pool.
func (r *RedisNotifier) Close() error {
	return r.client.Close()
}

var notifierInstance Notifier = LogNotifier{}

// GetNotifier returns the process notifier
func GetNotifier() Notifier {
	return notifierInstance
}

// SetNotifier sets the process notifier (primarily for testing)
func SetNotifier(n Notifier) {
	if n == nil {
		n = LogNotifier{}
	}
	notifierInstance = n
}
