package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/warp/warehouse-engine/config"
	"github.com/warp/warehouse-engine/warehousing"
)

// Channel is the pub/sub channel every notification is published on.
const Channel = "notifications"

// message is the wire form stored in Redis.
type message struct {
	UserID    string            `json:"user_id"`
	Message   string            `json:"message"`
	Type      string            `json:"type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Redis keeps a capped per-user inbox and publishes each notification.
// A disabled Redis accepts and drops everything.
type Redis struct {
	client  *redis.Client
	enabled bool
	keep    int64
}

// NewRedis connects to Redis unless cfg disables it.
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	if !cfg.Enabled {
		return &Redis{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewRedisWithClient(client, cfg.KeepNotifications), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, keep int64) *Redis {
	if keep <= 0 {
		keep = 200
	}
	return &Redis{client: client, enabled: true, keep: keep}
}

// InboxKey is the list holding a user's notifications, newest first.
func InboxKey(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

func (r *Redis) Notify(ctx context.Context, n warehousing.Notification) error {
	if !r.enabled {
		return nil
	}

	data, err := json.Marshal(message{
		UserID:    n.UserID,
		Message:   n.Message,
		Type:      string(n.Type),
		Metadata:  n.Metadata,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}

	key := InboxKey(n.UserID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, r.keep-1)
		pipe.Publish(ctx, Channel, data)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to push notification for %s", n.UserID)
	}
	return nil
}

// Inbox returns up to limit notifications of a user, newest first.
func (r *Redis) Inbox(ctx context.Context, userID string, limit int64) ([]warehousing.Notification, error) {
	if !r.enabled {
		return nil, errors.New("notifications are disabled")
	}
	if limit <= 0 {
		limit = r.keep
	}
	raw, err := r.client.LRange(ctx, InboxKey(userID), 0, limit-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read notifications from Redis")
	}

	out := make([]warehousing.Notification, 0, len(raw))
	for _, item := range raw {
		var m message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal notification")
		}
		out = append(out, warehousing.Notification{
			UserID:    m.UserID,
			Message:   m.Message,
			Type:      warehousing.NotificationType(m.Type),
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

func (r *Redis) Enabled() bool {
	return r.enabled
}

func (r *Redis) Close() error {
	if !r.enabled || r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ warehousing.Notifier = (*Redis)(nil)
