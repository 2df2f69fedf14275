package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/customs-les/case-engine/access"
)

// RedisConfig holds connection settings for the notification broker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces channels and inbox keys.
	Prefix string
	// InboxSize caps each user's inbox list. Zero disables the inbox.
	InboxSize int64
}

// RedisNotifier publishes notifications on "<prefix>:notify:<userID>" and
// pushes them onto "<prefix>:inbox:<userID>".
type RedisNotifier struct {
	rdb       *redis.Client
	prefix    string
	inboxSize int64
}

// DialRedis connects and pings. The caller decides whether to run without
// Redis when this fails.
func DialRedis(cfg RedisConfig) (*RedisNotifier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", cfg.Addr, err)
	}
	return NewRedisNotifier(rdb, cfg.Prefix, cfg.InboxSize), nil
}

// NewRedisNotifier wraps an existing client.
func NewRedisNotifier(rdb *redis.Client, prefix string, inboxSize int64) *RedisNotifier {
	if prefix == "" {
		prefix = "case-engine"
	}
	return &RedisNotifier{rdb: rdb, prefix: prefix, inboxSize: inboxSize}
}

func (r *RedisNotifier) Close() error {
	return r.rdb.Close()
}

func (r *RedisNotifier) channel(userID string) string {
	return r.prefix + ":notify:" + userID
}

func (r *RedisNotifier) inbox(userID string) string {
	return r.prefix + ":inbox:" + userID
}

func (r *RedisNotifier) Notify(ctx context.Context, n access.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, r.channel(n.UserID), payload)
		if r.inboxSize > 0 {
			key := r.inbox(n.UserID)
			pipe.LPush(ctx, key, payload)
			pipe.LTrim(ctx, key, 0, r.inboxSize-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish notification to %s: %w", n.UserID, err)
	}
	return nil
}

// Inbox returns up to limit of the user's most recent notifications, newest first.
func (r *RedisNotifier) Inbox(ctx context.Context, userID string, limit int64) ([]access.Notification, error) {
	if limit <= 0 {
		limit = r.inboxSize
	}
	raw, err := r.rdb.LRange(ctx, r.inbox(userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read inbox of %s: %w", userID, err)
	}
	out := make([]access.Notification, 0, len(raw))
	for _, item := range raw {
		var n access.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("decode inbox entry: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}
