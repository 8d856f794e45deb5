package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/baharkarakas/coinmatch/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const DefaultChannelPrefix = "coins:balance:"

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type submitter interface {
	Submit(f func()) bool
}

// RedisBridge republishes balance changes on a per-user redis channel
// <prefix><user id>. Publishing happens on the worker pool.
type RedisBridge struct {
	client  redisPublisher
	pool    submitter
	prefix  string
	timeout time.Duration
	log     *slog.Logger
}

func NewRedisBridge(client redisPublisher, pool submitter, prefix string, log *slog.Logger) *RedisBridge {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisBridge{client: client, pool: pool, prefix: prefix, timeout: 2 * time.Second, log: log}
}

// Channel is the redis channel that carries changes for userID.
func (b *RedisBridge) Channel(userID string) string { return b.prefix + userID }

func (b *RedisBridge) Publish(c BalanceChange) {
	ok := b.pool.Submit(func() {
		payload, err := json.Marshal(c)
		if err != nil {
			b.log.Error("encode balance change", "err", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.client.Publish(ctx, b.Channel(c.UserID), payload).Err(); err != nil {
			metrics.BalanceEventsDropped.WithLabelValues("redis").Inc()
			b.log.Warn("redis publish failed", "user_id", c.UserID, "err", err)
		}
	})
	if !ok {
		metrics.BalanceEventsDropped.WithLabelValues("redis").Inc()
	}
}

// NewRedisClient parses url (redis://...) and checks the server responds.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
