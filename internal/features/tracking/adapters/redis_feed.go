package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"electrohub/internal/core/logger"
	orderadapters "electrohub/internal/features/orders/adapters"
	"electrohub/internal/features/orders/domain"
	"electrohub/internal/features/orders/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisChangeFeed relays order snapshots published by the Redis order store into a local publisher.
// Every API instance runs one so subscribers see writes made through any instance.
type RedisChangeFeed struct {
	client *redis.Client
	target ports.ChangePublisher
	logger *zap.Logger
}

func NewRedisChangeFeed(client *redis.Client, target ports.ChangePublisher) *RedisChangeFeed {
	return &RedisChangeFeed{
		client: client,
		target: target,
		logger: logger.Named("tracking.feed"),
	}
}

// Run consumes the feed until ctx is cancelled. ready, if not nil, is closed once the
// pattern subscription is confirmed.
func (f *RedisChangeFeed) Run(ctx context.Context, ready chan<- struct{}) error {
	pattern := orderadapters.ChangeChannelPrefix + "*"
	pubsub := f.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}
	if ready != nil {
		close(ready)
	}
	f.logger.Info("Order change feed started", zap.String("pattern", pattern))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var order domain.Order
			if err := json.Unmarshal([]byte(msg.Payload), &order); err != nil {
				f.logger.Warn("Dropping malformed order change", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if err := f.target.Publish(ctx, &order); err != nil {
				f.logger.Warn("Failed to relay order change", zap.String("order_id", order.ID), zap.Error(err))
			}
		}
	}
}
