package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"electrohub/internal/core/logger"
	"electrohub/internal/features/orders/domain"
	"electrohub/internal/features/tracking/ports"

	"go.uber.org/zap"
)

// TrackingService opens live subscriptions to orders.
type TrackingService struct {
	hub    *Hub
	orders ports.SnapshotSource
	logger *zap.Logger
}

func NewTrackingService(hub *Hub, orders ports.SnapshotSource) *TrackingService {
	return &TrackingService{
		hub:    hub,
		orders: orders,
		logger: logger.Named("tracking"),
	}
}

// Subscribe returns a subscription whose first snapshot is the order's current state,
// or nil if it does not exist. Cancelling ctx closes the subscription.
func (s *TrackingService) Subscribe(ctx context.Context, id string) (*Subscription, error) {
	if id == "" {
		return nil, domain.NewValidationError("order_id: required")
	}

	// Register before loading so no change between the two is missed.
	sub := s.hub.register(id)
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("tracking: failed to load order %s: %w", id, err)
	}
	sub.offer(order)

	stop := context.AfterFunc(ctx, sub.Close)
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()

	s.logger.Debug("Order subscription opened",
		zap.String("order_id", id),
		zap.Int("subscribers", s.hub.Subscribers(id)),
	)
	return sub, nil
}

// SubscribeFunc calls fn with every snapshot until the returned unsubscribe is called or ctx ends.
// Calls run one at a time on a separate goroutine. unsubscribe does not wait for them: a call in
// progress, or one already dispatched when unsubscribe returns, may still run to completion. After
// that, fn is not called again. fn may call unsubscribe itself.
func (s *TrackingService) SubscribeFunc(ctx context.Context, id string, fn func(*domain.Order)) (func(), error) {
	sub, err := s.Subscribe(ctx, id)
	if err != nil {
		return nil, err
	}

	var stopped atomic.Bool
	go func() {
		for order := range sub.Updates() {
			if stopped.Load() {
				return
			}
			fn(order)
		}
	}()

	return func() {
		stopped.Store(true)
		sub.Close()
	}, nil
}
