package ports

import (
	"context"

	"electrohub/internal/features/orders/domain"
)

// SnapshotSource loads the current state of an order.
type SnapshotSource interface {
	// Get returns the order or (nil, nil) when it does not exist.
	Get(ctx context.Context, id string) (*domain.Order, error)
}
