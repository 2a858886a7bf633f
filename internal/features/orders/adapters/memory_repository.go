package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"electrohub/internal/core/logger"
	"electrohub/internal/features/orders/domain"
	"electrohub/internal/features/orders/ports"

	"go.uber.org/zap"
)

// MemoryOrderRepository keeps orders in process memory. Intended for development and tests.
type MemoryOrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	publisher ports.ChangePublisher
}

// NewMemoryOrderRepository creates an empty store. Every stored snapshot is handed to
// publisher, which may be nil.
func NewMemoryOrderRepository(publisher ports.ChangePublisher) *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders:    make(map[string]*domain.Order),
		publisher: publisher,
	}
}

func (r *MemoryOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return domain.ErrOrderExists
	}
	stored := order.Clone()
	r.orders[order.ID] = stored
	r.publish(ctx, stored)
	return nil
}

func (r *MemoryOrderRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.orders[id].Clone(), nil
}

func (r *MemoryOrderRepository) List(_ context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Order{}
	for _, o := range r.orders {
		if filter.Matches(o) {
			out = append(out, o.Clone())
		}
	}
	domain.SortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Update applies muts to a copy and swaps it in only if every mutation succeeds.
func (r *MemoryOrderRepository) Update(ctx context.Context, id string, at time.Time, muts ...domain.Mutation) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	next := current.Clone()
	if err := domain.ApplyMutations(next, at, muts...); err != nil {
		if errors.Is(err, domain.ErrAlreadyApplied) {
			return current.Clone(), nil
		}
		return nil, err
	}
	r.orders[id] = next
	r.publish(ctx, next)
	return next.Clone(), nil
}

func (r *MemoryOrderRepository) SetLocation(ctx context.Context, id string, ping domain.LocationPing, requireActive bool) (*domain.Order, error) {
	muts := []domain.Mutation{domain.SetCurrentLocation{Lat: ping.Lat, Lng: ping.Lng}}
	if requireActive {
		muts = append([]domain.Mutation{domain.RequireActive{}}, muts...)
	}
	return r.Update(ctx, id, ping.Timestamp, muts...)
}

func (r *MemoryOrderRepository) Ping(context.Context) error {
	return nil
}

// publish runs under the write lock so subscribers see snapshots in revision order.
func (r *MemoryOrderRepository) publish(ctx context.Context, o *domain.Order) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, o.Clone()); err != nil {
		logger.Named("orders.memory").Warn("Failed to publish order change",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}
