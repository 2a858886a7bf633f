package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"electrohub/internal/core/logger"
	"electrohub/internal/features/orders/domain"
	"electrohub/internal/features/orders/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Option configures an OrderService.
type Option func(*OrderService)

// WithStrictTransitions makes terminal states final. When off, status changes out of
// completed, cancelled and refunded are accepted and ratings may be overwritten.
func WithStrictTransitions(strict bool) Option {
	return func(s *OrderService) { s.strict = strict }
}

// WithRetry sets how transient backend failures are retried.
func WithRetry(maxRetries uint64, baseDelay time.Duration) Option {
	return func(s *OrderService) {
		s.retry = RetryPolicy{MaxRetries: maxRetries, BaseDelay: baseDelay}
	}
}

// WithNotifyTimeout bounds each status-change notification.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.nowFunc = now }
}

// WithIDGenerator overrides the UUID order id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *OrderService) { s.newID = gen }
}

// OrderService implements the order lifecycle: booking, status transitions, technician
// dispatch, location pings, ratings and the read-side aggregates.
type OrderService struct {
	repo     ports.OrderRepository
	shops    ports.ShopDirectory
	chats    ports.ChatRooms
	notifier ports.Notifier

	strict        bool
	retry         RetryPolicy
	notifyTimeout time.Duration
	nowFunc       func() time.Time
	newID         func() string
	logger        *zap.Logger

	// notifications still being delivered
	pending sync.WaitGroup
}

const defaultNotifyTimeout = 10 * time.Second

// NewOrderService creates an OrderService with strict transitions and default retries.
func NewOrderService(repo ports.OrderRepository, shops ports.ShopDirectory, chats ports.ChatRooms, notifier ports.Notifier, opts ...Option) *OrderService {
	s := &OrderService{
		repo:     repo,
		shops:    shops,
		chats:    chats,
		notifier: notifier,
		strict:   true,
		retry:    DefaultRetryPolicy(),
		nowFunc:  time.Now,
		newID:    uuid.NewString,
		logger:   logger.Named("orders"),

		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close waits for notifications still in flight.
func (s *OrderService) Close() {
	s.pending.Wait()
}

// StrictTransitions reports whether terminal states are enforced.
func (s *OrderService) StrictTransitions() bool {
	return s.strict
}

// CreateOrder validates and stores a new pending order and returns its id.
// The shop booking counter and chat room are best-effort: their failures are logged, not returned.
func (s *OrderService) CreateOrder(ctx context.Context, draft domain.Draft) (string, error) {
	if err := draft.Validate(); err != nil {
		return "", err
	}

	id := s.newID()
	order := domain.NewOrder(id, draft, s.nowFunc())

	attempt := 0
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := s.repo.Create(ctx, order)
		// A retried create that finds its own id means the earlier attempt landed.
		if attempt > 1 && errors.Is(err, domain.ErrOrderExists) {
			return nil
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("service: failed to create order: %w", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", id),
		zap.String("customer_id", order.CustomerID),
		zap.String("shop_id", order.ShopID),
		zap.String("amount", order.Payment.Amount.String()),
	)

	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.shops.IncrementBookings(ctx, order.ShopID)
	}); err != nil {
		s.logger.Warn("Failed to increment shop bookings", zap.String("order_id", id), zap.String("shop_id", order.ShopID), zap.Error(err))
	}
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.chats.CreateOrderChat(ctx, id, order.CustomerID, order.ShopID)
	}); err != nil {
		s.logger.Warn("Failed to create order chat", zap.String("order_id", id), zap.Error(err))
	}

	return id, nil
}

// GetOrderByID returns the order or domain.ErrOrderNotFound.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// GetUserOrders lists a user's orders, newest first. Customers see orders they booked,
// shop owners see orders placed with their shop.
func (s *OrderService) GetUserOrders(ctx context.Context, userID string, role domain.Role) ([]*domain.Order, error) {
	return s.GetOrdersByStatus(ctx, userID, role, "")
}

// GetOrdersByStatus is GetUserOrders restricted to one status. An empty status matches all.
func (s *OrderService) GetOrdersByStatus(ctx context.Context, userID string, role domain.Role, status domain.Status) ([]*domain.Order, error) {
	filter, err := userFilter(userID, role)
	if err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, domain.NewValidationError(fmt.Sprintf("status: unknown value %q", status))
	}
	filter.Status = status
	return s.list(ctx, filter)
}

// GetShopOrders lists a shop's orders, newest first, optionally by status and capped at limit.
func (s *OrderService) GetShopOrders(ctx context.Context, shopID string, status domain.Status, limit int) ([]*domain.Order, error) {
	if shopID == "" {
		return nil, domain.NewValidationError("shop_id: required")
	}
	if status != "" && !status.Valid() {
		return nil, domain.NewValidationError(fmt.Sprintf("status: unknown value %q", status))
	}
	if limit < 0 {
		return nil, domain.NewValidationError("limit: must not be negative")
	}
	return s.list(ctx, domain.ListFilter{ShopID: shopID, Status: status, Limit: limit})
}

// UpdateOrderStatus moves an order to status and appends a tracking event.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status domain.Status, message, updatedBy string) error {
	if !status.Valid() {
		return domain.NewValidationError(fmt.Sprintf("status: unknown value %q", status))
	}
	_, err := s.transition(ctx, id, domain.RecordStatus{Status: status, Message: message, UpdatedBy: updatedBy})
	return err
}

// AssignTechnician dispatches a technician. The order is forced into technician_assigned
// whatever its current status, unless strict transitions forbid leaving a terminal state.
func (s *OrderService) AssignTechnician(ctx context.Context, id string, technician *domain.Technician) error {
	if err := technician.Validate(); err != nil {
		return err
	}
	_, err := s.transition(ctx, id,
		domain.AssignTechnician{Technician: *technician},
		domain.RecordStatus{
			Status:    domain.StatusTechnicianAssigned,
			Message:   fmt.Sprintf("Technician %s assigned to your order", technician.DisplayName()),
			UpdatedBy: "system",
		},
	)
	return err
}

// UpdateTechnicianLocation records a position ping. It never touches status or the tracking log.
// A repeated ping carries the same position and timestamp, so retrying it is harmless.
func (s *OrderService) UpdateTechnicianLocation(ctx context.Context, id string, lat, lng float64) error {
	if err := (domain.Coordinates{Lat: lat, Lng: lng}).Validate(); err != nil {
		return err
	}
	if id == "" {
		return domain.NewValidationError("order_id: required")
	}
	ping := domain.LocationPing{Lat: lat, Lng: lng, Timestamp: s.nowFunc()}

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		_, err := s.repo.SetLocation(ctx, id, ping, s.strict)
		return err
	})
	if err != nil {
		return fmt.Errorf("service: failed to update location of order %s: %w", id, err)
	}
	return nil
}

// SetEstimatedArrival records when the technician is expected on site.
func (s *OrderService) SetEstimatedArrival(ctx context.Context, id string, eta time.Time) error {
	if eta.IsZero() {
		return domain.NewValidationError("estimated_arrival: required")
	}
	_, err := s.update(ctx, id, s.guarded(domain.SetEstimatedArrival{At: eta})...)
	return err
}

// CancelOrder moves the order to cancelled with the reason in the tracking message.
func (s *OrderService) CancelOrder(ctx context.Context, id, reason, cancelledBy string) error {
	return s.UpdateOrderStatus(ctx, id, domain.StatusCancelled, "Order cancelled: "+reason, cancelledBy)
}

// CompleteOrder moves the order to completed and stamps the completion date.
func (s *OrderService) CompleteOrder(ctx context.Context, id, completedBy string) error {
	_, err := s.transition(ctx, id,
		domain.MarkCompleted{},
		domain.RecordStatus{Status: domain.StatusCompleted, Message: "Order completed", UpdatedBy: completedBy},
	)
	return err
}

// RecordPayment updates the payment status and paid amount. The booked amount never changes.
// Payments settle independently of the lifecycle, so terminal orders accept them too.
func (s *OrderService) RecordPayment(ctx context.Context, id string, payment domain.RecordPayment) error {
	_, err := s.update(ctx, id, payment)
	return err
}

// SubmitOrderRating attaches the customer's review. Status is unchanged.
func (s *OrderService) SubmitOrderRating(ctx context.Context, id string, rating domain.Rating) error {
	if err := rating.Validate(); err != nil {
		return err
	}
	muts := []domain.Mutation{domain.AttachRating{Rating: rating}}
	if s.strict {
		muts = append([]domain.Mutation{domain.RequireRateable{}}, muts...)
	}
	_, err := s.update(ctx, id, muts...)
	return err
}

// GetOrderStatistics counts a user's orders per status; shop owners also get revenue.
func (s *OrderService) GetOrderStatistics(ctx context.Context, userID string, role domain.Role) (domain.Statistics, error) {
	orders, err := s.GetUserOrders(ctx, userID, role)
	if err != nil {
		return domain.Statistics{}, err
	}
	return domain.ComputeStatistics(orders, role), nil
}

// GetOrderAnalytics summarises a shop's orders over the trailing months, current month included.
func (s *OrderService) GetOrderAnalytics(ctx context.Context, shopID string, months int) (domain.Analytics, error) {
	if shopID == "" {
		return domain.Analytics{}, domain.NewValidationError("shop_id: required")
	}
	if months < 1 {
		return domain.Analytics{}, domain.NewValidationError("months: must be at least 1")
	}
	now := s.nowFunc()
	orders, err := s.list(ctx, domain.ListFilter{
		ShopID:      shopID,
		CreatedFrom: domain.AnalyticsWindowStart(now, months),
	})
	if err != nil {
		return domain.Analytics{}, err
	}
	return domain.ComputeAnalytics(orders, now, months), nil
}

// Ping checks the order store.
func (s *OrderService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *OrderService) list(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

// transition applies status-changing mutations and notifies on the resulting event.
func (s *OrderService) transition(ctx context.Context, id string, muts ...domain.Mutation) (*domain.Order, error) {
	order, err := s.update(ctx, id, s.guarded(muts...)...)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", id),
		zap.String("status", string(order.Status)),
		zap.Int64("revision", order.Revision),
	)
	if ev := order.LastEvent(); ev != nil {
		s.notify(ctx, order.Clone(), *ev)
	}
	return order, nil
}

// notify delivers in the background. The request may finish first, so the notifier gets a
// context that keeps the request values but not its cancellation.
func (s *OrderService) notify(ctx context.Context, order *domain.Order, ev domain.StatusEvent) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyStatusChange(ctx, order, ev); err != nil {
			s.logger.Warn("Failed to send order notification",
				zap.String("order_id", order.ID), zap.String("status", string(ev.Status)), zap.Error(err))
		}
	})
}

// update runs muts under one write key, so a retry after a lost reply finds the write already
// applied instead of repeating it.
func (s *OrderService) update(ctx context.Context, id string, muts ...domain.Mutation) (*domain.Order, error) {
	if id == "" {
		return nil, domain.NewValidationError("order_id: required")
	}
	at := s.nowFunc()
	muts = append([]domain.Mutation{domain.WriteOnce{Key: uuid.NewString()}}, muts...)

	var order *domain.Order
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.Update(ctx, id, at, muts...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to update order %s: %w", id, err)
	}
	return order, nil
}

// guarded prefixes muts with the terminal-state check when strict transitions are on.
func (s *OrderService) guarded(muts ...domain.Mutation) []domain.Mutation {
	if !s.strict {
		return muts
	}
	return append([]domain.Mutation{domain.RequireActive{}}, muts...)
}

func userFilter(userID string, role domain.Role) (domain.ListFilter, error) {
	if userID == "" {
		return domain.ListFilter{}, domain.NewValidationError("user_id: required")
	}
	switch role {
	case domain.RoleCustomer:
		return domain.ListFilter{CustomerID: userID}, nil
	case domain.RoleShopOwner:
		return domain.ListFilter{ShopID: userID}, nil
	default:
		return domain.ListFilter{}, domain.NewValidationError(fmt.Sprintf("role: unknown value %q", role))
	}
}
