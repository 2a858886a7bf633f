package ports

import (
	"context"
	"time"

	"electrohub/internal/features/orders/domain"
)

// OrderRepository is the secondary port for order persistence.
// Implementations must apply mutations atomically against the latest stored state.
type OrderRepository interface {
	// Create stores a new order. Returns domain.ErrOrderExists if the id is taken.
	Create(ctx context.Context, order *domain.Order) error
	// Get returns the order or (nil, nil) when it does not exist.
	Get(ctx context.Context, id string) (*domain.Order, error)
	// List returns matching orders, newest first, capped by filter.Limit.
	// The filter must name a customer or a shop.
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error)
	// Update applies muts at time at and returns the stored result.
	// Returns domain.ErrOrderNotFound if the id is unknown. When a leading domain.WriteOnce key
	// was already applied, it returns the stored order unchanged and no error.
	Update(ctx context.Context, id string, at time.Time, muts ...domain.Mutation) (*domain.Order, error)
	// SetLocation writes the technician position without rewriting the rest of the order.
	// With requireActive it fails with domain.ErrIllegalTransition on terminal orders.
	SetLocation(ctx context.Context, id string, ping domain.LocationPing, requireActive bool) (*domain.Order, error)
	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

// ChangePublisher receives every stored snapshot of an order.
type ChangePublisher interface {
	Publish(ctx context.Context, order *domain.Order) error
}

// ShopDirectory is the slice of the shop registry the order flow writes to.
type ShopDirectory interface {
	IncrementBookings(ctx context.Context, shopID string) error
}

// ChatRooms opens the conversation attached to an order.
type ChatRooms interface {
	CreateOrderChat(ctx context.Context, orderID, customerID, shopID string) error
}

// Notifier delivers status change notifications to the parties of an order.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, order *domain.Order, event domain.StatusEvent) error
}

// OrderService is the primary port driven by the HTTP handler.
type OrderService interface {
	CreateOrder(ctx context.Context, draft domain.Draft) (string, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetUserOrders(ctx context.Context, userID string, role domain.Role) ([]*domain.Order, error)
	GetOrdersByStatus(ctx context.Context, userID string, role domain.Role, status domain.Status) ([]*domain.Order, error)
	GetShopOrders(ctx context.Context, shopID string, status domain.Status, limit int) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.Status, message, updatedBy string) error
	AssignTechnician(ctx context.Context, id string, technician *domain.Technician) error
	UpdateTechnicianLocation(ctx context.Context, id string, lat, lng float64) error
	SetEstimatedArrival(ctx context.Context, id string, eta time.Time) error
	CancelOrder(ctx context.Context, id, reason, cancelledBy string) error
	CompleteOrder(ctx context.Context, id, completedBy string) error
	RecordPayment(ctx context.Context, id string, payment domain.RecordPayment) error
	SubmitOrderRating(ctx context.Context, id string, rating domain.Rating) error
	GetOrderStatistics(ctx context.Context, userID string, role domain.Role) (domain.Statistics, error)
	GetOrderAnalytics(ctx context.Context, shopID string, months int) (domain.Analytics, error)
	Ping(ctx context.Context) error
}
