package handler

import (
	"bufio"
	"context"
	"errors"
	"time"

	"electrohub/internal/core/logger"
	orders "electrohub/internal/features/orders/domain"
	"electrohub/internal/features/tracking/domain"
	"electrohub/internal/features/tracking/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Subscriber opens order subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, id string) (*service.Subscription, error)
}

// TrackingHandler streams live order snapshots as server-sent events.
type TrackingHandler struct {
	subscriber  Subscriber
	maxDuration time.Duration
	heartbeat   time.Duration
}

// NewTrackingHandler creates a handler whose streams end after maxDuration and send a
// heartbeat comment every heartbeat interval.
func NewTrackingHandler(subscriber Subscriber, maxDuration, heartbeat time.Duration) *TrackingHandler {
	return &TrackingHandler{
		subscriber:  subscriber,
		maxDuration: maxDuration,
		heartbeat:   heartbeat,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// StreamOrder godoc
// @Summary Stream live order updates
// @Description Server-sent events: a "snapshot" event with the full order on subscribe and after every change, or "not_found" while the order does not exist.
// @Tags tracking
// @Produce text/event-stream
// @Param id path string true "Order ID"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /orders/{id}/stream [get]
func (h *TrackingHandler) StreamOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	rayID, ok := c.Locals("requestid").(string)
	if !ok {
		rayID = "unknown"
	}

	// The stream outlives the fiber handler, so it cannot use the request context.
	ctx, cancel := context.WithTimeout(context.Background(), h.maxDuration)
	sub, err := h.subscriber.Subscribe(ctx, orderID)
	if err != nil {
		cancel()
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, orders.ErrValidation):
			status = fiber.StatusBadRequest
		case errors.Is(err, orders.ErrBackendUnavailable):
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(ErrorResponse{Message: err.Error(), RayID: rayID})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := logger.Named("tracking.stream").With(zap.String("order_id", orderID), zap.String("ray_id", rayID))
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case order, ok := <-sub.Updates():
				if !ok {
					return
				}
				ev, err := domain.SnapshotEvent(order)
				if err != nil {
					log.Error("Failed to encode snapshot", zap.Error(err))
					return
				}
				if _, err := ev.WriteTo(w); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := w.Write(domain.Heartbeat); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				log.Debug("Stream client went away", zap.Error(err))
				return
			}
		}
	}))

	return nil
}
