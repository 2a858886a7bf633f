package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"electrohub/internal/core/httpclient"
	"electrohub/internal/core/logger"
	"electrohub/internal/features/orders/domain"

	"go.uber.org/zap"
)

// LogNotifier writes status changes to the log. Used when no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

func (n *LogNotifier) NotifyStatusChange(_ context.Context, order *domain.Order, event domain.StatusEvent) error {
	n.logger.Info("Order status notification",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.String("shop_id", order.ShopID),
		zap.String("status", string(event.Status)),
		zap.String("message", event.Message),
	)
	return nil
}

// StatusNotification is the webhook request body.
type StatusNotification struct {
	OrderID    string        `json:"order_id"`
	CustomerID string        `json:"customer_id"`
	ShopID     string        `json:"shop_id"`
	Status     domain.Status `json:"status"`
	Message    string        `json:"message"`
	UpdatedBy  string        `json:"updated_by"`
	Timestamp  time.Time     `json:"timestamp"`
}

// WebhookNotifier POSTs status changes to an external endpoint that fans them out to
// customers and shop owners.
type WebhookNotifier struct {
	client *http.Client
	url    string
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		client: httpclient.NewClient(timeout),
		url:    url,
	}
}

func (n *WebhookNotifier) NotifyStatusChange(ctx context.Context, order *domain.Order, event domain.StatusEvent) error {
	body, err := json.Marshal(StatusNotification{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ShopID:     order.ShopID,
		Status:     event.Status,
		Message:    event.Message,
		UpdatedBy:  event.UpdatedBy,
		Timestamp:  event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status: %d", resp.StatusCode)
	}
	return nil
}
