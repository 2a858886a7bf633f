package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"electrohub/internal/core/httpclient"
	"electrohub/internal/core/logger"
	"electrohub/internal/features/orders/domain"
	"electrohub/internal/features/orders/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultAnalyticsMonths is used when the months query parameter is absent.
const defaultAnalyticsMonths = 6

// OrderHandler handles HTTP requests related to orders.
type OrderHandler struct {
	service ports.OrderService
}

// NewOrderHandler creates a new instance of OrderHandler.
func NewOrderHandler(s ports.OrderService) *OrderHandler {
	return &OrderHandler{
		service: s,
	}
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}

// CreateOrderResponse carries the id of a new order.
type CreateOrderResponse struct {
	ID string `json:"id"`
}

// UpdateStatusRequest is the body of PATCH /orders/{id}/status.
type UpdateStatusRequest struct {
	Status    domain.Status `json:"status"`
	Message   string        `json:"message"`
	UpdatedBy string        `json:"updated_by"`
}

// LocationRequest is a technician position ping.
type LocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ETARequest sets the technician's expected arrival.
type ETARequest struct {
	EstimatedArrival time.Time `json:"estimated_arrival"`
}

// CancelRequest is the body of POST /orders/{id}/cancel.
type CancelRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}

// CompleteRequest is the body of POST /orders/{id}/complete.
type CompleteRequest struct {
	CompletedBy string `json:"completed_by"`
}

// PaymentRequest records a payment settlement.
type PaymentRequest struct {
	Status        domain.PaymentStatus `json:"status"`
	PaidAmount    decimal.Decimal      `json:"paid_amount"`
	TransactionID string               `json:"transaction_id"`
	InvoiceURL    string               `json:"invoice_url"`
}

// RatingRequest is the customer's review.
type RatingRequest struct {
	Stars  int      `json:"stars"`
	Review string   `json:"review"`
	Images []string `json:"images"`
}

// RegisterRoutes mounts the order API on r.
func (h *OrderHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/:id", h.GetOrder)
	r.Patch("/orders/:id/status", h.UpdateStatus)
	r.Post("/orders/:id/technician", h.AssignTechnician)
	r.Put("/orders/:id/location", h.UpdateLocation)
	r.Put("/orders/:id/eta", h.SetEstimatedArrival)
	r.Post("/orders/:id/cancel", h.CancelOrder)
	r.Post("/orders/:id/complete", h.CompleteOrder)
	r.Post("/orders/:id/payment", h.RecordPayment)
	r.Post("/orders/:id/rating", h.SubmitRating)
	r.Get("/users/:id/orders", h.GetUserOrders)
	r.Get("/users/:id/statistics", h.GetStatistics)
	r.Get("/shops/:id/orders", h.GetShopOrders)
	r.Get("/shops/:id/analytics", h.GetAnalytics)
}

// CreateOrder books a new order.
// @Summary Create order
// @Description Validates the draft and stores a pending order. Returns the generated id.
// @Tags orders
// @Accept json
// @Produce json
// @Param draft body domain.Draft true "Order draft"
// @Success 201 {object} CreateOrderResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var draft domain.Draft
	if err := c.BodyParser(&draft); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	id, err := h.service.CreateOrder(requestContext(c), draft)
	if err != nil {
		return fail(c, "Failed to create order", err)
	}
	return c.Status(http.StatusCreated).JSON(CreateOrderResponse{ID: id})
}

// GetOrder handles the request to retrieve an order.
// @Summary Get Order by ID
// @Description Fetch the full order record including its tracking log.
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrderByID(requestContext(c), c.Params("id"))
	if err != nil {
		return fail(c, "Failed to fetch order", err)
	}
	return c.Status(http.StatusOK).JSON(order)
}

// UpdateStatus moves an order to a new status.
// @Summary Update order status
// @Tags orders
// @Accept json
// @Param id path string true "Order ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	err := h.service.UpdateOrderStatus(requestContext(c), c.Params("id"), req.Status, req.Message, req.UpdatedBy)
	return noContent(c, "Failed to update order status", err)
}

// AssignTechnician dispatches a technician.
// @Summary Assign technician
// @Tags orders
// @Accept json
// @Param id path string true "Order ID"
// @Param technician body domain.Technician true "Technician"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/technician [post]
func (h *OrderHandler) AssignTechnician(c *fiber.Ctx) error {
	var tech domain.Technician
	if err := c.BodyParser(&tech); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	err := h.service.AssignTechnician(requestContext(c), c.Params("id"), &tech)
	return noContent(c, "Failed to assign technician", err)
}

// UpdateLocation records the technician's position.
// @Summary Update technician location
// @Tags tracking
// @Accept json
// @Param id path string true "Order ID"
// @Param location body LocationRequest true "Position"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/location [put]
func (h *OrderHandler) UpdateLocation(c *fiber.Ctx) error {
	var req LocationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	err := h.service.UpdateTechnicianLocation(requestContext(c), c.Params("id"), req.Lat, req.Lng)
	return noContent(c, "Failed to update technician location", err)
}

// SetEstimatedArrival records the technician's ETA.
// @Summary Set estimated arrival
// @Tags tracking
// @Accept json
// @Param id path string true "Order ID"
// @Param eta body ETARequest true "Estimated arrival"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/eta [put]
func (h *OrderHandler) SetEstimatedArrival(c *fiber.Ctx) error {
	var req ETARequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	err := h.service.SetEstimatedArrival(requestContext(c), c.Params("id"), req.EstimatedArrival)
	return noContent(c, "Failed to set estimated arrival", err)
}

// CancelOrder cancels an order.
// @Summary Cancel order
// @Tags orders
// @Accept json
// @Param id path string true "Order ID"
// @Param request body CancelRequest true "Reason"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	var req CancelRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	err := h.service.CancelOrder(requestContext(c), c.Params("id"), req.Reason, req.CancelledBy)
	return noContent(c, "Failed to cancel order", err)
}

// CompleteOrder marks an order completed.
// @Summary Complete order
// @Tags orders
// @Accept json
// @Param id path string true "Order ID"
// @Param request body CompleteRequest true "Completed by"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/complete [post]
func (h *OrderHandler) CompleteOrder(c *fiber.Ctx) error {
	var req CompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	err := h.service.CompleteOrder(requestContext(c), c.Params("id"), req.CompletedBy)
	return noContent(c, "Failed to complete order", err)
}

// RecordPayment updates the payment settlement.
// @Summary Record payment
// @Tags orders
// @Accept json
// @Param id path string true "Order ID"
// @Param payment body PaymentRequest true "Payment"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/payment [post]
func (h *OrderHandler) RecordPayment(c *fiber.Ctx) error {
	var req PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	err := h.service.RecordPayment(requestContext(c), c.Params("id"), domain.RecordPayment{
		Status:        req.Status,
		PaidAmount:    req.PaidAmount,
		TransactionID: req.TransactionID,
		InvoiceURL:    req.InvoiceURL,
	})
	return noContent(c, "Failed to record payment", err)
}

// SubmitRating attaches the customer's review.
// @Summary Rate order
// @Tags orders
// @Accept json
// @Param id path string true "Order ID"
// @Param rating body RatingRequest true "Rating"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/rating [post]
func (h *OrderHandler) SubmitRating(c *fiber.Ctx) error {
	var req RatingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}
	err := h.service.SubmitOrderRating(requestContext(c), c.Params("id"), domain.Rating{
		Stars:  req.Stars,
		Review: req.Review,
		Images: req.Images,
	})
	return noContent(c, "Failed to submit rating", err)
}

// GetUserOrders lists a user's orders.
// @Summary List user orders
// @Description Customers see orders they booked, shop owners orders placed with their shop. Newest first.
// @Tags orders
// @Produce json
// @Param id path string true "User ID"
// @Param role query string true "customer or shop_owner"
// @Param status query string false "Status filter"
// @Success 200 {array} domain.Order
// @Failure 400 {object} ErrorResponse
// @Router /users/{id}/orders [get]
func (h *OrderHandler) GetUserOrders(c *fiber.Ctx) error {
	role := domain.Role(c.Query("role"))
	status := domain.Status(c.Query("status"))

	orders, err := h.service.GetOrdersByStatus(requestContext(c), c.Params("id"), role, status)
	if err != nil {
		return fail(c, "Failed to list user orders", err)
	}
	return c.JSON(nonNil(orders))
}

// GetStatistics returns per-status counts for a user.
// @Summary User order statistics
// @Tags analytics
// @Produce json
// @Param id path string true "User ID"
// @Param role query string true "customer or shop_owner"
// @Success 200 {object} domain.Statistics
// @Failure 400 {object} ErrorResponse
// @Router /users/{id}/statistics [get]
func (h *OrderHandler) GetStatistics(c *fiber.Ctx) error {
	stats, err := h.service.GetOrderStatistics(requestContext(c), c.Params("id"), domain.Role(c.Query("role")))
	if err != nil {
		return fail(c, "Failed to compute statistics", err)
	}
	return c.JSON(stats)
}

// GetShopOrders lists a shop's orders.
// @Summary List shop orders
// @Tags orders
// @Produce json
// @Param id path string true "Shop ID"
// @Param status query string false "Status filter"
// @Param limit query int false "Maximum number of orders"
// @Success 200 {array} domain.Order
// @Failure 400 {object} ErrorResponse
// @Router /shops/{id}/orders [get]
func (h *OrderHandler) GetShopOrders(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return badRequest(c, err.Error())
	}

	orders, err := h.service.GetShopOrders(requestContext(c), c.Params("id"), domain.Status(c.Query("status")), limit)
	if err != nil {
		return fail(c, "Failed to list shop orders", err)
	}
	return c.JSON(nonNil(orders))
}

// GetAnalytics summarises a shop's trailing months.
// @Summary Shop analytics
// @Tags analytics
// @Produce json
// @Param id path string true "Shop ID"
// @Param months query int false "Trailing months including the current one" default(6)
// @Success 200 {object} domain.Analytics
// @Failure 400 {object} ErrorResponse
// @Router /shops/{id}/analytics [get]
func (h *OrderHandler) GetAnalytics(c *fiber.Ctx) error {
	months, err := queryInt(c, "months", defaultAnalyticsMonths)
	if err != nil {
		return badRequest(c, err.Error())
	}

	analytics, err := h.service.GetOrderAnalytics(requestContext(c), c.Params("id"), months)
	if err != nil {
		return fail(c, "Failed to compute analytics", err)
	}
	return c.JSON(analytics)
}

func rayID(c *fiber.Ctx) string {
	id, ok := c.Locals("requestid").(string)
	if !ok {
		return "unknown"
	}
	return id
}

// requestContext carries the ray id into outbound calls made on behalf of the request.
func requestContext(c *fiber.Ctx) context.Context {
	return httpclient.WithRayID(c.UserContext(), rayID(c))
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + ": must be an integer")
	}
	return n, nil
}

func nonNil(orders []*domain.Order) []*domain.Order {
	if orders == nil {
		return []*domain.Order{}
	}
	return orders
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
		Message: msg,
		RayID:   rayID(c),
	})
}

func noContent(c *fiber.Ctx, logMsg string, err error) error {
	if err != nil {
		return fail(c, logMsg, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// fail maps domain errors to HTTP statuses.
func fail(c *fiber.Ctx, logMsg string, err error) error {
	id := rayID(c)
	status := http.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
		msg = "Order not found"
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrIllegalTransition), errors.Is(err, domain.ErrOrderExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
		msg = "Order store unavailable, retry later"
	}

	fields := []zap.Field{
		zap.String("order_id", c.Params("id")),
		zap.String("ray_id", id),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Get().Error(logMsg, fields...)
	} else {
		logger.Get().Info(logMsg, fields...)
	}

	return c.Status(status).JSON(ErrorResponse{
		Message: msg,
		RayID:   id,
	})
}
