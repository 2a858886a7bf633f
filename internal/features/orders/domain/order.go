package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType classifies the transaction an order represents.
type OrderType string

const (
	OrderTypeRepair       OrderType = "repair"
	OrderTypeService      OrderType = "service"
	OrderTypePurchase     OrderType = "purchase"
	OrderTypeInstallation OrderType = "installation"
)

// PaymentStatus is the settlement state of an order's payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodUPI    PaymentMethod = "upi"
)

// LocationType tells whether the service happens at the shop or at the customer's home.
type LocationType string

const (
	LocationTypeShop LocationType = "shop"
	LocationTypeHome LocationType = "home"
)

const (
	// PlatformFeeRate is the share of the payment amount kept by the platform.
	PlatformFeeRate = "0.10"
	// TaxRate is the GST applied on the payment amount.
	TaxRate = "0.18"
)

// Coordinates is a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CostRange is the estimated price bracket quoted for a service.
type CostRange struct {
	Min      decimal.Decimal `json:"min"`
	Max      decimal.Decimal `json:"max"`
	Currency string          `json:"currency"`
}

// ServiceDetails describes the work requested by the customer.
type ServiceDetails struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Description string `json:"description"`
	// EstimatedHours is the expected duration of the job.
	EstimatedHours float64   `json:"estimated_hours"`
	EstimatedCost  CostRange `json:"estimated_cost"`
}

// Item is a purchased line item.
type Item struct {
	ProductID      string            `json:"product_id"`
	Name           string            `json:"name"`
	Quantity       int               `json:"quantity"`
	UnitPrice      decimal.Decimal   `json:"unit_price"`
	TotalPrice     decimal.Decimal   `json:"total_price"`
	Specifications map[string]string `json:"specifications,omitempty"`
}

// Location is where the service takes place.
type Location struct {
	Type        LocationType `json:"type"`
	Address     string       `json:"address"`
	City        string       `json:"city"`
	Pincode     string       `json:"pincode"`
	Landmark    string       `json:"landmark,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Schedule holds the requested and actual service times.
type Schedule struct {
	PreferredDate string     `json:"preferred_date"`
	PreferredTime string     `json:"preferred_time"`
	ScheduledDate *time.Time `json:"scheduled_date"`
	CompletedDate *time.Time `json:"completed_date"`
}

// Payment tracks what is owed and what was paid.
type Payment struct {
	Status PaymentStatus `json:"status"`
	Method PaymentMethod `json:"method"`
	// Amount is fixed at creation.
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
	InvoiceURL    string          `json:"invoice_url,omitempty"`
}

// Technician is the field worker dispatched to an order.
type Technician struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Phone    string       `json:"phone"`
	PhotoURL string       `json:"photo_url"`
	Rating   float64      `json:"rating"`
	Location *Coordinates `json:"location,omitempty"`
}

// StatusEvent is one entry of the tracking log.
type StatusEvent struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	UpdatedBy string    `json:"updated_by"`
}

// LocationPing is the last known technician position.
type LocationPing struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracking is the live part of an order: its status history and technician position.
type Tracking struct {
	StatusUpdates    []StatusEvent `json:"status_updates"`
	CurrentLocation  *LocationPing `json:"current_location,omitempty"`
	EstimatedArrival *time.Time    `json:"estimated_arrival,omitempty"`
}

// Rating is the customer's review of a finished order.
type Rating struct {
	Stars     int       `json:"stars"`
	Review    string    `json:"review"`
	Images    []string  `json:"images,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Metadata holds bookkeeping timestamps and the amounts derived at creation.
type Metadata struct {
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Order is one repair, service, purchase or installation transaction.
type Order struct {
	ID         string         `json:"id"`
	CustomerID string         `json:"customer_id"`
	ShopID     string         `json:"shop_id"`
	Type       OrderType      `json:"type"`
	Status     Status         `json:"status"`
	Service    ServiceDetails `json:"service"`
	Items      []Item         `json:"items,omitempty"`
	Location   Location       `json:"location"`
	Schedule   Schedule       `json:"schedule"`
	Payment    Payment        `json:"payment"`
	Technician *Technician    `json:"technician,omitempty"`
	Tracking   Tracking       `json:"tracking"`
	ChatID     string         `json:"chat_id,omitempty"`
	Rating     *Rating        `json:"rating,omitempty"`
	Metadata   Metadata       `json:"metadata"`
	// Revision increases by one with every stored mutation.
	Revision int64 `json:"revision"`
	// AppliedWrites holds the most recent WriteOnce keys, oldest first.
	AppliedWrites []string `json:"applied_writes,omitempty"`
}

// NewOrder builds a pending order from a validated draft.
// Platform fee and tax are derived here once and never recomputed.
func NewOrder(id string, d Draft, now time.Time) *Order {
	amount := d.Payment.Amount
	svc, items, loc := d.toParts()
	o := &Order{
		ID:         id,
		CustomerID: d.CustomerID,
		ShopID:     d.ShopID,
		Type:       d.Type,
		Status:     StatusPending,
		Service:    svc,
		Items:      items,
		Location:   loc,
		Schedule: Schedule{
			PreferredDate: d.Schedule.PreferredDate,
			PreferredTime: d.Schedule.PreferredTime,
		},
		Payment: Payment{
			Status:        d.Payment.Status,
			Method:        d.Payment.Method,
			Amount:        amount,
			PaidAmount:    d.Payment.PaidAmount,
			TransactionID: d.Payment.TransactionID,
			InvoiceURL:    d.Payment.InvoiceURL,
		},
		Tracking: Tracking{StatusUpdates: []StatusEvent{}},
		ChatID:   id,
		Metadata: Metadata{
			CreatedAt:      now,
			UpdatedAt:      now,
			PlatformFee:    amount.Mul(decimal.RequireFromString(PlatformFeeRate)),
			TaxAmount:      amount.Mul(decimal.RequireFromString(TaxRate)),
			DiscountAmount: decimal.Zero,
		},
	}
	if o.Payment.Status == "" {
		o.Payment.Status = PaymentStatusPending
	}
	return o.Clone()
}

// LastEvent returns the most recent status event, or nil for an empty log.
func (o *Order) LastEvent() *StatusEvent {
	n := len(o.Tracking.StatusUpdates)
	if n == 0 {
		return nil
	}
	return &o.Tracking.StatusUpdates[n-1]
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o

	if o.Items != nil {
		c.Items = make([]Item, len(o.Items))
		for i, it := range o.Items {
			it.Specifications = maps.Clone(it.Specifications)
			c.Items[i] = it
		}
	}
	c.Location.Coordinates = clonePtr(o.Location.Coordinates)
	c.Schedule.ScheduledDate = clonePtr(o.Schedule.ScheduledDate)
	c.Schedule.CompletedDate = clonePtr(o.Schedule.CompletedDate)

	if o.Technician != nil {
		t := *o.Technician
		t.Location = clonePtr(o.Technician.Location)
		c.Technician = &t
	}

	c.Tracking.StatusUpdates = slices.Clone(o.Tracking.StatusUpdates)
	c.Tracking.CurrentLocation = clonePtr(o.Tracking.CurrentLocation)
	c.Tracking.EstimatedArrival = clonePtr(o.Tracking.EstimatedArrival)

	c.AppliedWrites = slices.Clone(o.AppliedWrites)

	if o.Rating != nil {
		r := *o.Rating
		r.Images = slices.Clone(o.Rating.Images)
		c.Rating = &r
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
