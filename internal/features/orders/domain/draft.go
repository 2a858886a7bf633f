package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Draft is the booking payload: a full order minus id, status and metadata.
type Draft struct {
	CustomerID string        `json:"customer_id" validate:"required"`
	ShopID     string        `json:"shop_id" validate:"required"`
	Type       OrderType     `json:"type" validate:"required,oneof=repair service purchase installation"`
	Service    DraftService  `json:"service"`
	Items      []DraftItem   `json:"items,omitempty" validate:"omitempty,dive"`
	Location   DraftLocation `json:"location"`
	Schedule   DraftSchedule `json:"schedule"`
	Payment    DraftPayment  `json:"payment"`
}

// DraftService is the requested work.
type DraftService struct {
	Category       string         `json:"category" validate:"required"`
	SubCategory    string         `json:"sub_category"`
	Description    string         `json:"description"`
	EstimatedHours float64        `json:"estimated_hours" validate:"gte=0"`
	EstimatedCost  DraftCostRange `json:"estimated_cost"`
}

// DraftCostRange is the quoted price bracket.
type DraftCostRange struct {
	Min      decimal.Decimal `json:"min"`
	Max      decimal.Decimal `json:"max"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
}

// DraftItem is a purchase line.
type DraftItem struct {
	ProductID      string            `json:"product_id" validate:"required"`
	Name           string            `json:"name" validate:"required"`
	Quantity       int               `json:"quantity" validate:"min=1"`
	UnitPrice      decimal.Decimal   `json:"unit_price"`
	Specifications map[string]string `json:"specifications,omitempty"`
}

// DraftLocation is where the work happens.
type DraftLocation struct {
	Type        LocationType `json:"type" validate:"required,oneof=shop home"`
	Address     string       `json:"address" validate:"required_if=Type home"`
	City        string       `json:"city" validate:"required"`
	Pincode     string       `json:"pincode"`
	Landmark    string       `json:"landmark,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// DraftSchedule is the customer's preferred slot.
type DraftSchedule struct {
	PreferredDate string `json:"preferred_date"`
	PreferredTime string `json:"preferred_time"`
}

// DraftPayment carries the amount fixed at booking.
type DraftPayment struct {
	Status        PaymentStatus   `json:"status" validate:"omitempty,oneof=pending paid refunded failed"`
	Method        PaymentMethod   `json:"method" validate:"required,oneof=cash online card upi"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
	InvoiceURL    string          `json:"invoice_url,omitempty" validate:"omitempty,url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(draftStructValidation, Draft{})
	return v
}

// draftStructValidation checks the money fields the tag rules cannot express.
func draftStructValidation(sl validator.StructLevel) {
	d := sl.Current().Interface().(Draft)

	if !d.Payment.Amount.IsPositive() {
		sl.ReportError(d.Payment.Amount, "amount", "Amount", "positive", "")
	}
	if d.Payment.PaidAmount.IsNegative() || d.Payment.PaidAmount.GreaterThan(d.Payment.Amount) {
		sl.ReportError(d.Payment.PaidAmount, "paid_amount", "PaidAmount", "within_amount", "")
	}
	cost := d.Service.EstimatedCost
	if cost.Min.IsNegative() || cost.Max.LessThan(cost.Min) {
		sl.ReportError(cost.Max, "estimated_cost", "EstimatedCost", "range", "")
	}
	for i, it := range d.Items {
		if it.UnitPrice.IsNegative() {
			sl.ReportError(it.UnitPrice, fmt.Sprintf("items[%d].unit_price", i), "UnitPrice", "gte0", "")
		}
	}
}

// Validate checks the draft's required fields and enumerations.
func (d Draft) Validate() error {
	if err := validate.Struct(d); err != nil {
		return toValidationError(err)
	}
	if c := d.Location.Coordinates; c != nil {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the point lies on the globe.
func (c Coordinates) Validate() error {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return NewValidationError(fmt.Sprintf("coordinates out of range: %v,%v", c.Lat, c.Lng))
	}
	return nil
}

// DisplayName is the name shown to customers, falling back to the id.
func (t *Technician) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// Validate checks the technician descriptor. Either an id or a name identifies the technician.
func (t *Technician) Validate() error {
	if t == nil {
		return NewValidationError("technician is required")
	}
	var fields []string
	if t.ID == "" && t.Name == "" {
		fields = append(fields, "technician: id or name required")
	}
	if t.Rating < 0 || t.Rating > 5 {
		fields = append(fields, "technician.rating: must be between 0 and 5")
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	if t.Location != nil {
		return t.Location.Validate()
	}
	return nil
}

// Validate checks the star count.
func (r *Rating) Validate() error {
	if r == nil {
		return NewValidationError("rating is required")
	}
	if r.Stars < 1 || r.Stars > 5 {
		return NewValidationError("rating.stars: must be between 1 and 5")
	}
	return nil
}

// toParts converts the draft sections into their stored form.
func (d Draft) toParts() (ServiceDetails, []Item, Location) {
	svc := ServiceDetails{
		Category:       d.Service.Category,
		SubCategory:    d.Service.SubCategory,
		Description:    d.Service.Description,
		EstimatedHours: d.Service.EstimatedHours,
		EstimatedCost: CostRange{
			Min:      d.Service.EstimatedCost.Min,
			Max:      d.Service.EstimatedCost.Max,
			Currency: d.Service.EstimatedCost.Currency,
		},
	}
	if svc.EstimatedCost.Currency == "" {
		svc.EstimatedCost.Currency = "INR"
	}

	var items []Item
	for _, it := range d.Items {
		items = append(items, Item{
			ProductID:      it.ProductID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			TotalPrice:     it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))),
			Specifications: it.Specifications,
		})
	}

	loc := Location{
		Type:        d.Location.Type,
		Address:     d.Location.Address,
		City:        d.Location.City,
		Pincode:     d.Location.Pincode,
		Landmark:    d.Location.Landmark,
		Coordinates: d.Location.Coordinates,
	}
	return svc, items, loc
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return NewValidationError(fields...)
}
