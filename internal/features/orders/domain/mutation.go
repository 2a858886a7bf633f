package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Mutation is a named partial update of an order.
// The set is closed: only the types in this file implement it.
type Mutation interface {
	apply(o *Order, at time.Time) error
}

// ApplyMutations runs muts against o in order, then stamps updated_at and bumps the revision.
// On error o may be partially modified and must be discarded by the caller.
func ApplyMutations(o *Order, at time.Time, muts ...Mutation) error {
	for _, m := range muts {
		if err := m.apply(o, at); err != nil {
			return err
		}
	}
	if at.After(o.Metadata.UpdatedAt) {
		o.Metadata.UpdatedAt = at
	}
	o.Revision++
	return nil
}

// AppliedWritesKept bounds how many WriteOnce keys an order remembers.
const AppliedWritesKept = 16

// WriteOnce makes a mutation set safe to retry. Place it first: when the order already carries
// Key, ApplyMutations stops with ErrAlreadyApplied before anything else runs.
type WriteOnce struct {
	Key string
}

func (m WriteOnce) apply(o *Order, _ time.Time) error {
	if slices.Contains(o.AppliedWrites, m.Key) {
		return ErrAlreadyApplied
	}
	o.AppliedWrites = append(o.AppliedWrites, m.Key)
	if n := len(o.AppliedWrites); n > AppliedWritesKept {
		o.AppliedWrites = slices.Clone(o.AppliedWrites[n-AppliedWritesKept:])
	}
	return nil
}

// RequireActive fails when the order already reached a terminal state.
type RequireActive struct{}

func (RequireActive) apply(o *Order, _ time.Time) error {
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order %s is %s", ErrIllegalTransition, o.ID, o.Status)
	}
	return nil
}

// RequireRateable fails unless the order is completed and has no rating yet.
type RequireRateable struct{}

func (RequireRateable) apply(o *Order, _ time.Time) error {
	if o.Status != StatusCompleted {
		return fmt.Errorf("%w: order %s is %s, only completed orders can be rated", ErrIllegalTransition, o.ID, o.Status)
	}
	if o.Rating != nil {
		return fmt.Errorf("%w: order %s is already rated", ErrIllegalTransition, o.ID)
	}
	return nil
}

// RecordStatus moves the order to Status and appends one event to the tracking log.
type RecordStatus struct {
	Status    Status
	Message   string
	UpdatedBy string
}

func (m RecordStatus) apply(o *Order, at time.Time) error {
	if !m.Status.Valid() {
		return NewValidationError(fmt.Sprintf("status: unknown value %q", m.Status))
	}
	// Event timestamps never go backwards even if clocks do.
	if last := o.LastEvent(); last != nil && last.Timestamp.After(at) {
		at = last.Timestamp
	}
	o.Status = m.Status
	o.Tracking.StatusUpdates = append(o.Tracking.StatusUpdates, StatusEvent{
		Status:    m.Status,
		Timestamp: at,
		Message:   m.Message,
		UpdatedBy: m.UpdatedBy,
	})
	return nil
}

// AssignTechnician sets or replaces the dispatched technician.
type AssignTechnician struct {
	Technician Technician
}

func (m AssignTechnician) apply(o *Order, _ time.Time) error {
	t := m.Technician
	t.Location = clonePtr(m.Technician.Location)
	o.Technician = &t
	return nil
}

// SetCurrentLocation records a technician position ping.
type SetCurrentLocation struct {
	Lat float64
	Lng float64
}

func (m SetCurrentLocation) apply(o *Order, at time.Time) error {
	o.Tracking.CurrentLocation = &LocationPing{Lat: m.Lat, Lng: m.Lng, Timestamp: at}
	return nil
}

// SetEstimatedArrival records when the technician is expected on site.
type SetEstimatedArrival struct {
	At time.Time
}

func (m SetEstimatedArrival) apply(o *Order, _ time.Time) error {
	eta := m.At
	o.Tracking.EstimatedArrival = &eta
	return nil
}

// MarkCompleted stamps the completion time.
type MarkCompleted struct{}

func (MarkCompleted) apply(o *Order, at time.Time) error {
	o.Schedule.CompletedDate = &at
	return nil
}

// AttachRating stores the customer's review.
type AttachRating struct {
	Rating Rating
}

func (m AttachRating) apply(o *Order, at time.Time) error {
	r := m.Rating
	r.Images = append([]string(nil), m.Rating.Images...)
	if r.Timestamp.IsZero() {
		r.Timestamp = at
	}
	o.Rating = &r
	return nil
}

// RecordPayment updates the settlement side of the payment. Amount is never touched.
type RecordPayment struct {
	Status        PaymentStatus
	PaidAmount    decimal.Decimal
	TransactionID string
	InvoiceURL    string
}

func (m RecordPayment) apply(o *Order, _ time.Time) error {
	switch m.Status {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusFailed:
	default:
		return NewValidationError(fmt.Sprintf("payment.status: unknown value %q", m.Status))
	}
	if m.PaidAmount.IsNegative() || m.PaidAmount.GreaterThan(o.Payment.Amount) {
		return NewValidationError(fmt.Sprintf("payment.paid_amount: %s outside [0, %s]", m.PaidAmount, o.Payment.Amount))
	}
	o.Payment.Status = m.Status
	o.Payment.PaidAmount = m.PaidAmount
	if m.TransactionID != "" {
		o.Payment.TransactionID = m.TransactionID
	}
	if m.InvoiceURL != "" {
		o.Payment.InvoiceURL = m.InvoiceURL
	}
	return nil
}
