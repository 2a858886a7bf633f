package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDraft_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Draft)
		wantErr string
	}{
		{
			name:   "Valid",
			mutate: func(d *Draft) {},
		},
		{
			name:    "MissingCustomer",
			mutate:  func(d *Draft) { d.CustomerID = "" },
			wantErr: "CustomerID",
		},
		{
			name:    "UnknownType",
			mutate:  func(d *Draft) { d.Type = "rental" },
			wantErr: "Type",
		},
		{
			name:    "MissingCategory",
			mutate:  func(d *Draft) { d.Service.Category = "" },
			wantErr: "Category",
		},
		{
			name:    "HomeVisitWithoutAddress",
			mutate:  func(d *Draft) { d.Location.Address = "" },
			wantErr: "Address",
		},
		{
			name: "ShopVisitWithoutAddress",
			mutate: func(d *Draft) {
				d.Location.Type = LocationTypeShop
				d.Location.Address = ""
			},
		},
		{
			name: "ZeroAmount",
			mutate: func(d *Draft) {
				d.Payment.Amount = decimal.Zero
				d.Payment.PaidAmount = decimal.Zero
			},
			wantErr: "positive",
		},
		{
			name:    "PaidMoreThanAmount",
			mutate:  func(d *Draft) { d.Payment.PaidAmount = decimal.NewFromInt(5000) },
			wantErr: "within_amount",
		},
		{
			name:    "InvertedCostRange",
			mutate:  func(d *Draft) { d.Service.EstimatedCost.Max = decimal.NewFromInt(1) },
			wantErr: "range",
		},
		{
			name:    "UnknownPaymentMethod",
			mutate:  func(d *Draft) { d.Payment.Method = "barter" },
			wantErr: "Method",
		},
		{
			name: "ItemWithoutQuantity",
			mutate: func(d *Draft) {
				d.Items = []DraftItem{{ProductID: "p", Name: "Cable", Quantity: 0}}
			},
			wantErr: "Quantity",
		},
		{
			name:    "CoordinatesOutOfRange",
			mutate:  func(d *Draft) { d.Location.Coordinates = &Coordinates{Lat: 120, Lng: 0} },
			wantErr: "coordinates out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)

			err := d.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTechnician_Validate(t *testing.T) {
	var nilTech *Technician
	assert.ErrorIs(t, nilTech.Validate(), ErrValidation)
	assert.ErrorIs(t, (&Technician{Phone: "+91 98000 00000"}).Validate(), ErrValidation)
	assert.NoError(t, (&Technician{Name: "Ramesh"}).Validate())
	assert.NoError(t, (&Technician{ID: "t1"}).Validate())
	assert.ErrorIs(t, (&Technician{ID: "t1", Name: "Ramesh", Rating: 7}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&Technician{ID: "t1", Name: "Ramesh", Location: &Coordinates{Lng: 200}}).Validate(), ErrValidation)
	assert.NoError(t, (&Technician{ID: "t1", Name: "Ramesh", Rating: 4.8}).Validate())
}

func TestRating_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Rating{Stars: 0}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&Rating{Stars: 6}).Validate(), ErrValidation)
	assert.NoError(t, (&Rating{Stars: 5}).Validate())
}

func TestTechnician_DisplayName(t *testing.T) {
	assert.Equal(t, "Ramesh", (&Technician{ID: "t1", Name: "Ramesh"}).DisplayName())
	assert.Equal(t, "t1", (&Technician{ID: "t1"}).DisplayName())
}
