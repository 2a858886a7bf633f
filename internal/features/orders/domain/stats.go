package domain

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TopCategoryCount is how many categories the analytics summary ranks.
const TopCategoryCount = 5

// ListFilter selects orders from a store. Zero fields do not filter.
type ListFilter struct {
	CustomerID  string
	ShopID      string
	Status      Status
	CreatedFrom time.Time
	// Limit caps the result after sorting; 0 means no cap.
	Limit int
}

// Validate requires the filter to be scoped to a customer or a shop.
func (f ListFilter) Validate() error {
	if f.CustomerID == "" && f.ShopID == "" {
		return NewValidationError("list filter: customer_id or shop_id required")
	}
	if f.Limit < 0 {
		return NewValidationError("list filter: limit must not be negative")
	}
	return nil
}

// Matches reports whether o passes every set criterion.
func (f ListFilter) Matches(o *Order) bool {
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	if f.ShopID != "" && o.ShopID != f.ShopID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if !f.CreatedFrom.IsZero() && o.Metadata.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	return true
}

// SortNewestFirst orders by creation time descending, ties broken by id.
func SortNewestFirst(orders []*Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i].Metadata.CreatedAt, orders[j].Metadata.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return orders[i].ID > orders[j].ID
	})
}

// Statistics counts a user's orders per status.
type Statistics struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
	// Revenue is only reported for shop owners.
	Revenue *decimal.Decimal `json:"revenue,omitempty"`
}

// ComputeStatistics aggregates orders into per-status counts.
// Every status is present in ByStatus so the buckets always sum to Total.
func ComputeStatistics(orders []*Order, role Role) Statistics {
	stats := Statistics{ByStatus: make(map[Status]int, len(AllStatuses))}
	for _, s := range AllStatuses {
		stats.ByStatus[s] = 0
	}

	revenue := decimal.Zero
	for _, o := range orders {
		stats.Total++
		stats.ByStatus[o.Status]++
		if o.Status == StatusCompleted {
			revenue = revenue.Add(o.Payment.PaidAmount)
		}
	}
	if role == RoleShopOwner {
		stats.Revenue = &revenue
	}
	return stats
}

// CategoryStat is one row of the top categories ranking.
type CategoryStat struct {
	Category string          `json:"category"`
	Orders   int             `json:"orders"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Analytics summarises a shop's orders over a trailing window of calendar months.
type Analytics struct {
	From              time.Time                  `json:"from"`
	Months            int                        `json:"months"`
	TotalOrders       int                        `json:"total_orders"`
	CompletedOrders   int                        `json:"completed_orders"`
	CancelledOrders   int                        `json:"cancelled_orders"`
	CancellationRate  float64                    `json:"cancellation_rate"`
	TotalRevenue      decimal.Decimal            `json:"total_revenue"`
	AverageOrderValue decimal.Decimal            `json:"average_order_value"`
	RevenueByMonth    map[string]decimal.Decimal `json:"revenue_by_month"`
	TopCategories     []CategoryStat             `json:"top_categories"`
}

// AnalyticsWindowStart returns midnight UTC on the first day of the month months-1 months before now.
func AnalyticsWindowStart(now time.Time, months int) time.Time {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -(months - 1), 0)
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ComputeAnalytics aggregates orders created inside the window ending at now.
// Revenue counts the paid amount of completed orders, bucketed by creation month.
func ComputeAnalytics(orders []*Order, now time.Time, months int) Analytics {
	from := AnalyticsWindowStart(now, months)
	a := Analytics{
		From:              from,
		Months:            months,
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		RevenueByMonth:    make(map[string]decimal.Decimal, months),
		TopCategories:     []CategoryStat{},
	}
	for m := range months {
		a.RevenueByMonth[monthKey(from.AddDate(0, m, 0))] = decimal.Zero
	}

	categories := make(map[string]*CategoryStat)
	for _, o := range orders {
		if o.Metadata.CreatedAt.Before(from) {
			continue
		}
		a.TotalOrders++

		cat, ok := categories[o.Service.Category]
		if !ok {
			cat = &CategoryStat{Category: o.Service.Category, Revenue: decimal.Zero}
			categories[o.Service.Category] = cat
		}
		cat.Orders++

		switch o.Status {
		case StatusCompleted:
			a.CompletedOrders++
			paid := o.Payment.PaidAmount
			a.TotalRevenue = a.TotalRevenue.Add(paid)
			key := monthKey(o.Metadata.CreatedAt)
			if cur, ok := a.RevenueByMonth[key]; ok {
				a.RevenueByMonth[key] = cur.Add(paid)
			}
			cat.Revenue = cat.Revenue.Add(paid)
		case StatusCancelled:
			a.CancelledOrders++
		}
	}

	if a.TotalOrders > 0 {
		rate := float64(a.CancelledOrders) / float64(a.TotalOrders) * 100
		a.CancellationRate = math.Round(rate*100) / 100
	}
	if a.CompletedOrders > 0 {
		a.AverageOrderValue = a.TotalRevenue.DivRound(decimal.NewFromInt(int64(a.CompletedOrders)), 2)
	}

	for _, c := range categories {
		a.TopCategories = append(a.TopCategories, *c)
	}
	sort.Slice(a.TopCategories, func(i, j int) bool {
		x, y := a.TopCategories[i], a.TopCategories[j]
		if x.Orders != y.Orders {
			return x.Orders > y.Orders
		}
		if !x.Revenue.Equal(y.Revenue) {
			return x.Revenue.GreaterThan(y.Revenue)
		}
		return x.Category < y.Category
	})
	if len(a.TopCategories) > TopCategoryCount {
		a.TopCategories = a.TopCategories[:TopCategoryCount]
	}
	return a
}
