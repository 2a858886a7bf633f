package adapters

import (
	"context"
	"fmt"
	"sync"

	"electrohub/internal/core/cache"
)

const totalBookingsField = "total_bookings"

func shopMetadataKey(shopID string) string {
	return "shop:" + shopID + ":metadata"
}

// CacheShopDirectory keeps shop booking counters in a hash per shop.
type CacheShopDirectory struct {
	cache cache.Cache
}

// NewCacheShopDirectory creates a directory on the shared cache.
func NewCacheShopDirectory(c cache.Cache) *CacheShopDirectory {
	return &CacheShopDirectory{cache: c}
}

// IncrementBookings bumps the shop's total_bookings counter.
func (d *CacheShopDirectory) IncrementBookings(ctx context.Context, shopID string) error {
	if _, err := d.cache.IncrementField(ctx, shopMetadataKey(shopID), totalBookingsField, 1); err != nil {
		return fmt.Errorf("failed to increment bookings for shop %s: %w", shopID, err)
	}
	return nil
}

// MemoryShopDirectory counts bookings in process memory.
type MemoryShopDirectory struct {
	mu       sync.Mutex
	bookings map[string]int64
}

func NewMemoryShopDirectory() *MemoryShopDirectory {
	return &MemoryShopDirectory{bookings: make(map[string]int64)}
}

func (d *MemoryShopDirectory) IncrementBookings(_ context.Context, shopID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bookings[shopID]++
	return nil
}

// Bookings returns the counter for shopID.
func (d *MemoryShopDirectory) Bookings(shopID string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bookings[shopID]
}
