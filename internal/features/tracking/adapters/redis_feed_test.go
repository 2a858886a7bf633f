package adapters

import (
	"context"
	"testing"
	"time"

	orderadapters "electrohub/internal/features/orders/adapters"
	"electrohub/internal/features/orders/domain"
	"electrohub/internal/features/tracking/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisChangeFeed_RelaysIntoHub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := service.NewHub()
	defer hub.Close()
	repo := orderadapters.NewRedisOrderRepository(client)
	tracking := service.NewTrackingService(hub, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- NewRedisChangeFeed(client, hub).Run(ctx, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not subscribe")
	}

	order := domain.NewOrder("o1", domain.Draft{
		CustomerID: "cust-1",
		ShopID:     "shop-1",
		Type:       domain.OrderTypeInstallation,
		Service:    domain.DraftService{Category: "ac"},
		Location:   domain.DraftLocation{Type: domain.LocationTypeHome, Address: "9 Marine Dr", City: "Mumbai"},
		Payment:    domain.DraftPayment{Method: domain.PaymentMethodOnline, Amount: decimal.NewFromInt(2500)},
	}, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, order))

	sub, err := tracking.Subscribe(ctx, "o1")
	require.NoError(t, err)
	defer sub.Close()
	<-sub.Updates()

	_, err = repo.SetLocation(ctx, "o1", domain.LocationPing{Lat: 18.94, Lng: 72.82, Timestamp: time.Now()}, true)
	require.NoError(t, err)

	select {
	case o := <-sub.Updates():
		require.NotNil(t, o)
		assert.Equal(t, int64(1), o.Revision)
		require.NotNil(t, o.Tracking.CurrentLocation)
		assert.Equal(t, 18.94, o.Tracking.CurrentLocation.Lat)
	case <-time.After(2 * time.Second):
		t.Fatal("change not relayed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestRedisChangeFeed_SkipsMalformedPayloads(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := service.NewHub()
	defer hub.Close()
	tracking := service.NewTrackingService(hub, orderadapters.NewMemoryOrderRepository(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	go func() { _ = NewRedisChangeFeed(client, hub).Run(ctx, ready) }()
	<-ready

	sub, err := tracking.Subscribe(ctx, "o1")
	require.NoError(t, err)
	defer sub.Close()
	assert.Nil(t, <-sub.Updates())

	mr.Publish(orderadapters.ChangeChannel("o1"), "{broken")
	mr.Publish(orderadapters.ChangeChannel("o1"), `{"id":"o1","revision":3}`)

	select {
	case o := <-sub.Updates():
		require.NotNil(t, o)
		assert.Equal(t, int64(3), o.Revision)
	case <-time.After(2 * time.Second):
		t.Fatal("valid change after a malformed one was not relayed")
	}
}

func TestRedisChangeFeed_SubscribeFails(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	err := NewRedisChangeFeed(client, service.NewHub()).Run(context.Background(), nil)

	assert.Error(t, err)
}
