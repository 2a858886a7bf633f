package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"electrohub/internal/features/orders/adapters"
	"electrohub/internal/features/orders/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newOrder(id string) *domain.Order {
	return domain.NewOrder(id, domain.Draft{
		CustomerID: "cust-1",
		ShopID:     "shop-1",
		Type:       domain.OrderTypeService,
		Service:    domain.DraftService{Category: "ac"},
		Location:   domain.DraftLocation{Type: domain.LocationTypeHome, Address: "4 Park St", City: "Kolkata"},
		Payment:    domain.DraftPayment{Method: domain.PaymentMethodCard, Amount: decimal.NewFromInt(1500)},
	}, created)
}

func setup(t *testing.T) (*TrackingService, *Hub, *adapters.MemoryOrderRepository) {
	t.Helper()
	hub := NewHub()
	t.Cleanup(hub.Close)
	repo := adapters.NewMemoryOrderRepository(hub)
	return NewTrackingService(hub, repo), hub, repo
}

func receive(t *testing.T, sub *Subscription) *domain.Order {
	t.Helper()
	select {
	case o, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

type failingSource struct{}

func (failingSource) Get(context.Context, string) (*domain.Order, error) {
	return nil, domain.ErrBackendUnavailable
}

func TestTrackingService_Subscribe_InitialSnapshot(t *testing.T) {
	svc, _, repo := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1")))

	sub, err := svc.Subscribe(ctx, "o1")
	require.NoError(t, err)
	defer sub.Close()

	o := receive(t, sub)
	require.NotNil(t, o)
	assert.Equal(t, "o1", o.ID)
	assert.Equal(t, domain.StatusPending, o.Status)
}

func TestTrackingService_Subscribe_MissingOrder(t *testing.T) {
	svc, _, repo := setup(t)
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "later")
	require.NoError(t, err)
	defer sub.Close()

	assert.Nil(t, receive(t, sub))

	require.NoError(t, repo.Create(ctx, newOrder("later")))
	o := receive(t, sub)
	require.NotNil(t, o)
	assert.Equal(t, "later", o.ID)
}

func TestTrackingService_Subscribe_FollowsChanges(t *testing.T) {
	svc, _, repo := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1")))

	sub, err := svc.Subscribe(ctx, "o1")
	require.NoError(t, err)
	defer sub.Close()
	receive(t, sub)

	_, err = repo.Update(ctx, "o1", created, domain.RecordStatus{Status: domain.StatusAccepted})
	require.NoError(t, err)

	o := receive(t, sub)
	assert.Equal(t, domain.StatusAccepted, o.Status)
	assert.Equal(t, int64(1), o.Revision)
}

func TestTrackingService_Subscribe_LastWriteWins(t *testing.T) {
	svc, _, repo := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1")))

	sub, err := svc.Subscribe(ctx, "o1")
	require.NoError(t, err)
	defer sub.Close()
	receive(t, sub)

	for i := range 5 {
		_, err := repo.Update(ctx, "o1", created, domain.SetCurrentLocation{Lat: float64(i), Lng: 1})
		require.NoError(t, err)
	}

	o := receive(t, sub)
	assert.Equal(t, int64(5), o.Revision)
	assert.Equal(t, 4.0, o.Tracking.CurrentLocation.Lat)
	select {
	case extra := <-sub.Updates():
		t.Fatalf("unexpected snapshot revision %d", extra.Revision)
	default:
	}
}

func TestHub_DropsStaleSnapshots(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	sub := hub.register("o1")
	defer sub.Close()
	ctx := context.Background()

	newer := newOrder("o1")
	newer.Revision = 4
	older := newOrder("o1")
	older.Revision = 2

	require.NoError(t, hub.Publish(ctx, newer))
	require.NoError(t, hub.Publish(ctx, older))

	assert.Equal(t, int64(4), receive(t, sub).Revision)
	select {
	case <-sub.Updates():
		t.Fatal("stale snapshot delivered")
	default:
	}
}

func TestHub_IndependentSubscribers(t *testing.T) {
	svc, hub, repo := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1")))

	subs := make([]*Subscription, 3)
	for i := range subs {
		s, err := svc.Subscribe(ctx, "o1")
		require.NoError(t, err)
		subs[i] = s
	}
	assert.Equal(t, 3, hub.Subscribers("o1"))

	subs[0].Close()
	_, err := repo.Update(ctx, "o1", created, domain.RecordStatus{Status: domain.StatusAccepted})
	require.NoError(t, err)

	for _, s := range subs[1:] {
		o := receive(t, s)
		if o.Revision == 0 {
			o = receive(t, s)
		}
		assert.Equal(t, domain.StatusAccepted, o.Status)
		s.Close()
	}
	assert.Zero(t, hub.Subscribers("o1"))
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	svc, hub, repo := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1")))

	sub, err := svc.Subscribe(ctx, "o1")
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	assert.Zero(t, hub.Subscribers("o1"))
	_, err = repo.Update(ctx, "o1", created, domain.RecordStatus{Status: domain.StatusAccepted})
	require.NoError(t, err)

	// Drain whatever was buffered before Close; the channel must end.
	for range sub.Updates() {
	}
}

func TestTrackingService_Subscribe_ContextCancel(t *testing.T) {
	svc, hub, repo := setup(t)
	require.NoError(t, repo.Create(context.Background(), newOrder("o1")))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Subscribe(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, 1, hub.Subscribers("o1"))

	cancel()

	assert.Eventually(t, func() bool { return hub.Subscribers("o1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestTrackingService_Subscribe_Errors(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	_, err := NewTrackingService(hub, failingSource{}).Subscribe(context.Background(), "o1")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Zero(t, hub.Subscribers("o1"))

	_, err = NewTrackingService(hub, failingSource{}).Subscribe(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTrackingService_SubscribeFunc(t *testing.T) {
	svc, _, repo := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1")))

	var mu sync.Mutex
	var seen []domain.Status
	unsubscribe, err := svc.SubscribeFunc(ctx, "o1", func(o *domain.Order) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, o.Status)
	})
	require.NoError(t, err)

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}
	assert.Eventually(t, func() bool { return count() == 1 }, time.Second, 5*time.Millisecond)

	_, err = repo.Update(ctx, "o1", created, domain.RecordStatus{Status: domain.StatusAccepted})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return count() == 2 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()

	_, err = repo.Update(ctx, "o1", created, domain.RecordStatus{Status: domain.StatusInProgress})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 2, count())
	mu.Lock()
	assert.Equal(t, []domain.Status{domain.StatusPending, domain.StatusAccepted}, seen)
	mu.Unlock()
}

func TestTrackingService_SubscribeFunc_UnsubscribeDuringCall(t *testing.T) {
	svc, _, repo := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1")))

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []domain.Status
	unsubscribe, err := svc.SubscribeFunc(ctx, "o1", func(o *domain.Order) {
		if o.Status == domain.StatusAccepted {
			close(entered)
			<-release
		}
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, o.Status)
	})
	require.NoError(t, err)

	_, err = repo.Update(ctx, "o1", created, domain.RecordStatus{Status: domain.StatusAccepted})
	require.NoError(t, err)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never started")
	}

	unsubscribe()
	_, err = repo.Update(ctx, "o1", created, domain.RecordStatus{Status: domain.StatusInProgress})
	require.NoError(t, err)
	close(release)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.Status{domain.StatusPending, domain.StatusAccepted}, seen)
}

func TestTrackingService_SubscribeFunc_CallbackMayUnsubscribe(t *testing.T) {
	svc, hub, repo := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("o1")))

	ready := make(chan struct{})
	done := make(chan struct{})
	var calls int
	var unsubscribe func()
	unsubscribe, err := svc.SubscribeFunc(ctx, "o1", func(*domain.Order) {
		<-ready
		calls++
		unsubscribe()
		close(done)
	})
	require.NoError(t, err)
	close(ready)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not return")
	}
	_, err = repo.Update(ctx, "o1", created, domain.RecordStatus{Status: domain.StatusAccepted})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, calls)
	assert.Zero(t, hub.Subscribers("o1"))
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	sub := hub.register("o1")

	hub.Close()
	hub.Close()

	_, ok := <-sub.Updates()
	assert.False(t, ok)
	assert.ErrorIs(t, hub.Publish(context.Background(), newOrder("o1")), ErrHubClosed)

	late := hub.register("o1")
	_, ok = <-late.Updates()
	assert.False(t, ok)
	assert.True(t, errors.Is(hub.Publish(context.Background(), newOrder("o2")), ErrHubClosed))
}
