package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"electrohub/internal/core/cache"
	"electrohub/internal/core/config"
	"electrohub/internal/core/logger"
	"electrohub/internal/core/server"
	orderadapter "electrohub/internal/features/orders/adapters"
	orderhandler "electrohub/internal/features/orders/handler"
	orderports "electrohub/internal/features/orders/ports"
	orderservice "electrohub/internal/features/orders/service"
	trackingadapter "electrohub/internal/features/tracking/adapters"
	trackinghandler "electrohub/internal/features/tracking/handler"
	trackingservice "electrohub/internal/features/tracking/service"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// backend is the storage wiring selected by STORE_BACKEND.
type backend struct {
	orders orderports.OrderRepository
	shops  orderports.ShopDirectory
	chats  orderports.ChatRooms
	feed   *trackingadapter.RedisChangeFeed
	close  func() error
}

// @title ElectroHub Orders API
// @version 1.0
// @description Order lifecycle, live tracking and analytics for the ElectroHub repair marketplace.
// @contact.name API Support
// @contact.email support@electrohub.in
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.Store.Backend),
	)

	hub := trackingservice.NewHub()

	store, err := newBackend(cfg, hub)
	if err != nil {
		l.Fatal("Failed to initialize order store", zap.Error(err))
	}
	defer store.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if store.feed != nil {
		ready := make(chan struct{})
		go func() {
			if err := store.feed.Run(ctx, ready); err != nil {
				l.Error("Order change feed stopped", zap.Error(err))
			}
		}()
		select {
		case <-ready:
		case <-time.After(5 * time.Second):
			l.Warn("Order change feed not ready, live tracking limited to local writes")
		}
	}

	var notifier orderports.Notifier = orderadapter.NewLogNotifier()
	if cfg.Notify.WebhookURL != "" {
		notifier = orderadapter.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	}

	orderSvc := orderservice.NewOrderService(store.orders, store.shops, store.chats, notifier,
		orderservice.WithStrictTransitions(cfg.Orders.StrictTransitions),
		orderservice.WithRetry(cfg.Orders.RetryMaxRetries, cfg.Orders.RetryBaseDelay),
		orderservice.WithNotifyTimeout(cfg.Notify.Timeout),
	)
	orderHdl := orderhandler.NewOrderHandler(orderSvc)

	trackingSvc := trackingservice.NewTrackingService(hub, store.orders)
	trackingHdl := trackinghandler.NewTrackingHandler(trackingSvc, cfg.Stream.MaxDuration, cfg.Stream.Heartbeat)

	srv := server.New(cfg, server.HealthCheck{Name: "store", Ping: orderSvc.Ping})

	// Register Routes
	orderHdl.RegisterRoutes(srv.App)
	srv.App.Get("/orders/:id/stream", trackingHdl.StreamOrder)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		l.Info("Shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error("Graceful shutdown failed", zap.Error(err))
		}
		// Let status notifications from the last requests go out.
		orderSvc.Close()
	}()

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
	<-stopped
}

func newBackend(cfg *config.AppConfig, hub *trackingservice.Hub) (*backend, error) {
	if cfg.Store.Backend != "redis" {
		return &backend{
			orders: orderadapter.NewMemoryOrderRepository(hub),
			shops:  orderadapter.NewMemoryShopDirectory(),
			chats:  orderadapter.NewMemoryChatRooms(),
			close:  func() error { return nil },
		}, nil
	}

	redisCache, err := cache.NewRedisAdapter(cfg.Store.RedisURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, err
	}
	logger.Get().Info("Redis connection verified")

	return &backend{
		orders: orderadapter.NewRedisOrderRepository(redisCache.Client()),
		shops:  orderadapter.NewCacheShopDirectory(redisCache),
		chats:  orderadapter.NewCacheChatRooms(redisCache),
		feed:   trackingadapter.NewRedisChangeFeed(redisCache.Client(), hub),
		close:  redisCache.Close,
	}, nil
}
