package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"electrohub/internal/core/logger"
	"electrohub/internal/features/orders/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChangeChannelPrefix prefixes the pub/sub channel each order's snapshots are published on.
const ChangeChannelPrefix = "order:changes:"

const (
	orderKeyPrefix   = "order:"
	liveKeySuffix    = ":live"
	customerIndexKey = "orders:customer:"
	shopIndexKey     = "orders:shop:"

	// Fields of the live hash. Location pings only ever touch this hash.
	liveStatus   = "status"
	liveRevision = "revision"
	liveLocation = "location"

	// maxWatchAttempts bounds optimistic retries when concurrent writers touch the same order.
	maxWatchAttempts = 10
)

// RedisOrderRepository stores each order in two keys: a JSON document under order:{id} and a
// live hash under order:{id}:live holding status, revision and the technician position.
// Document writers WATCH only the document, so high-rate location pings never force them to
// retry. Customer and shop sorted-set indexes are scored by creation time.
type RedisOrderRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisOrderRepository creates a repository on an existing client.
func NewRedisOrderRepository(client *redis.Client) *RedisOrderRepository {
	return &RedisOrderRepository{
		client: client,
		logger: logger.Named("orders.redis"),
	}
}

// ChangeChannel is the pub/sub channel for order id.
func ChangeChannel(id string) string {
	return ChangeChannelPrefix + id
}

func orderKey(id string) string {
	return orderKeyPrefix + id
}

func liveKey(id string) string {
	return orderKeyPrefix + id + liveKeySuffix
}

func (r *RedisOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	doc, err := encodeDocument(order)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	key := orderKey(order.ID)
	member := redis.Z{Score: float64(order.Metadata.CreatedAt.UnixMilli()), Member: order.ID}

	live := map[string]any{
		liveStatus:   string(order.Status),
		liveRevision: order.Revision,
	}
	if loc := order.Tracking.CurrentLocation; loc != nil {
		data, err := json.Marshal(loc)
		if err != nil {
			return fmt.Errorf("failed to marshal location: %w", err)
		}
		live[liveLocation] = data
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return unavailable("check order", err)
		}
		if n > 0 {
			return domain.ErrOrderExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			pipe.HSet(ctx, liveKey(order.ID), live)
			pipe.ZAdd(ctx, customerIndexKey+order.CustomerID, member)
			pipe.ZAdd(ctx, shopIndexKey+order.ShopID, member)
			pipe.Publish(ctx, ChangeChannel(order.ID), snapshot)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		// Someone wrote the key between EXISTS and EXEC.
		return domain.ErrOrderExists
	case isClassified(err):
		return err
	default:
		return unavailable("create order", err)
	}
}

func (r *RedisOrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var docCmd *redis.StringCmd
	var liveCmd *redis.MapStringStringCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		docCmd = pipe.Get(ctx, orderKey(id))
		liveCmd = pipe.HGetAll(ctx, liveKey(id))
		return nil
	})
	if errors.Is(docCmd.Err(), redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get order", err)
	}
	return decodeOrder([]byte(docCmd.Val()), liveCmd.Val())
}

func (r *RedisOrderRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	index := shopIndexKey + filter.ShopID
	if filter.CustomerID != "" {
		index = customerIndexKey + filter.CustomerID
	}

	from := "-inf"
	if !filter.CreatedFrom.IsZero() {
		from = strconv.FormatInt(filter.CreatedFrom.UnixMilli(), 10)
	}
	rng := &redis.ZRangeBy{Min: from, Max: "+inf"}
	// The index alone decides membership unless status or the other owner still has to be checked.
	if filter.Limit > 0 && filter.Status == "" && (filter.CustomerID == "" || filter.ShopID == "") {
		rng.Count = int64(filter.Limit)
	}
	ids, err := r.client.ZRevRangeByScore(ctx, index, rng).Result()
	if err != nil {
		return nil, unavailable("read index", err)
	}
	if len(ids) == 0 {
		return []*domain.Order{}, nil
	}

	docs := make([]*redis.StringCmd, len(ids))
	lives := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			docs[i] = pipe.Get(ctx, orderKey(id))
			lives[i] = pipe.HGetAll(ctx, liveKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("load orders", err)
	}

	out := make([]*domain.Order, 0, len(ids))
	for i := range ids {
		if errors.Is(docs[i].Err(), redis.Nil) {
			continue
		}
		o, err := decodeOrder([]byte(docs[i].Val()), lives[i].Val())
		if err != nil {
			return nil, err
		}
		if filter.Matches(o) {
			out = append(out, o)
		}
	}
	domain.SortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Update reads, mutates and writes the document under WATCH, retrying when another document
// writer wins. The revision and status move in the live hash within the same transaction.
func (r *RedisOrderRepository) Update(ctx context.Context, id string, at time.Time, muts ...domain.Mutation) (*domain.Order, error) {
	key, lkey := orderKey(id), liveKey(id)

	for range maxWatchAttempts {
		var updated *domain.Order
		wrote := false
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return domain.ErrOrderNotFound
			}
			if err != nil {
				return unavailable("get order", err)
			}
			live, err := tx.HGetAll(ctx, lkey).Result()
			if err != nil {
				return unavailable("get order", err)
			}
			order, err := decodeOrder(data, live)
			if err != nil {
				return err
			}
			before := order.Clone()
			if err := domain.ApplyMutations(order, at, muts...); err != nil {
				if errors.Is(err, domain.ErrAlreadyApplied) {
					updated = before
					return nil
				}
				return err
			}

			doc, err := encodeDocument(order)
			if err != nil {
				return err
			}
			fields := []any{liveStatus, string(order.Status)}
			if !samePing(before.Tracking.CurrentLocation, order.Tracking.CurrentLocation) {
				loc, err := json.Marshal(order.Tracking.CurrentLocation)
				if err != nil {
					return fmt.Errorf("failed to marshal location: %w", err)
				}
				fields = append(fields, liveLocation, loc)
			}

			var liveCmd *redis.MapStringStringCmd
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, doc, 0)
				pipe.HSet(ctx, lkey, fields...)
				pipe.HIncrBy(ctx, lkey, liveRevision, 1)
				liveCmd = pipe.HGetAll(ctx, lkey)
				return nil
			})
			if err != nil {
				return err
			}
			if err := mergeLive(order, liveCmd.Val()); err != nil {
				return err
			}
			updated, wrote = order, true
			return nil
		}, key)

		switch {
		case err == nil:
			if wrote {
				r.publish(ctx, updated)
			}
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case isClassified(err):
			return nil, err
		default:
			return nil, unavailable("update order", err)
		}
	}
	return nil, unavailable("update order", fmt.Errorf("order %s: too much write contention", id))
}

// SetLocation writes the position into the live hash only. The guard reads the status field,
// never the document, and the document is fetched inside the transaction to publish a snapshot.
func (r *RedisOrderRepository) SetLocation(ctx context.Context, id string, ping domain.LocationPing, requireActive bool) (*domain.Order, error) {
	key, lkey := orderKey(id), liveKey(id)
	loc, err := json.Marshal(ping)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal location: %w", err)
	}

	for range maxWatchAttempts {
		var updated *domain.Order
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			status, err := tx.HGet(ctx, lkey, liveStatus).Result()
			if errors.Is(err, redis.Nil) {
				return domain.ErrOrderNotFound
			}
			if err != nil {
				return unavailable("get order status", err)
			}
			if requireActive && domain.Status(status).Terminal() {
				return fmt.Errorf("%w: order %s is %s", domain.ErrIllegalTransition, id, status)
			}

			var docCmd *redis.StringCmd
			var liveCmd *redis.MapStringStringCmd
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, lkey, liveLocation, loc)
				pipe.HIncrBy(ctx, lkey, liveRevision, 1)
				docCmd = pipe.Get(ctx, key)
				liveCmd = pipe.HGetAll(ctx, lkey)
				return nil
			})
			if err != nil {
				return err
			}
			updated, err = decodeOrder([]byte(docCmd.Val()), liveCmd.Val())
			return err
		}, lkey)

		switch {
		case err == nil:
			r.publish(ctx, updated)
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case isClassified(err):
			return nil, err
		default:
			return nil, unavailable("set location", err)
		}
	}
	return nil, unavailable("set location", fmt.Errorf("order %s: too much write contention", id))
}

func (r *RedisOrderRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// publish sends the merged snapshot after the transaction commits. Subscribers drop snapshots
// older than one they already saw, so writers racing to publish cannot move them backwards.
func (r *RedisOrderRepository) publish(ctx context.Context, o *domain.Order) {
	data, err := json.Marshal(o)
	if err == nil {
		err = r.client.Publish(ctx, ChangeChannel(o.ID), data).Err()
	}
	if err != nil {
		r.logger.Warn("Failed to publish order change",
			zap.String("order_id", o.ID), zap.Int64("revision", o.Revision), zap.Error(err))
	}
}

// encodeDocument marshals o without the fields owned by the live hash.
func encodeDocument(o *domain.Order) ([]byte, error) {
	doc := o.Clone()
	doc.Tracking.CurrentLocation = nil
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}
	return data, nil
}

func decodeOrder(doc []byte, live map[string]string) (*domain.Order, error) {
	var o domain.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	if err := mergeLive(&o, live); err != nil {
		return nil, err
	}
	return &o, nil
}

// mergeLive overlays the live hash on a decoded document.
func mergeLive(o *domain.Order, live map[string]string) error {
	if raw, ok := live[liveRevision]; ok {
		rev, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse revision of order %s: %w", o.ID, err)
		}
		o.Revision = rev
	}
	if raw, ok := live[liveLocation]; ok {
		var ping domain.LocationPing
		if err := json.Unmarshal([]byte(raw), &ping); err != nil {
			return fmt.Errorf("failed to unmarshal location of order %s: %w", o.ID, err)
		}
		o.Tracking.CurrentLocation = &ping
		if ping.Timestamp.After(o.Metadata.UpdatedAt) {
			o.Metadata.UpdatedAt = ping.Timestamp
		}
	}
	return nil
}

func samePing(a, b *domain.LocationPing) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Lat == b.Lat && a.Lng == b.Lng && a.Timestamp.Equal(b.Timestamp)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis order store: %s: %w: %w", op, domain.ErrBackendUnavailable, err)
}

// isClassified reports whether err already carries a domain sentinel.
func isClassified(err error) bool {
	return errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrOrderExists) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrIllegalTransition) ||
		errors.Is(err, domain.ErrBackendUnavailable)
}
