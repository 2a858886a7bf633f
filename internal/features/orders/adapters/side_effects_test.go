package adapters

import (
	"context"
	"encoding/json"
	"testing"

	"electrohub/internal/core/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*cache.RedisAdapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCacheShopDirectory_IncrementBookings(t *testing.T) {
	c, mr := newTestCache(t)
	dir := NewCacheShopDirectory(c)
	ctx := context.Background()

	require.NoError(t, dir.IncrementBookings(ctx, "s1"))
	require.NoError(t, dir.IncrementBookings(ctx, "s1"))

	assert.Equal(t, "2", mr.HGet("shop:s1:metadata", "total_bookings"))
}

func TestCacheShopDirectory_BackendDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	err := NewCacheShopDirectory(c).IncrementBookings(context.Background(), "s1")

	assert.Error(t, err)
}

func TestMemoryShopDirectory(t *testing.T) {
	dir := NewMemoryShopDirectory()

	require.NoError(t, dir.IncrementBookings(context.Background(), "s1"))

	assert.Equal(t, int64(1), dir.Bookings("s1"))
	assert.Zero(t, dir.Bookings("s2"))
}

func TestCacheChatRooms_CreateOnce(t *testing.T) {
	c, mr := newTestCache(t)
	rooms := NewCacheChatRooms(c)
	ctx := context.Background()

	require.NoError(t, rooms.CreateOrderChat(ctx, "o1", "c1", "s1"))
	require.NoError(t, rooms.CreateOrderChat(ctx, "o1", "c9", "s9"))

	data, err := mr.Get("chat:o1")
	require.NoError(t, err)
	var room ChatRoom
	require.NoError(t, json.Unmarshal([]byte(data), &room))
	assert.Equal(t, "o1", room.ID)
	assert.Equal(t, "o1", room.OrderID)
	assert.Equal(t, []string{"c1", "s1"}, room.Participants)
	assert.False(t, mr.Exists("chat:o2"))
}

func TestCacheChatRooms_BackendDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	err := NewCacheChatRooms(c).CreateOrderChat(context.Background(), "o1", "c1", "s1")

	assert.Error(t, err)
}

func TestMemoryChatRooms(t *testing.T) {
	rooms := NewMemoryChatRooms()
	ctx := context.Background()

	require.NoError(t, rooms.CreateOrderChat(ctx, "o1", "c1", "s1"))
	require.NoError(t, rooms.CreateOrderChat(ctx, "o1", "c2", "s2"))

	require.Len(t, rooms.rooms, 1)
	assert.Equal(t, []string{"c1", "s1"}, rooms.rooms["o1"].Participants)
}
