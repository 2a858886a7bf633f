package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"electrohub/internal/core/cache"
)

// ChatRoom is the conversation opened between a customer and a shop for one order.
type ChatRoom struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"order_id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

func chatKey(id string) string {
	return "chat:" + id
}

func newChatRoom(orderID, customerID, shopID string, now time.Time) ChatRoom {
	return ChatRoom{
		ID:           orderID,
		OrderID:      orderID,
		Participants: []string{customerID, shopID},
		CreatedAt:    now,
	}
}

// CacheChatRooms stores chat rooms as JSON documents keyed by the order id.
type CacheChatRooms struct {
	cache cache.Cache
	now   func() time.Time
}

func NewCacheChatRooms(c cache.Cache) *CacheChatRooms {
	return &CacheChatRooms{cache: c, now: time.Now}
}

// CreateOrderChat opens the room once; a second call for the same order keeps the first room.
func (c *CacheChatRooms) CreateOrderChat(ctx context.Context, orderID, customerID, shopID string) error {
	data, err := json.Marshal(newChatRoom(orderID, customerID, shopID, c.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal chat room: %w", err)
	}
	if _, err := c.cache.SetNX(ctx, chatKey(orderID), data, 0); err != nil {
		return fmt.Errorf("failed to create chat room for order %s: %w", orderID, err)
	}
	return nil
}

// MemoryChatRooms keeps chat rooms in process memory.
type MemoryChatRooms struct {
	mu    sync.Mutex
	rooms map[string]ChatRoom
}

func NewMemoryChatRooms() *MemoryChatRooms {
	return &MemoryChatRooms{rooms: make(map[string]ChatRoom)}
}

func (m *MemoryChatRooms) CreateOrderChat(_ context.Context, orderID, customerID, shopID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[orderID]; !ok {
		m.rooms[orderID] = newChatRoom(orderID, customerID, shopID, time.Now())
	}
	return nil
}
