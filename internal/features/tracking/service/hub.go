package service

import (
	"context"
	"errors"
	"sync"

	"electrohub/internal/features/orders/domain"
)

// ErrHubClosed is returned by Publish after Close.
var ErrHubClosed = errors.New("tracking hub closed")

// Hub fans order snapshots out to the subscriptions registered for each order id.
// Publish never blocks on a slow subscriber: each subscription keeps only the newest
// undelivered snapshot.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Publish offers a snapshot to every subscriber of order.ID.
func (h *Hub) Publish(_ context.Context, order *domain.Order) error {
	if order == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	for s := range h.subs[order.ID] {
		s.offer(order)
	}
	return nil
}

// Subscribers returns how many live subscriptions order id has.
func (h *Hub) Subscribers(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[id])
}

// Close ends every subscription and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

func (h *Hub) register(id string) *Subscription {
	s := &Subscription{
		orderID: id,
		hub:     h,
		updates: make(chan *domain.Order, 1),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.closed = true
		close(s.updates)
		return s
	}
	if h.subs[id] == nil {
		h.subs[id] = make(map[*Subscription]struct{})
	}
	h.subs[id][s] = struct{}{}
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.orderID]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.orderID)
	}
}

// Subscription receives snapshots of one order. A nil snapshot means the order does not exist.
type Subscription struct {
	orderID string
	hub     *Hub

	mu        sync.Mutex
	updates   chan *domain.Order
	closed    bool
	delivered bool
	lastRev   int64
	stop      func() bool
}

// OrderID is the subscribed order.
func (s *Subscription) OrderID() string {
	return s.orderID
}

// Updates yields snapshots in revision order. It is closed by Close.
func (s *Subscription) Updates() <-chan *domain.Order {
	return s.updates
}

// Close stops delivery and closes Updates. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.updates)
	stop := s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.hub.remove(s)
}

// offer replaces any undelivered snapshot with o unless o is not newer than the last one offered.
func (s *Subscription) offer(o *domain.Order) {
	rev := int64(-1)
	if o != nil {
		rev = o.Revision
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || (s.delivered && rev <= s.lastRev) {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- o.Clone()
	s.delivered = true
	s.lastRev = rev
}
