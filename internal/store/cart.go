// Package store holds the client-held cart and wishlist state
// containers. Both are constructed values owned by a session (no
// package-level singletons), notify subscribers after every committed
// mutation, and persist their full item list to device-local storage
// under a fixed namespace key.
package store

import (
	"encoding/json"
	"sync"

	"vastra/internal/logger"
	"vastra/internal/pricing"

	"go.uber.org/zap"
)

const cartStorageKey = "cart-storage"

// CartItem is a shopper's quantity selection for one product variant.
// Stock is the ceiling captured from the live variant at add time;
// Quantity never exceeds it.
type CartItem struct {
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	Stock     int     `json:"stock"`
}

// CartStore maintains the in-progress selection for one session.
// Invariant: at most one item per variant id, kept in insertion order.
type CartStore struct {
	mu        sync.Mutex
	items     []CartItem
	open      bool
	storage   Storage
	listeners map[int]func()
	nextSub   int
}

// NewCartStore builds a cart backed by the given storage and reloads
// any previously persisted items. A corrupt or unreadable snapshot is
// logged and the cart starts empty.
func NewCartStore(storage Storage) *CartStore {
	s := &CartStore{
		storage:   storage,
		listeners: make(map[int]func()),
	}

	data, err := storage.Load(cartStorageKey)
	if err != nil {
		logger.L().Warn("failed to load persisted cart", zap.Error(err))
		return s
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.items); err != nil {
			logger.L().Warn("discarding corrupt cart snapshot", zap.Error(err))
			s.items = nil
		}
	}
	return s
}

// AddItem inserts the candidate with quantity 1, or bumps the existing
// row for the same variant by 1 clamped to its stock ceiling. A
// full-stock add is silently clamped, never rejected. The cart is
// marked open either way.
func (s *CartStore) AddItem(item CartItem) {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].VariantID == item.VariantID {
			if s.items[i].Quantity < s.items[i].Stock {
				s.items[i].Quantity++
			}
			found = true
			break
		}
	}
	if !found {
		item.Quantity = 1
		s.items = append(s.items, item)
	}
	s.open = true
	s.persistLocked()
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns)
}

// RemoveItem deletes the row for the variant; no-op when absent.
func (s *CartStore) RemoveItem(variantID string) {
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].VariantID == variantID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			changed = true
			break
		}
	}
	if changed {
		s.persistLocked()
	}
	fns := s.listenersLocked()
	s.mu.Unlock()

	if changed {
		notify(fns)
	}
}

// UpdateQuantity sets the row's quantity, clamped to its stock ceiling.
// A quantity of zero or less removes the row.
func (s *CartStore) UpdateQuantity(variantID string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(variantID)
		return
	}

	s.mu.Lock()
	changed := false
	for i := range s.items {
		if s.items[i].VariantID == variantID {
			if quantity > s.items[i].Stock {
				quantity = s.items[i].Stock
			}
			s.items[i].Quantity = quantity
			changed = true
			break
		}
	}
	if changed {
		s.persistLocked()
	}
	fns := s.listenersLocked()
	s.mu.Unlock()

	if changed {
		notify(fns)
	}
}

// Clear empties the cart.
func (s *CartStore) Clear() {
	s.mu.Lock()
	s.items = nil
	s.persistLocked()
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns)
}

// ToggleOpen flips the transient cart-visibility flag.
func (s *CartStore) ToggleOpen() {
	s.mu.Lock()
	s.open = !s.open
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns)
}

// IsOpen reports the transient cart-visibility flag.
func (s *CartStore) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Items returns a copy of the current rows in insertion order.
func (s *CartStore) Items() []CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]CartItem, len(s.items))
	copy(items, s.items)
	return items
}

// ItemCount is the sum of quantities across rows, not the row count.
func (s *CartStore) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// Subtotal is the sum of unit price times quantity over all rows.
func (s *CartStore) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subtotalLocked()
}

func (s *CartStore) subtotalLocked() float64 {
	subtotal := 0.0
	for _, item := range s.items {
		subtotal += pricing.LineTotal(item.Price, item.Quantity)
	}
	return subtotal
}

// Total is the subtotal plus shipping. Shipping is free above the
// threshold and for an empty cart.
func (s *CartStore) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	subtotal := s.subtotalLocked()
	return subtotal + pricing.ShippingCost(subtotal)
}

// Subscribe registers a listener fired after every committed mutation.
// The returned function unsubscribes it.
func (s *CartStore) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *CartStore) persistLocked() {
	data, err := json.Marshal(s.items)
	if err != nil {
		logger.L().Warn("failed to marshal cart", zap.Error(err))
		return
	}
	if err := s.storage.Save(cartStorageKey, data); err != nil {
		logger.L().Warn("failed to persist cart", zap.Error(err))
	}
}

func (s *CartStore) listenersLocked() []func() {
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}

// notify runs listeners outside the store lock so they can re-read
// derived values without deadlocking.
func notify(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
