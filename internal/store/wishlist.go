package store

import (
	"encoding/json"
	"sync"

	"vastra/internal/logger"

	"go.uber.org/zap"
)

const wishlistStorageKey = "wishlist-storage"

// WishlistItem is a saved-for-later marker for one product. Unlike the
// cart it is keyed by product, not variant, and carries no quantity.
type WishlistItem struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	SalePrice *float64 `json:"sale_price,omitempty"`
	Image     string   `json:"image"`
	Slug      string   `json:"slug"`
	InStock   bool     `json:"in_stock"`
}

// WishlistStore tracks saved products for one session. Invariant: at
// most one entry per product id.
type WishlistStore struct {
	mu        sync.Mutex
	items     []WishlistItem
	storage   Storage
	listeners map[int]func()
	nextSub   int
}

// NewWishlistStore builds a wishlist backed by the given storage and
// reloads any previously persisted items.
func NewWishlistStore(storage Storage) *WishlistStore {
	s := &WishlistStore{
		storage:   storage,
		listeners: make(map[int]func()),
	}

	data, err := storage.Load(wishlistStorageKey)
	if err != nil {
		logger.L().Warn("failed to load persisted wishlist", zap.Error(err))
		return s
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.items); err != nil {
			logger.L().Warn("discarding corrupt wishlist snapshot", zap.Error(err))
			s.items = nil
		}
	}
	return s
}

// ToggleItem removes the product when present, adds it otherwise. Two
// identical toggles restore the prior state.
func (s *WishlistStore) ToggleItem(item WishlistItem) {
	s.mu.Lock()
	removed := false
	for i := range s.items {
		if s.items[i].ProductID == item.ProductID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		s.items = append(s.items, item)
	}
	s.persistLocked()
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns)
}

// IsInWishlist reports membership by product id.
func (s *WishlistStore) IsInWishlist(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// Items returns a copy of the current entries in insertion order.
func (s *WishlistStore) Items() []WishlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]WishlistItem, len(s.items))
	copy(items, s.items)
	return items
}

// ItemCount is the number of saved products.
func (s *WishlistStore) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear empties the wishlist.
func (s *WishlistStore) Clear() {
	s.mu.Lock()
	s.items = nil
	s.persistLocked()
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns)
}

// Subscribe registers a listener fired after every committed mutation.
// The returned function unsubscribes it.
func (s *WishlistStore) Subscribe(fn func()) func() {
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

func (s *WishlistStore) persistLocked() {
	data, err := json.Marshal(s.items)
	if err != nil {
		logger.L().Warn("failed to marshal wishlist", zap.Error(err))
		return
	}
	if err := s.storage.Save(wishlistStorageKey, data); err != nil {
		logger.L().Warn("failed to persist wishlist", zap.Error(err))
	}
}

func (s *WishlistStore) listenersLocked() []func() {
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}
