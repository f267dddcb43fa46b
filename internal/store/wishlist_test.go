package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWishlistItem(productID string) WishlistItem {
	return WishlistItem{
		ProductID: productID,
		Name:      "Relaxed Fit Hoodie",
		Price:     2499,
		Slug:      "relaxed-fit-hoodie",
		InStock:   true,
	}
}

func TestWishlistToggleAddsAndRemoves(t *testing.T) {
	wishlist := NewWishlistStore(NewMemoryStorage())

	wishlist.ToggleItem(testWishlistItem("prod-1"))
	assert.True(t, wishlist.IsInWishlist("prod-1"))
	assert.Equal(t, 1, wishlist.ItemCount())

	// Toggling the same product again is an exact undo.
	wishlist.ToggleItem(testWishlistItem("prod-1"))
	assert.False(t, wishlist.IsInWishlist("prod-1"))
	assert.Equal(t, 0, wishlist.ItemCount())
}

func TestWishlistOneEntryPerProduct(t *testing.T) {
	wishlist := NewWishlistStore(NewMemoryStorage())

	wishlist.ToggleItem(testWishlistItem("prod-1"))
	wishlist.ToggleItem(testWishlistItem("prod-2"))
	wishlist.ToggleItem(testWishlistItem("prod-3"))

	assert.Equal(t, 3, wishlist.ItemCount())
	assert.True(t, wishlist.IsInWishlist("prod-2"))
	assert.False(t, wishlist.IsInWishlist("prod-9"))
}

func TestWishlistClear(t *testing.T) {
	wishlist := NewWishlistStore(NewMemoryStorage())
	wishlist.ToggleItem(testWishlistItem("prod-1"))
	wishlist.ToggleItem(testWishlistItem("prod-2"))

	wishlist.Clear()
	assert.Empty(t, wishlist.Items())
}

func TestWishlistPersistsAcrossReload(t *testing.T) {
	storage := NewMemoryStorage()

	wishlist := NewWishlistStore(storage)
	wishlist.ToggleItem(testWishlistItem("prod-1"))

	reloaded := NewWishlistStore(storage)
	items := reloaded.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "prod-1", items[0].ProductID)
}

func TestWishlistDiscardsCorruptSnapshot(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save("wishlist-storage", []byte("[[")))

	wishlist := NewWishlistStore(storage)
	assert.Empty(t, wishlist.Items())
}

func TestWishlistSubscribe(t *testing.T) {
	wishlist := NewWishlistStore(NewMemoryStorage())

	calls := 0
	unsubscribe := wishlist.Subscribe(func() { calls++ })

	wishlist.ToggleItem(testWishlistItem("prod-1"))
	wishlist.ToggleItem(testWishlistItem("prod-1"))
	assert.Equal(t, 2, calls)

	unsubscribe()
	wishlist.ToggleItem(testWishlistItem("prod-1"))
	assert.Equal(t, 2, calls)
}

func TestWishlistIndependentOfCart(t *testing.T) {
	storage := NewMemoryStorage()
	wishlist := NewWishlistStore(storage)
	cart := NewCartStore(storage)

	wishlist.ToggleItem(testWishlistItem("prod-1"))
	cart.AddItem(testCartItem("var-1"))
	cart.Clear()

	// Clearing the cart must not touch the wishlist namespace.
	assert.Equal(t, 1, wishlist.ItemCount())
	reloaded := NewWishlistStore(storage)
	assert.Equal(t, 1, reloaded.ItemCount())
}
