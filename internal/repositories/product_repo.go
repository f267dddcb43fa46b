package repositories

import (
	"vastra/internal/models"
)

// ProductRepository defines the interface for product and variant data
// access. DecrementVariantStock is the store-level atomic primitive the
// order path relies on: the check and the decrement happen as one
// conditional operation, never as a read followed by a write.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	GetBySlug(slug string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error

	// GetVariant returns the variant and its parent product.
	GetVariant(productID, variantID string) (*models.Variant, *models.Product, error)
	// DecrementVariantStock subtracts qty from the variant's stock only
	// if the resulting stock stays non-negative. It reports whether the
	// decrement was applied.
	DecrementVariantStock(variantID string, qty int) (bool, error)
	// IncrementVariantStock adds qty back, used for restocking and for
	// compensating a partially applied order.
	IncrementVariantStock(variantID string, qty int) error
}
