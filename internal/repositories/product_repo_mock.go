package repositories

import (
	"fmt"
	"sync"

	"vastra/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of
// ProductRepository. Its conditional decrement is atomic under the
// repository mutex, matching the guarantee of the SQL implementation.
type MockProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
	}
}

// GetAll returns all products.
func (r *MockProductRepository) GetAll() ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return &product, nil
}

// GetBySlug returns a product by its slug.
func (r *MockProductRepository) GetBySlug(slug string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product slug %s: %w", slug, ErrNotFound)
}

// Create adds a new product, assigning ids where missing.
func (r *MockProductRepository) Create(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	for i := range product.Variants {
		if product.Variants[i].ID == "" {
			product.Variants[i].ID = uuid.New().String()
		}
		product.Variants[i].ProductID = product.ID
	}
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return fmt.Errorf("product %s for update: %w", product.ID, ErrNotFound)
	}
	// Variants are managed through their own operations.
	product.Variants = existing.Variants
	r.products[product.ID] = *product
	return nil
}

// Delete removes a product by its ID.
func (r *MockProductRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.products[id]
	if !ok {
		return fmt.Errorf("product %s for deletion: %w", id, ErrNotFound)
	}
	delete(r.products, id)
	return nil
}

// GetVariant returns the variant and its parent product.
func (r *MockProductRepository) GetVariant(productID, variantID string) (*models.Variant, *models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productID]
	if !ok {
		return nil, nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	for i := range product.Variants {
		if product.Variants[i].ID == variantID {
			v := product.Variants[i]
			return &v, &product, nil
		}
	}
	return nil, nil, fmt.Errorf("variant %s of product %s: %w", variantID, productID, ErrNotFound)
}

// DecrementVariantStock checks and decrements under the repository
// lock, so the operation is atomic with respect to concurrent callers.
func (r *MockProductRepository) DecrementVariantStock(variantID string, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, product := range r.products {
		for i := range product.Variants {
			if product.Variants[i].ID == variantID {
				if product.Variants[i].Stock < qty {
					return false, nil
				}
				product.Variants[i].Stock -= qty
				r.products[id] = product
				return true, nil
			}
		}
	}
	return false, nil
}

// IncrementVariantStock adds qty back to the variant's stock.
func (r *MockProductRepository) IncrementVariantStock(variantID string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, product := range r.products {
		for i := range product.Variants {
			if product.Variants[i].ID == variantID {
				product.Variants[i].Stock += qty
				r.products[id] = product
				return nil
			}
		}
	}
	return fmt.Errorf("variant %s for restock: %w", variantID, ErrNotFound)
}
