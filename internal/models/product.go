package models

import "gorm.io/gorm"

// Product represents one apparel product in the catalog. Purchasable
// units are its variants; the product-level prices are the fallback
// when a variant carries no override.
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string    `json:"name" validate:"required,min=3,max=100"`
	Slug        string    `json:"slug" gorm:"uniqueIndex;type:varchar(120)" validate:"required,max=120"`
	Description string    `json:"description" validate:"omitempty,max=500"`
	Category    string    `json:"category" validate:"omitempty,max=50"`
	Price       float64   `json:"price" validate:"required,gt=0"`
	SalePrice   *float64  `json:"sale_price,omitempty" validate:"omitempty,gt=0"`
	Image       string    `json:"image" validate:"omitempty,url"`
	Variants    []Variant `json:"variants" gorm:"constraint:OnDelete:CASCADE"`
	gorm.Model            // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// Variant is a purchasable SKU of a product (size x color combination)
// carrying its own stock count. Stock never goes negative: the only
// writers are the conditional decrement used during order creation and
// administrative restocking.
type Variant struct {
	ID        string   `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	ProductID string   `json:"product_id" gorm:"index;type:varchar(36)"`
	SKU       string   `json:"sku" gorm:"uniqueIndex;type:varchar(64)" validate:"required,max=64"`
	Size      string   `json:"size" validate:"required,max=10"`
	Color     string   `json:"color" validate:"required,max=30"`
	Price     *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	Stock     int      `json:"stock" validate:"gte=0"`
	gorm.Model
}

// UnitPrice resolves the authoritative price for a variant of this
// product: variant override first, then sale price, then base price.
func (p *Product) UnitPrice(v *Variant) float64 {
	if v != nil && v.Price != nil {
		return *v.Price
	}
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}
